package schema

import (
	"fmt"
)

const (
	// MaxTargetPrecision is Snowflake's NUMBER precision ceiling.
	MaxTargetPrecision = 38
	// MaxTargetVarchar is Snowflake's VARCHAR length ceiling; CLOB values
	// longer than this are truncated with a recorded warning.
	MaxTargetVarchar = 16777216
)

// MappingError reports a source column the mapper refuses to convert.
// Unmapped types fail closed: a lossy default would corrupt data silently.
type MappingError struct {
	Column  string
	RawType string
	Reason  string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("column %s: cannot map source type %s: %s", e.Column, e.RawType, e.Reason)
}

// MapColumn converts one source column descriptor to its target
// descriptor. Pure and deterministic: the same input always yields the
// same output, and the only side channel is the returned error.
func MapColumn(c *Column) (*Column, error) {
	switch c.Type {
	case TypeNumber:
		p := c.Precision
		if p == 0 {
			// Unconstrained Oracle NUMBER: widest target precision.
			p = MaxTargetPrecision
		}
		if p > MaxTargetPrecision {
			return nil, &MappingError{
				Column:  c.Name,
				RawType: c.RawType,
				Reason:  fmt.Sprintf("precision %d exceeds target maximum %d", p, MaxTargetPrecision),
			}
		}
		return &Column{
			Name:      c.Name,
			Type:      TypeTargetNumber,
			RawType:   c.RawType,
			Precision: p,
			Scale:     c.Scale,
			Nullable:  c.Nullable,
		}, nil

	case TypeVarchar2:
		return &Column{
			Name:     c.Name,
			Type:     TypeTargetVarchar,
			RawType:  c.RawType,
			Length:   c.Length,
			Nullable: c.Nullable,
		}, nil

	case TypeChar:
		return &Column{
			Name:     c.Name,
			Type:     TypeTargetChar,
			RawType:  c.RawType,
			Length:   c.Length,
			Nullable: c.Nullable,
		}, nil

	case TypeDate, TypeTimestamp:
		// Oracle DATE carries a time component; TIMESTAMP_NTZ keeps it.
		return &Column{
			Name:     c.Name,
			Type:     TypeTargetTimestampNTZ,
			RawType:  c.RawType,
			Nullable: c.Nullable,
		}, nil

	case TypeClob:
		return &Column{
			Name:     c.Name,
			Type:     TypeTargetVarchar,
			RawType:  c.RawType,
			Length:   MaxTargetVarchar,
			Nullable: c.Nullable,
			Truncate: true,
		}, nil

	default:
		return nil, &MappingError{
			Column:  c.Name,
			RawType: c.RawType,
			Reason:  "no mapping rule for this type",
		}
	}
}

// MapTable maps every column of a source descriptor, preserving column
// order and the ordering key.
func MapTable(src *Table, targetName string) (*Table, error) {
	out := &Table{
		Name:        targetName,
		Columns:     make([]*Column, 0, len(src.Columns)),
		OrderingKey: src.OrderingKey,
		KeyIsRowID:  src.KeyIsRowID,
	}
	for _, c := range src.Columns {
		mapped, err := MapColumn(c)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, mapped)
	}
	return out, nil
}

// RenderTargetType spells a mapped column the way Snowflake DDL wants it.
func RenderTargetType(c *Column) string {
	switch c.Type {
	case TypeTargetNumber:
		return fmt.Sprintf("NUMBER(%d,%d)", c.Precision, c.Scale)
	case TypeTargetVarchar:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case TypeTargetChar:
		return fmt.Sprintf("CHAR(%d)", c.Length)
	case TypeTargetTimestampNTZ:
		return "TIMESTAMP_NTZ"
	default:
		return c.Type.String()
	}
}
