package schema

// ColumnTypeTag is the closed set of column types the engine understands.
// Catalog types outside this set resolve to TypeUnknown and the mapper
// refuses them, so an unsupported column fails before any row is read.
type ColumnTypeTag int

const (
	TypeUnknown ColumnTypeTag = iota

	// Oracle source types.
	TypeNumber
	TypeVarchar2
	TypeChar
	TypeDate
	TypeTimestamp
	TypeClob

	// Snowflake target types.
	TypeTargetNumber
	TypeTargetVarchar
	TypeTargetChar
	TypeTargetTimestampNTZ
)

func (t ColumnTypeTag) String() string {
	switch t {
	case TypeNumber:
		return "NUMBER"
	case TypeVarchar2:
		return "VARCHAR2"
	case TypeChar:
		return "CHAR"
	case TypeDate:
		return "DATE"
	case TypeTimestamp:
		return "TIMESTAMP"
	case TypeClob:
		return "CLOB"
	case TypeTargetNumber:
		return "NUMBER"
	case TypeTargetVarchar:
		return "VARCHAR"
	case TypeTargetChar:
		return "CHAR"
	case TypeTargetTimestampNTZ:
		return "TIMESTAMP_NTZ"
	default:
		return "UNKNOWN"
	}
}

type Column struct {
	Name      string
	Type      ColumnTypeTag
	RawType   string // catalog spelling, kept for error messages
	Precision int
	Scale     int
	Length    int
	Nullable  bool

	// Truncate marks a mapped column whose values may exceed Length and
	// must be cut at Length with a recorded warning (CLOB -> VARCHAR).
	Truncate bool
}

// Table describes one table in source or target terms. Immutable once
// built by the inspector; the ordering key is what keyset pagination
// and the resume watermark are defined over.
type Table struct {
	Name    string
	Columns []*Column

	// OrderingKey is the column extraction orders by: a single-column
	// primary key when one exists, otherwise the ROWID pseudocolumn.
	OrderingKey string
	// KeyIsRowID reports that OrderingKey is ROWID rather than a real column.
	KeyIsRowID bool
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}
