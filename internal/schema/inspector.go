package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ora2snow/internal/dialect"
)

// NotFoundError reports a table missing from the source catalog (or
// invisible to the connected credential, which is indistinguishable).
type NotFoundError struct {
	Table string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("table %s not found in source catalog", e.Table)
}

// Inspector resolves source table descriptors from catalog metadata.
// Read-only: it issues nothing but metadata queries.
type Inspector struct {
	db *sql.DB
	d  dialect.Source
}

func NewInspector(db *sql.DB, d dialect.Source) *Inspector {
	return &Inspector{db: db, d: d}
}

// Inspect builds the descriptor for one table: columns in ordinal
// order, tagged types, and the ordering key used for keyset pagination.
func (i *Inspector) Inspect(ctx context.Context, table string) (*Table, error) {
	var count int
	if err := i.db.QueryRowContext(ctx, i.d.TableExistsQuery(), table).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to query source catalog: %w", err)
	}
	if count == 0 {
		return nil, &NotFoundError{Table: table}
	}

	t := &Table{Name: strings.ToUpper(table)}

	rows, err := i.db.QueryContext(ctx, i.d.ColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, dataType   sql.NullString
			precision, scale sql.NullInt64
			dataLen, charLen sql.NullInt64
			nullable         sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &precision, &scale, &dataLen, &charLen, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column (table: %s): %w", table, err)
		}
		if !name.Valid || !dataType.Valid {
			continue
		}

		length := int(dataLen.Int64)
		if charLen.Valid && charLen.Int64 > 0 {
			length = int(charLen.Int64)
		}

		t.Columns = append(t.Columns, &Column{
			Name:      name.String,
			Type:      ParseTypeTag(dataType.String),
			RawType:   dataType.String,
			Precision: int(precision.Int64),
			Scale:     int(scale.Int64),
			Length:    length,
			Nullable:  nullable.String == "Y",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	if len(t.Columns) == 0 {
		return nil, &NotFoundError{Table: table}
	}

	key, isRowID, err := i.orderingKey(ctx, table, t)
	if err != nil {
		return nil, err
	}
	t.OrderingKey = key
	t.KeyIsRowID = isRowID

	zap.L().Debug("source table resolved",
		zap.String("table", t.Name),
		zap.Int("columns", len(t.Columns)),
		zap.String("ordering_key", t.OrderingKey),
		zap.Bool("rowid_key", t.KeyIsRowID))
	return t, nil
}

// orderingKey picks the column the extractor orders by. A single-column
// primary key gives a stable total order with a comparable watermark;
// composite or missing keys fall back to ROWID.
func (i *Inspector) orderingKey(ctx context.Context, table string, t *Table) (string, bool, error) {
	rows, err := i.db.QueryContext(ctx, i.d.PrimaryKeyQuery(), table)
	if err != nil {
		return "", false, fmt.Errorf("failed to query primary key: %w", err)
	}
	defer rows.Close()

	var pkCols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return "", false, fmt.Errorf("failed to scan primary key column: %w", err)
		}
		pkCols = append(pkCols, col)
	}
	if err := rows.Err(); err != nil {
		return "", false, fmt.Errorf("error iterating primary key columns: %w", err)
	}

	if len(pkCols) == 1 {
		if c := t.Column(pkCols[0]); c != nil {
			switch c.Type {
			case TypeNumber, TypeVarchar2, TypeChar, TypeDate, TypeTimestamp:
				return c.Name, false, nil
			}
		}
	}
	return "ROWID", true, nil
}

// ParseTypeTag classifies a catalog type name into the closed tag set.
func ParseTypeTag(dataType string) ColumnTypeTag {
	u := strings.ToUpper(strings.TrimSpace(dataType))
	switch u {
	case "NUMBER":
		return TypeNumber
	case "VARCHAR2":
		return TypeVarchar2
	case "CHAR":
		return TypeChar
	case "DATE":
		return TypeDate
	case "CLOB":
		return TypeClob
	}
	// The catalog spells timestamps with their fractional precision,
	// e.g. TIMESTAMP(6). Zoned variants carry different semantics and
	// stay unmapped.
	if strings.HasPrefix(u, "TIMESTAMP") && !strings.Contains(u, "TIME ZONE") {
		return TypeTimestamp
	}
	return TypeUnknown
}
