package dialect

import (
	"fmt"
	"strings"
)

// RowIDAlias names the ROWID pseudocolumn in page queries when a table
// has no usable primary key. ROWID must be aliased to survive the
// ROWNUM-limited subquery wrapper.
const RowIDAlias = "ORA_ROWID"

type Oracle struct{}

func (d *Oracle) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM USER_TABLES WHERE TABLE_NAME = UPPER(:1)`
}

func (d *Oracle) ColumnsQuery() string {
	// CHAR_LENGTH carries the declared length for character types;
	// DATA_LENGTH is the byte width and lies for multi-byte charsets.
	return `
SELECT
    COLUMN_NAME,
    DATA_TYPE,
    DATA_PRECISION,
    DATA_SCALE,
    DATA_LENGTH,
    CHAR_LENGTH,
    NULLABLE
FROM USER_TAB_COLUMNS
WHERE TABLE_NAME = UPPER(:1)
ORDER BY COLUMN_ID`
}

func (d *Oracle) PrimaryKeyQuery() string {
	return `
SELECT cc.COLUMN_NAME
FROM USER_CONS_COLUMNS cc
JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
WHERE uc.CONSTRAINT_TYPE = 'P'
  AND cc.TABLE_NAME = UPPER(:1)
ORDER BY cc.POSITION`
}

func (d *Oracle) CountQuery(table, predicate string) string {
	if predicate != "" {
		return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, predicate)
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
}

// PageQuery builds the keyset page read. The inner query orders by the
// key and applies the watermark and user predicate; the outer ROWNUM
// wrapper caps the page size. ROWNUM on the ordered subquery is the
// portable way to limit on Oracle without requiring 12c FETCH FIRST.
func (d *Oracle) PageQuery(table string, cols []string, key, predicate string, hasWatermark bool, limit int) string {
	selectList := strings.Join(cols, ", ")
	if strings.EqualFold(key, "ROWID") {
		selectList = selectList + ", ROWID AS " + RowIDAlias
		key = "ROWID"
	}

	var conds []string
	if hasWatermark {
		conds = append(conds, fmt.Sprintf("%s > :1", key))
	}
	if predicate != "" {
		conds = append(conds, "("+predicate+")")
	}

	inner := fmt.Sprintf("SELECT %s FROM %s", selectList, table)
	if len(conds) > 0 {
		inner += " WHERE " + strings.Join(conds, " AND ")
	}
	inner += " ORDER BY " + key

	return fmt.Sprintf("SELECT * FROM (%s) WHERE ROWNUM <= %d", inner, limit)
}

func (d *Oracle) Placeholder(index int) string {
	// Oracle binds are :1, :2, ... (1-based).
	return fmt.Sprintf(":%d", index+1)
}
