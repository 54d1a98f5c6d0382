package dialect

import (
	"fmt"
	"strings"
)

type Snowflake struct{}

func (d *Snowflake) TableExistsQuery() string {
	return `SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = CURRENT_SCHEMA() AND TABLE_NAME = UPPER(?)`
}

func (d *Snowflake) ColumnsQuery() string {
	return `
SELECT COLUMN_NAME, DATA_TYPE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = CURRENT_SCHEMA() AND TABLE_NAME = UPPER(?)
ORDER BY ORDINAL_POSITION`
}

func (d *Snowflake) CreateTableDDL(table string, cols []ColumnDef) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		def := fmt.Sprintf("%s %s", c.Name, c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", strings.ToUpper(table), strings.Join(defs, ", "))
}

func (d *Snowflake) DropTableDDL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", strings.ToUpper(table))
}

// InsertQuery renders a multi-row VALUES insert. Loading a whole batch
// through one statement inside one transaction is what makes a batch
// commit atomically on the target.
func (d *Snowflake) InsertQuery(table string, cols []string, rowCount int) string {
	row := "(" + GeneratePlaceholders(len(cols), d.Placeholder) + ")"
	rows := make([]string, rowCount)
	for i := range rows {
		rows[i] = row
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		strings.ToUpper(table),
		strings.Join(cols, ", "),
		strings.Join(rows, ", "))
}

func (d *Snowflake) DeleteAfterQuery(table, key string) string {
	return fmt.Sprintf("DELETE FROM %s WHERE %s > ?", strings.ToUpper(table), key)
}

func (d *Snowflake) CountQuery(table string) string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", strings.ToUpper(table))
}

func (d *Snowflake) Placeholder(index int) string {
	return "?"
}
