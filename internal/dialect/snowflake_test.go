package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ora2snow/internal/dialect"
)

func TestSnowflakeCreateTableDDL(t *testing.T) {
	d := &dialect.Snowflake{}

	ddl := d.CreateTableDDL("employees", []dialect.ColumnDef{
		{Name: "EMPLOYEE_ID", Type: "NUMBER(10,0)", Nullable: false},
		{Name: "FIRST_NAME", Type: "VARCHAR(50)", Nullable: true},
		{Name: "HIRE_DATE", Type: "TIMESTAMP_NTZ", Nullable: true},
	})

	assert.Equal(t,
		"CREATE TABLE EMPLOYEES (EMPLOYEE_ID NUMBER(10,0) NOT NULL, FIRST_NAME VARCHAR(50), HIRE_DATE TIMESTAMP_NTZ)",
		ddl)
}

func TestSnowflakeInsertQuery_MultiRow(t *testing.T) {
	d := &dialect.Snowflake{}

	q := d.InsertQuery("t", []string{"A", "B"}, 3)

	assert.Equal(t, "INSERT INTO T (A, B) VALUES (?, ?), (?, ?), (?, ?)", q)
}

func TestSnowflakeDropTableDDL(t *testing.T) {
	d := &dialect.Snowflake{}

	assert.Equal(t, "DROP TABLE IF EXISTS EMPLOYEES", d.DropTableDDL("employees"))
}

func TestSnowflakeDeleteAfterQuery(t *testing.T) {
	d := &dialect.Snowflake{}

	assert.Equal(t,
		"DELETE FROM EMPLOYEES WHERE EMPLOYEE_ID > ?",
		d.DeleteAfterQuery("employees", "EMPLOYEE_ID"))
}

func TestSnowflakeCountQuery(t *testing.T) {
	d := &dialect.Snowflake{}

	assert.Equal(t, "SELECT COUNT(*) FROM EMPLOYEES", d.CountQuery("employees"))
}
