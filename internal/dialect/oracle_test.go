package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ora2snow/internal/dialect"
)

func TestOraclePageQuery_FreshRun(t *testing.T) {
	d := &dialect.Oracle{}

	q := d.PageQuery("EMPLOYEES", []string{"EMPLOYEE_ID", "FIRST_NAME"}, "EMPLOYEE_ID", "", false, 1000)

	assert.Equal(t,
		"SELECT * FROM (SELECT EMPLOYEE_ID, FIRST_NAME FROM EMPLOYEES ORDER BY EMPLOYEE_ID) WHERE ROWNUM <= 1000",
		q)
}

func TestOraclePageQuery_WithWatermarkAndPredicate(t *testing.T) {
	d := &dialect.Oracle{}

	q := d.PageQuery("ORDERS", []string{"ORDER_ID", "ORDER_DATE"}, "ORDER_ID", "ORDER_DATE >= DATE '2024-01-01'", true, 500)

	assert.Equal(t,
		"SELECT * FROM (SELECT ORDER_ID, ORDER_DATE FROM ORDERS WHERE ORDER_ID > :1 AND (ORDER_DATE >= DATE '2024-01-01') ORDER BY ORDER_ID) WHERE ROWNUM <= 500",
		q)
}

func TestOraclePageQuery_RowIDKey(t *testing.T) {
	d := &dialect.Oracle{}

	q := d.PageQuery("T", []string{"A", "B"}, "ROWID", "", true, 10)

	assert.Contains(t, q, "ROWID AS "+dialect.RowIDAlias)
	assert.Contains(t, q, "ROWID > :1")
	assert.Contains(t, q, "ORDER BY ROWID")
}

func TestOracleCountQuery(t *testing.T) {
	d := &dialect.Oracle{}

	assert.Equal(t, "SELECT COUNT(*) FROM T", d.CountQuery("T", ""))
	assert.Equal(t, "SELECT COUNT(*) FROM T WHERE STATUS = 'A'", d.CountQuery("T", "STATUS = 'A'"))
}

func TestOraclePlaceholder(t *testing.T) {
	d := &dialect.Oracle{}

	assert.Equal(t, ":1", d.Placeholder(0))
	assert.Equal(t, ":3", d.Placeholder(2))
}
