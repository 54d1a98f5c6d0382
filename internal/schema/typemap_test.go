package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ora2snow/internal/schema"
)

func TestMapColumn_NumberRoundTrip(t *testing.T) {
	src := &schema.Column{Name: "SALARY", Type: schema.TypeNumber, RawType: "NUMBER", Precision: 10, Scale: 2, Nullable: true}

	mapped, err := schema.MapColumn(src)
	require.NoError(t, err)

	assert.Equal(t, schema.TypeTargetNumber, mapped.Type)
	assert.Equal(t, 10, mapped.Precision)
	assert.Equal(t, 2, mapped.Scale)
	assert.True(t, mapped.Nullable)
	assert.Equal(t, "NUMBER(10,2)", schema.RenderTargetType(mapped))
}

func TestMapColumn_Deterministic(t *testing.T) {
	src := &schema.Column{Name: "ID", Type: schema.TypeNumber, RawType: "NUMBER", Precision: 18}

	first, err := schema.MapColumn(src)
	require.NoError(t, err)
	second, err := schema.MapColumn(src)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMapColumn_UnconstrainedNumber(t *testing.T) {
	src := &schema.Column{Name: "AMT", Type: schema.TypeNumber, RawType: "NUMBER"}

	mapped, err := schema.MapColumn(src)
	require.NoError(t, err)
	assert.Equal(t, schema.MaxTargetPrecision, mapped.Precision)
}

func TestMapColumn_PrecisionOverflow(t *testing.T) {
	src := &schema.Column{Name: "BIG", Type: schema.TypeNumber, RawType: "NUMBER", Precision: 40}

	_, err := schema.MapColumn(src)
	require.Error(t, err)
	var me *schema.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "BIG", me.Column)
}

func TestMapColumn_Varchar2AndChar(t *testing.T) {
	v, err := schema.MapColumn(&schema.Column{Name: "NAME", Type: schema.TypeVarchar2, RawType: "VARCHAR2", Length: 100})
	require.NoError(t, err)
	assert.Equal(t, "VARCHAR(100)", schema.RenderTargetType(v))

	c, err := schema.MapColumn(&schema.Column{Name: "CODE", Type: schema.TypeChar, RawType: "CHAR", Length: 3})
	require.NoError(t, err)
	assert.Equal(t, "CHAR(3)", schema.RenderTargetType(c))
}

func TestMapColumn_DateKeepsTimeComponent(t *testing.T) {
	mapped, err := schema.MapColumn(&schema.Column{Name: "HIRED_AT", Type: schema.TypeDate, RawType: "DATE"})
	require.NoError(t, err)
	// Oracle DATE has a time-of-day part; only a timestamp type keeps it.
	assert.Equal(t, schema.TypeTargetTimestampNTZ, mapped.Type)
	assert.Equal(t, "TIMESTAMP_NTZ", schema.RenderTargetType(mapped))
}

func TestMapColumn_ClobTruncationPolicy(t *testing.T) {
	mapped, err := schema.MapColumn(&schema.Column{Name: "NOTES", Type: schema.TypeClob, RawType: "CLOB"})
	require.NoError(t, err)
	assert.True(t, mapped.Truncate)
	assert.Equal(t, schema.MaxTargetVarchar, mapped.Length)
}

func TestMapColumn_UnknownFailsClosed(t *testing.T) {
	_, err := schema.MapColumn(&schema.Column{Name: "SHAPE", Type: schema.TypeUnknown, RawType: "SDO_GEOMETRY"})
	var me *schema.MappingError
	require.ErrorAs(t, err, &me)
	assert.Contains(t, me.Error(), "SDO_GEOMETRY")
}

func TestMapTable_PreservesOrderAndKey(t *testing.T) {
	src := &schema.Table{
		Name:        "EMPLOYEES",
		OrderingKey: "EMPLOYEE_ID",
		Columns: []*schema.Column{
			{Name: "EMPLOYEE_ID", Type: schema.TypeNumber, Precision: 10},
			{Name: "FIRST_NAME", Type: schema.TypeVarchar2, Length: 50},
			{Name: "HIRE_DATE", Type: schema.TypeDate},
		},
	}

	mapped, err := schema.MapTable(src, "EMP_COPY")
	require.NoError(t, err)

	assert.Equal(t, "EMP_COPY", mapped.Name)
	assert.Equal(t, "EMPLOYEE_ID", mapped.OrderingKey)
	assert.Equal(t, []string{"EMPLOYEE_ID", "FIRST_NAME", "HIRE_DATE"}, mapped.ColumnNames())
}

func TestMapTable_FailsOnAnyUnmappableColumn(t *testing.T) {
	src := &schema.Table{
		Name: "T",
		Columns: []*schema.Column{
			{Name: "ID", Type: schema.TypeNumber, Precision: 5},
			{Name: "RAW_DATA", Type: schema.TypeUnknown, RawType: "LONG RAW"},
		},
	}

	_, err := schema.MapTable(src, "T")
	require.Error(t, err)
}

func TestMapColumn_TimestampKeepsFraction(t *testing.T) {
	mapped, err := schema.MapColumn(&schema.Column{Name: "UPDATED_AT", Type: schema.TypeTimestamp, RawType: "TIMESTAMP(6)"})
	require.NoError(t, err)
	assert.Equal(t, "TIMESTAMP_NTZ", schema.RenderTargetType(mapped))
}

func TestParseTypeTag(t *testing.T) {
	assert.Equal(t, schema.TypeNumber, schema.ParseTypeTag("NUMBER"))
	assert.Equal(t, schema.TypeVarchar2, schema.ParseTypeTag("varchar2"))
	assert.Equal(t, schema.TypeDate, schema.ParseTypeTag(" DATE "))
	assert.Equal(t, schema.TypeTimestamp, schema.ParseTypeTag("TIMESTAMP(6)"))
	assert.Equal(t, schema.TypeClob, schema.ParseTypeTag("CLOB"))
	assert.Equal(t, schema.TypeUnknown, schema.ParseTypeTag("BLOB"))
	// Zoned timestamps have no lossless NTZ mapping and must fail closed.
	assert.Equal(t, schema.TypeUnknown, schema.ParseTypeTag("TIMESTAMP(6) WITH TIME ZONE"))
	assert.Equal(t, schema.TypeUnknown, schema.ParseTypeTag("TIMESTAMP(6) WITH LOCAL TIME ZONE"))
}
