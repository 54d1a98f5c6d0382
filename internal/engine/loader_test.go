package engine

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ora2snow/internal/schema"
)

func clobTable(maxLen int) *schema.Table {
	return &schema.Table{
		Name:        "DOCS",
		OrderingKey: "ID",
		Columns: []*schema.Column{
			{Name: "ID", Type: schema.TypeTargetNumber, Precision: 10},
			{Name: "BODY", Type: schema.TypeTargetVarchar, Length: maxLen, Truncate: true},
		},
	}
}

func TestTruncateRows_DeterministicCut(t *testing.T) {
	l := NewStagingLoader(nil, nil, clobTable(8))

	long := gofakeit.LetterN(32)
	short := gofakeit.LetterN(4)
	rows := [][]any{
		{int64(1), long},
		{int64(2), short},
	}

	out := l.truncateRows(rows)

	assert.Equal(t, long[:8], out[0][1])
	assert.Equal(t, short, out[1][1])
	// Input rows must not be mutated: a retried load re-truncates the
	// same original values to the same result.
	assert.Equal(t, long, rows[0][1])

	again := l.truncateRows(rows)
	assert.Equal(t, out[0][1], again[0][1])
}

func TestTruncateRows_RecordsWarnings(t *testing.T) {
	l := NewStagingLoader(nil, nil, clobTable(10))

	rows := [][]any{
		{int64(1), gofakeit.LetterN(20)},
		{int64(2), gofakeit.LetterN(30)},
		{int64(3), gofakeit.LetterN(5)},
		{int64(4), nil},
	}
	l.truncateRows(rows)

	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "BODY", warnings[0].Column)
	assert.Equal(t, 10, warnings[0].MaxLength)
	assert.Equal(t, int64(2), warnings[0].Count)
}

func TestTruncateRows_CutsAtCharacters(t *testing.T) {
	l := NewStagingLoader(nil, nil, clobTable(4))

	// 12 bytes / 6 characters, 12 bytes / 4 characters, 10 bytes / 6 characters.
	over := strings.Repeat("é", 6)
	exact := strings.Repeat("日", 4)
	mixed := "ab" + strings.Repeat("ü", 4)
	rows := [][]any{
		{int64(1), over},
		{int64(2), exact},
		{int64(3), mixed},
	}

	out := l.truncateRows(rows)

	got := out[0][1].(string)
	assert.Equal(t, strings.Repeat("é", 4), got)
	assert.True(t, utf8.ValidString(got))
	// VARCHAR length is measured in characters: 4 characters fit a
	// VARCHAR(4) even at 12 bytes.
	assert.Equal(t, exact, out[1][1])
	assert.Equal(t, "ab"+strings.Repeat("ü", 2), out[2][1])

	warnings := l.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, int64(2), warnings[0].Count)
}

func TestTruncateRows_NoTruncatingColumns(t *testing.T) {
	table := &schema.Table{
		Name:    "T",
		Columns: []*schema.Column{{Name: "ID", Type: schema.TypeTargetNumber}},
	}
	l := NewStagingLoader(nil, nil, table)

	rows := [][]any{{int64(1)}}
	assert.Equal(t, rows, l.truncateRows(rows))
	assert.Empty(t, l.Warnings())
}
