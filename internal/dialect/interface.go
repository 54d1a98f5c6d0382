package dialect

// ColumnDef is a column in target-DDL terms: the type is already the
// rendered target spelling (e.g. "NUMBER(10,2)"), produced by the type
// mapper. Keeping this package free of the schema model avoids an
// import cycle and keeps dialects about SQL text only.
type ColumnDef struct {
	Name     string
	Type     string
	Nullable bool
}

// Source abstracts the SQL issued against the source database:
// catalog metadata, row counts, and keyset-paginated batch reads.
type Source interface {
	// TableExistsQuery counts matching tables; bind: table name.
	TableExistsQuery() string
	// ColumnsQuery lists column metadata in ordinal order; bind: table name.
	ColumnsQuery() string
	// PrimaryKeyQuery lists PK column names in position order; bind: table name.
	PrimaryKeyQuery() string
	// CountQuery counts rows, optionally restricted by a predicate.
	CountQuery(table, predicate string) string
	// PageQuery reads one page of at most limit rows ordered by key,
	// strictly after the watermark bind when hasWatermark is set.
	PageQuery(table string, cols []string, key, predicate string, hasWatermark bool, limit int) string
	// Placeholder returns the bind marker for a zero-based index.
	Placeholder(index int) string
}

// Target abstracts the SQL issued against the target warehouse:
// existence checks, DDL, bulk inserts, and verification counts.
type Target interface {
	TableExistsQuery() string
	ColumnsQuery() string
	CreateTableDDL(table string, cols []ColumnDef) string
	DropTableDDL(table string) string
	// InsertQuery renders a multi-row bind insert for rowCount rows.
	InsertQuery(table string, cols []string, rowCount int) string
	// DeleteAfterQuery removes rows whose key is past the bound
	// watermark, clearing uncommitted leftovers before a resume.
	DeleteAfterQuery(table, key string) string
	CountQuery(table string) string
	Placeholder(index int) string
}
