package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ora2snow/internal/dialect"
	"ora2snow/internal/schema"
)

// IfExists is the policy for a pre-existing target table.
type IfExists string

const (
	IfExistsFail    IfExists = "fail"
	IfExistsAppend  IfExists = "append"
	IfExistsReplace IfExists = "replace"
)

func ParseIfExists(s string) (IfExists, error) {
	switch IfExists(strings.ToLower(strings.TrimSpace(s))) {
	case IfExistsFail:
		return IfExistsFail, nil
	case IfExistsAppend:
		return IfExistsAppend, nil
	case IfExistsReplace:
		return IfExistsReplace, nil
	default:
		return "", newError(KindConfiguration, fmt.Errorf("invalid if-exists policy %q (want fail, append or replace)", s))
	}
}

// TargetPreparer applies the if-exists policy and creates the target
// table from the mapped descriptor.
type TargetPreparer struct {
	db    *sql.DB
	d     dialect.Target
	table *schema.Table // mapped target descriptor
}

func NewTargetPreparer(db *sql.DB, d dialect.Target, table *schema.Table) *TargetPreparer {
	return &TargetPreparer{db: db, d: d, table: table}
}

func (p *TargetPreparer) exists(ctx context.Context) (bool, error) {
	var count int
	if err := p.db.QueryRowContext(ctx, p.d.TableExistsQuery(), p.table.Name).Scan(&count); err != nil {
		return false, newError(KindTargetConnection, fmt.Errorf("failed to query target catalog: %w", err))
	}
	return count > 0, nil
}

func (p *TargetPreparer) create(ctx context.Context) error {
	ddl := p.d.CreateTableDDL(p.table.Name, targetColumnDefs(p.table))
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return newError(KindTargetConnection, fmt.Errorf("create table failed: %w", err))
	}
	zap.L().Info("target table created", zap.String("table", p.table.Name))
	return nil
}

// Prepare runs before any extraction query is issued. fail aborts on a
// pre-existing table; replace drops and recreates; append creates when
// missing and otherwise checks the existing schema is compatible.
func (p *TargetPreparer) Prepare(ctx context.Context, policy IfExists) error {
	exists, err := p.exists(ctx)
	if err != nil {
		return err
	}

	switch policy {
	case IfExistsFail:
		if exists {
			return newError(KindConfiguration,
				fmt.Errorf("target table %s already exists (use --if-exists append or replace)", p.table.Name))
		}
		return p.create(ctx)

	case IfExistsReplace:
		if exists {
			if _, err := p.db.ExecContext(ctx, p.d.DropTableDDL(p.table.Name)); err != nil {
				return newError(KindTargetConnection, fmt.Errorf("drop table failed: %w", err))
			}
			zap.L().Info("target table dropped", zap.String("table", p.table.Name))
		}
		return p.create(ctx)

	case IfExistsAppend:
		if !exists {
			return p.create(ctx)
		}
		return p.checkCompatible(ctx)

	default:
		return newError(KindConfiguration, fmt.Errorf("invalid if-exists policy %q", policy))
	}
}

// Recreate drops and recreates the target; used by strict verification
// before a rerun.
func (p *TargetPreparer) Recreate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, p.d.DropTableDDL(p.table.Name)); err != nil {
		return newError(KindTargetConnection, fmt.Errorf("drop table failed: %w", err))
	}
	return p.create(ctx)
}

// checkCompatible verifies the existing target has the mapped columns
// in the mapped order. Appending into a differently-shaped table would
// misalign every tuple, so a mismatch is a configuration error.
func (p *TargetPreparer) checkCompatible(ctx context.Context) error {
	rows, err := p.db.QueryContext(ctx, p.d.ColumnsQuery(), p.table.Name)
	if err != nil {
		return newError(KindTargetConnection, fmt.Errorf("failed to query target columns: %w", err))
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return newError(KindTargetConnection, fmt.Errorf("failed to scan target column: %w", err))
		}
		existing = append(existing, strings.ToUpper(name))
	}
	if err := rows.Err(); err != nil {
		return newError(KindTargetConnection, fmt.Errorf("error iterating target columns: %w", err))
	}

	want := p.table.ColumnNames()
	if len(existing) != len(want) {
		return newError(KindConfiguration,
			fmt.Errorf("target table %s has %d columns, mapped source has %d", p.table.Name, len(existing), len(want)))
	}
	for i, name := range want {
		if existing[i] != strings.ToUpper(name) {
			return newError(KindConfiguration,
				fmt.Errorf("target table %s column %d is %s, expected %s", p.table.Name, i+1, existing[i], name))
		}
	}
	return nil
}

func targetColumnDefs(t *schema.Table) []dialect.ColumnDef {
	defs := make([]dialect.ColumnDef, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = dialect.ColumnDef{
			Name:     c.Name,
			Type:     schema.RenderTargetType(c),
			Nullable: c.Nullable,
		}
	}
	return defs
}
