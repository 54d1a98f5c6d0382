package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ora2snow/internal/dialect"
	"ora2snow/internal/engine"
	"ora2snow/internal/schema"
)

var inspectTable string

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the resolved source schema and the target DDL a migration would issue",
	Long: `inspect resolves the Oracle table descriptor, runs it through the
type mapper and prints the Snowflake CREATE TABLE statement. Only
metadata queries are issued; no rows are read or written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		oraCfg, err := loadOracleConfig()
		if err != nil {
			return err
		}
		source, err := openSource(oraCfg)
		if err != nil {
			return err
		}
		defer source.Close()

		inspector := schema.NewInspector(source, &dialect.Oracle{})
		table, err := inspector.Inspect(cmd.Context(), inspectTable)
		if err != nil {
			var nf *schema.NotFoundError
			if errors.As(err, &nf) {
				return &engine.Error{Kind: engine.KindSchemaNotFound, BatchSeq: -1, Err: err}
			}
			return connErr(engine.KindSourceConnection, err)
		}

		fmt.Printf("Table %s (ordering key: %s)\n", table.Name, table.OrderingKey)
		for _, c := range table.Columns {
			mapped, err := schema.MapColumn(c)
			if err != nil {
				fmt.Printf("  %-30s %-20s -> UNSUPPORTED (%v)\n", c.Name, describeSource(c), err)
				continue
			}
			note := ""
			if mapped.Truncate {
				note = "  (values over limit truncated)"
			}
			fmt.Printf("  %-30s %-20s -> %s%s\n", c.Name, describeSource(c), schema.RenderTargetType(mapped), note)
		}

		mapped, err := schema.MapTable(table, strings.ToUpper(inspectTable))
		if err != nil {
			return &engine.Error{Kind: engine.KindTypeMapping, BatchSeq: -1, Err: err}
		}
		target := &dialect.Snowflake{}
		defs := make([]dialect.ColumnDef, len(mapped.Columns))
		for i, c := range mapped.Columns {
			defs[i] = dialect.ColumnDef{Name: c.Name, Type: schema.RenderTargetType(c), Nullable: c.Nullable}
		}
		fmt.Println()
		fmt.Println(target.CreateTableDDL(mapped.Name, defs))
		return nil
	},
}

func describeSource(c *schema.Column) string {
	switch c.Type {
	case schema.TypeNumber:
		if c.Precision > 0 {
			return fmt.Sprintf("NUMBER(%d,%d)", c.Precision, c.Scale)
		}
		return "NUMBER"
	case schema.TypeVarchar2, schema.TypeChar:
		return fmt.Sprintf("%s(%d)", c.Type, c.Length)
	default:
		return c.RawType
	}
}

func init() {
	RootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVar(&inspectTable, "oracle-table", "", "name of the Oracle table to inspect (required)")
	inspectCmd.MarkFlagRequired("oracle-table")
}
