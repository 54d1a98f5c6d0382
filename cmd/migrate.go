package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ora2snow/internal/dialect"
	"ora2snow/internal/engine"
)

var (
	oracleTable    string
	snowflakeTable string
	whereClause    string
	ifExists       string
	batchSize      int
	workers        int
	strictVerify   bool
	checkpointFile string
	resume         bool
	assumeYes      bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate one Oracle table to Snowflake",
	Example: `  ora2snow migrate --oracle-table EMPLOYEES
  ora2snow migrate --oracle-table ORDERS --where-clause "ORDER_DATE >= DATE '2024-01-01'"
  ora2snow migrate --oracle-table PRODUCTS --snowflake-table PRODUCT_CATALOG --if-exists replace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := engine.ParseIfExists(ifExists)
		if err != nil {
			return err
		}

		oraCfg, err := loadOracleConfig()
		if err != nil {
			return err
		}
		snowCfg, err := loadSnowflakeConfig()
		if err != nil {
			return err
		}

		job := engine.NewJob(strings.ToUpper(oracleTable), strings.ToUpper(snowflakeTable), whereClause, batchSize, policy)

		if policy == engine.IfExistsReplace && !assumeYes {
			if !confirm(fmt.Sprintf("This will REPLACE all data in %s. Continue? (yes/no): ", job.TargetTable)) {
				fmt.Println("Migration cancelled.")
				return nil
			}
		}

		if resume {
			if checkpointFile == "" {
				return configErr(errors.New("--resume requires --checkpoint"))
			}
			data, err := os.ReadFile(checkpointFile)
			if err != nil {
				if !os.IsNotExist(err) {
					return configErr(fmt.Errorf("failed to read checkpoint: %w", err))
				}
				// No checkpoint yet: fresh start.
			} else {
				cp, err := engine.UnmarshalCheckpoint(data)
				if err != nil {
					return configErr(err)
				}
				if err := job.Restore(cp); err != nil {
					return err
				}
				fmt.Printf("Resuming from watermark %q (%d rows already loaded)\n", cp.Watermark.Value, cp.RowsLoaded)
			}
		}

		source, err := openSource(oraCfg)
		if err != nil {
			return err
		}
		defer source.Close()
		target, err := openTarget(snowCfg)
		if err != nil {
			return err
		}
		defer target.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var bar *uiprogress.Bar
		hooks := engine.Hooks{
			OnStart: func(estimatedRows int64, size int) {
				if estimatedRows < 0 {
					return
				}
				fmt.Printf("Expected rows to process: %d (batch size %d)\n", estimatedRows, size)
				total := int((estimatedRows + int64(size) - 1) / int64(size))
				if total < 1 {
					total = 1
				}
				uiprogress.Start()
				bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
			},
			OnBatchCommitted: func(cp *engine.Checkpoint) {
				if bar != nil {
					bar.Incr()
				}
				if checkpointFile != "" {
					if err := writeCheckpoint(checkpointFile, cp); err != nil {
						zap.L().Warn("failed to persist checkpoint", zap.Error(err))
					}
				}
			},
		}

		pipeline := engine.NewDBPipeline(source, target, &dialect.Oracle{}, &dialect.Snowflake{}, job)
		orch := engine.New(job, engine.Config{
			Workers:        workers,
			MaxAttempts:    viper.GetInt("engine.max-attempts"),
			InitialBackoff: viper.GetDuration("engine.initial-backoff"),
			MaxBackoff:     viper.GetDuration("engine.max-backoff"),
			StrictVerify:   strictVerify,
		}, pipeline, hooks)

		start := time.Now()
		res, err := orch.Run(ctx)
		if bar != nil {
			uiprogress.Stop()
		}
		if err != nil && res == nil {
			fmt.Fprintf(os.Stderr, "Migration failed. Rows loaded so far: %d, resume watermark: %q\n",
				job.RowsLoaded, job.Watermark.Value)
			return err
		}

		fmt.Printf("Migration finished in %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("  Source table: %s\n", job.SourceTable)
		fmt.Printf("  Target table: %s\n", job.TargetTable)
		fmt.Printf("  Rows loaded:  %d\n", job.RowsLoaded)
		for _, w := range res.Warnings {
			fmt.Printf("  Warning: column %s truncated to %d chars in %d rows\n", w.Column, w.MaxLength, w.Count)
		}
		if res.Mismatch() {
			fmt.Fprintf(os.Stderr, "Verification mismatch: source has %d rows, loaded %d\n",
				res.ExpectedRows, res.ActualRows)
			return err
		}

		if checkpointFile != "" {
			os.Remove(checkpointFile)
		}
		return nil
	},
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "yes" || answer == "y"
}

// writeCheckpoint persists the checkpoint atomically: a torn write on
// kill would otherwise destroy the very state resume depends on.
func writeCheckpoint(path string, cp *engine.Checkpoint) error {
	data, err := cp.Marshal()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func init() {
	RootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().StringVar(&oracleTable, "oracle-table", "", "name of the Oracle table to migrate (required)")
	migrateCmd.Flags().StringVar(&snowflakeTable, "snowflake-table", "", "name of the Snowflake table (defaults to the Oracle table name)")
	migrateCmd.Flags().StringVar(&whereClause, "where-clause", "", "optional WHERE clause to filter Oracle data")
	migrateCmd.Flags().StringVar(&ifExists, "if-exists", "fail", "what to do if the Snowflake table exists: fail, append or replace")
	migrateCmd.Flags().IntVar(&batchSize, "batch-size", engine.DefaultBatchSize, "rows per batch")
	migrateCmd.Flags().IntVar(&workers, "workers", 1, "concurrent load workers (1 = sequential)")
	migrateCmd.Flags().BoolVar(&strictVerify, "strict-verify", false, "recreate the target and rerun once on verification mismatch")
	migrateCmd.Flags().StringVar(&checkpointFile, "checkpoint", "", "file to persist the resume watermark after each batch")
	migrateCmd.Flags().BoolVar(&resume, "resume", false, "resume from the checkpoint file")
	migrateCmd.Flags().BoolVar(&assumeYes, "yes", false, "skip the confirmation prompt for --if-exists replace")
	migrateCmd.MarkFlagRequired("oracle-table")

	viper.SetDefault("engine.max-attempts", engine.DefaultMaxAttempts)
	viper.SetDefault("engine.initial-backoff", engine.DefaultInitialBackoff)
	viper.SetDefault("engine.max-backoff", engine.DefaultMaxBackoff)
}
