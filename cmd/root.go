package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ora2snow/internal/engine"
	"ora2snow/internal/logging"
)

var (
	cfgFile  string
	logLevel string
	logFile  string
)

var RootCmd = &cobra.Command{
	Use:   "ora2snow",
	Short: "Batched Oracle to Snowflake table migration",
	Long: `ora2snow moves one Oracle table into Snowflake in bounded-size,
resumable batches: schema inspection, deterministic type mapping,
watermark-based extraction, per-batch atomic loads and count
verification.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log.level")
		if logLevel != "" {
			level = logLevel
		}
		logging.Init(&logging.Config{
			LogLevel:   level,
			LogFile:    viper.GetString("log.file"),
			MaxSize:    viper.GetInt("log.max-size"),
			MaxDays:    viper.GetInt("log.max-days"),
			MaxBackups: viper.GetInt("log.max-backups"),
		})
		return nil
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// Exit codes: 0 success, 1 configuration, 2 connection, 3 data/verification.
func exitCode(err error) int {
	switch engine.KindOf(err) {
	case engine.KindConfiguration, engine.KindSchemaNotFound, engine.KindTypeMapping:
		return 1
	case engine.KindSourceConnection, engine.KindTargetConnection:
		return 2
	case engine.KindExtraction, engine.KindLoad, engine.KindVerification:
		return 3
	default:
		return 1
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ora2snow.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (DEBUG|INFO|WARN|ERROR)")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path (rotated)")

	viper.BindPFlag("log.file", RootCmd.PersistentFlags().Lookup("log-file"))

	viper.SetDefault("log.level", "INFO")
	viper.SetDefault("log.max-size", 100)
	viper.SetDefault("log.max-days", 7)
	viper.SetDefault("log.max-backups", 5)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("ora2snow")
		viper.SetConfigType("yaml")
	}

	bindConnectionEnv()
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
