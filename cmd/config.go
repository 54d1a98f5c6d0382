package cmd

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/snowflakedb/gosnowflake"
	"github.com/spf13/viper"

	"ora2snow/internal/engine"
)

// OracleConfig is the source connection. Every field can come from the
// config file or from the ORACLE_* environment the original deployment
// already uses.
type OracleConfig struct {
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ServiceName string `mapstructure:"service_name"`
}

type SnowflakeConfig struct {
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	Account   string `mapstructure:"account"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
	Role      string `mapstructure:"role"`
}

// bindConnectionEnv maps the flat environment variable names onto the
// nested config keys, so `ORACLE_USER=x` and `oracle.user: x` are the
// same setting.
func bindConnectionEnv() {
	for key, env := range map[string]string{
		"oracle.user":         "ORACLE_USER",
		"oracle.password":     "ORACLE_PASSWORD",
		"oracle.host":         "ORACLE_HOST",
		"oracle.port":         "ORACLE_PORT",
		"oracle.service_name": "ORACLE_SERVICE_NAME",
		"snowflake.user":      "SNOWFLAKE_USER",
		"snowflake.password":  "SNOWFLAKE_PASSWORD",
		"snowflake.account":   "SNOWFLAKE_ACCOUNT",
		"snowflake.warehouse": "SNOWFLAKE_WAREHOUSE",
		"snowflake.database":  "SNOWFLAKE_DATABASE",
		"snowflake.schema":    "SNOWFLAKE_SCHEMA",
		"snowflake.role":      "SNOWFLAKE_ROLE",
	} {
		viper.BindEnv(key, env)
	}
	viper.SetDefault("oracle.port", 1521)
}

func loadOracleConfig() (*OracleConfig, error) {
	var c OracleConfig
	if err := viper.UnmarshalKey("oracle", &c); err != nil {
		return nil, configErr(fmt.Errorf("failed to parse oracle config: %w", err))
	}
	var missing []string
	if c.User == "" {
		missing = append(missing, "ORACLE_USER")
	}
	if c.Password == "" {
		missing = append(missing, "ORACLE_PASSWORD")
	}
	if c.Host == "" {
		missing = append(missing, "ORACLE_HOST")
	}
	if c.ServiceName == "" {
		missing = append(missing, "ORACLE_SERVICE_NAME")
	}
	if len(missing) > 0 {
		return nil, configErr(fmt.Errorf("missing Oracle connection settings: %s", strings.Join(missing, ", ")))
	}
	return &c, nil
}

func loadSnowflakeConfig() (*SnowflakeConfig, error) {
	var c SnowflakeConfig
	if err := viper.UnmarshalKey("snowflake", &c); err != nil {
		return nil, configErr(fmt.Errorf("failed to parse snowflake config: %w", err))
	}
	var missing []string
	for env, v := range map[string]string{
		"SNOWFLAKE_USER":      c.User,
		"SNOWFLAKE_PASSWORD":  c.Password,
		"SNOWFLAKE_ACCOUNT":   c.Account,
		"SNOWFLAKE_WAREHOUSE": c.Warehouse,
		"SNOWFLAKE_DATABASE":  c.Database,
		"SNOWFLAKE_SCHEMA":    c.Schema,
	} {
		if v == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, configErr(fmt.Errorf("missing Snowflake connection settings: %s", strings.Join(missing, ", ")))
	}
	return &c, nil
}

// openSource opens the Oracle handle. Credentials stay here; the
// engine only ever sees the opened *sql.DB.
func openSource(c *OracleConfig) (*sql.DB, error) {
	dsn := go_ora.BuildUrl(c.Host, c.Port, c.ServiceName, c.User, c.Password, nil)
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, connErr(engine.KindSourceConnection, fmt.Errorf("failed to open oracle connection: %w", err))
	}
	return db, nil
}

func openTarget(c *SnowflakeConfig) (*sql.DB, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Warehouse: c.Warehouse,
		Database:  c.Database,
		Schema:    c.Schema,
		Role:      c.Role,
	})
	if err != nil {
		return nil, configErr(fmt.Errorf("failed to build snowflake DSN: %w", err))
	}
	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, connErr(engine.KindTargetConnection, fmt.Errorf("failed to open snowflake connection: %w", err))
	}
	return db, nil
}

func configErr(err error) error {
	return &engine.Error{Kind: engine.KindConfiguration, BatchSeq: -1, Err: err}
}

func connErr(kind engine.Kind, err error) error {
	return &engine.Error{Kind: kind, BatchSeq: -1, Err: err}
}
