package main

import (
	"ora2snow/cmd"

	_ "github.com/sijms/go-ora/v2"
	_ "github.com/snowflakedb/gosnowflake"
)

func main() {
	cmd.Execute()
}
