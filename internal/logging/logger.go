package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logTimeFmt = "2006-01-02 15:04:05.000"

var logger = zap.NewNop()

type Config struct {
	LogLevel   string `mapstructure:"log-level"`
	LogFile    string `mapstructure:"log-file"`
	MaxSize    int    `mapstructure:"max-size"`
	MaxDays    int    `mapstructure:"max-days"`
	MaxBackups int    `mapstructure:"max-backups"`
}

// Init builds the root logger: human-readable console output plus an
// optional JSON file with rotation. It replaces the zap globals so
// packages can use zap.L() without threading the logger around.
func Init(cfg *Config) *zap.Logger {
	level := parseLevel(cfg.LogLevel)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(logTimeFmt)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level),
	}
	if cfg.LogFile != "" {
		fileSyncer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxDays,
			MaxBackups: cfg.MaxBackups,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), fileSyncer, level))
	}

	logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger
}

func L() *zap.Logger {
	return logger
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
