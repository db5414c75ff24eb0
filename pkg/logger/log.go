package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"user-management/pkg/config"
)

// NewLogger собирает zap-логгер: консольный энкодер, stdout и, при наличии, файл.
func NewLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	outputs := []string{"stdout"}
	if cfg.File != "" {
		outputs = append(outputs, cfg.File)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	dualConfig := zap.Config{
		Encoding:         "console",
		Level:            zap.NewAtomicLevelAt(level),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoderConfig,
	}

	dualLogger, err := dualConfig.Build()
	if err != nil {
		panic(err)
	}

	return dualLogger
}

type Loggers struct {
	Main *zap.Logger
	Auth *zap.Logger
	User *zap.Logger
}

func NewLoggers(base *zap.Logger) *Loggers {
	return &Loggers{
		Main: base.Named("main"),
		Auth: base.Named("auth"),
		User: base.Named("user"),
	}
}
