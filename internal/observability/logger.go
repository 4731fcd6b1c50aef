package observability

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is stamped on every log line.
const ServiceName = "windalert"

// NewLogger builds the JSON logger for one run. level is one of DEBUG, INFO, WARN, ERROR
// (case-insensitive); anything else means INFO. Every entry carries service and env.
func NewLogger(level, env string) (*zap.Logger, error) {
	return loggerConfig(level, env).Build()
}

func loggerConfig(level, env string) zap.Config {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Level = parseLogLevel(level)
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{"service": ServiceName}
	if env != "" {
		config.InitialFields["env"] = env
	}
	return config
}

func parseLogLevel(s string) zap.AtomicLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "WARN":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "ERROR":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
