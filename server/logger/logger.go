package logger

import (
	"log"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the sugared development logger shared by the server packages.
// CRM_LOG_LEVEL (debug|info|warn|error) overrides the default info level.
func NewLogger() *zap.SugaredLogger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(levelFromEnv())

	logger, err := config.Build()
	if err != nil {
		log.Panic(err)
	}

	// flushes buffer, if any
	defer logger.Sync()

	return logger.Sugar()
}

func levelFromEnv() zapcore.Level {
	level := zapcore.InfoLevel
	if value := strings.TrimSpace(os.Getenv("CRM_LOG_LEVEL")); value != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(value))); err != nil {
			return zapcore.InfoLevel
		}
	}
	return level
}
