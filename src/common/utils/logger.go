package utils

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sharedLogger *zap.SugaredLogger

func InitLogger() {
	if sharedLogger != nil {
		return
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "T",
		LevelKey:       "L",
		NameKey:        "N",
		MessageKey:     "M",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.0000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	level := zapcore.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsedLevel, err := zapcore.ParseLevel(lvl); err == nil {
			level = parsedLevel
		}
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	sharedLogger = zap.New(core).Sugar()
}

func GetLogger() *zap.SugaredLogger {
	if sharedLogger == nil {
		InitLogger()
	}
	return sharedLogger
}

// SetLogger replaces the shared logger, mainly so tests can observe output.
func SetLogger(logger *zap.SugaredLogger) {
	sharedLogger = logger
}

// ServiceLogger names the shared logger after the binary using it.
func ServiceLogger(service string) *zap.SugaredLogger {
	return GetLogger().Named(service)
}

func SyncLogger() {
	if sharedLogger != nil {
		_ = sharedLogger.Sync()
	}
}
