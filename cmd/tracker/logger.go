package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func buildZapLogger(encoding string, level string) (*zap.Logger, error) {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	if encoding == "json" {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.MessageKey = "message"
		encoderConfig.LevelKey = "severity"
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.NameKey = "logger"
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

		config := zap.NewProductionConfig()
		config.Level = atomicLevel
		config.EncoderConfig = encoderConfig

		return config.Build()
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	config := zap.NewDevelopmentConfig()
	config.Level = atomicLevel
	config.EncoderConfig = encoderConfig

	return config.Build()
}
