package logger

import (
	"log"

	"telesession-service/internal/app/config"
	"telesession-service/internal/pkg/constvars"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapLogger builds the process logger. Production writes sampled JSON
// lines to the configured files.
func NewZapLogger(driverConfig *config.DriverConfig, internalConfig *config.InternalConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(driverConfig.Logger.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	production := internalConfig.App.Env == constvars.EnvironmentProduction
	outputPaths, errorOutputPaths := outputs(driverConfig, production)

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: internalConfig.App.Env == constvars.EnvironmentDevelopment,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: errorOutputPaths,
	}
	if production {
		cfg.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		log.Fatalf("Error while initializing zap logger: %v", err)
	}
	return zapLogger.With(
		zap.String(constvars.LoggingServiceKey, constvars.ServiceName),
		zap.String(constvars.LoggingVersionKey, internalConfig.App.Version),
		zap.String(constvars.LoggingStoreDriverKey, internalConfig.Store.Driver),
	)
}

func outputs(driverConfig *config.DriverConfig, production bool) ([]string, []string) {
	if !production || driverConfig.Logger.OutputFileName == "" {
		return []string{"stdout"}, []string{"stderr"}
	}

	errorOutputs := []string{"stderr"}
	if driverConfig.Logger.OutputErrorFileName != "" {
		errorOutputs = append(errorOutputs, driverConfig.Logger.OutputErrorFileName)
	}
	return []string{driverConfig.Logger.OutputFileName}, errorOutputs
}
