// Package log provides the structured logging interface used across
// ojtinsight, backed by zerolog.
//
// Components obtain a named logger and attach context with key-value pairs:
//
//	logger := log.GetLoggerWithName("ensemble").With(
//		log.ModelNameKey, "EnsembleModel",
//	)
//	logger.Info("Training started", log.SamplesKey, 120, log.FeaturesKey, 10)
//
// Keys are plain strings; use the constants below so that log fields stay
// consistent between packages.
package log

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Standard field keys.
const (
	ModelNameKey  = "model_name"
	ComponentKey  = "component"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	ClassesKey    = "classes"
	DurationMsKey = "duration_ms"
	PredsKey      = "predictions"
	ErrorKey      = "error"
	RequestIDKey  = "request_id"
)

// Standard field values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationLoad      = "load"
	OperationSave      = "save"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)

// Logger is a structured, leveled logger. kv is an alternating list of keys
// and values; a trailing key without value is logged with a nil value.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Warn(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
	With(kv ...interface{}) Logger
}

// LoggerProvider hands out loggers.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
}

var (
	mu             sync.RWMutex
	globalProvider LoggerProvider
)

// SetupLogger installs a zerolog provider at the given level
// ("debug", "info", "warn", "error") as the global provider.
func SetupLogger(level string) {
	SetGlobalProvider(NewZerologProvider(ToLogLevel(level)))
}

// SetGlobalProvider replaces the global provider.
func SetGlobalProvider(p LoggerProvider) {
	mu.Lock()
	defer mu.Unlock()
	globalProvider = p
}

func provider() LoggerProvider {
	mu.RLock()
	p := globalProvider
	mu.RUnlock()
	if p != nil {
		return p
	}

	mu.Lock()
	defer mu.Unlock()
	if globalProvider == nil {
		globalProvider = NewZerologProvider(zerolog.InfoLevel)
	}
	return globalProvider
}

// GetLogger returns the global root logger.
func GetLogger() Logger {
	return provider().GetLogger()
}

// GetLoggerWithName returns a global logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	return provider().GetLoggerWithName(name)
}

// ToLogLevel parses a level name. Unknown names map to info.
func ToLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
