package logger

import (
	"sync"

	"github.com/paybridge/paybridge/infra/opensearch"
)

var (
	globalLogger *SystemLogger
	once         sync.Once
)

// InitGlobalLogger initializes the process-wide logger. Called once from
// main; later calls are no-ops.
func InitGlobalLogger(openSearchLogger *opensearch.Logger, minLevel LogLevel) {
	once.Do(func() {
		globalLogger = NewSystemLogger(openSearchLogger, SystemLoggerConfig{
			MinLevel: minLevel,
			Service:  "paybridge",
		})
	})
}

// GetGlobalLogger returns the global logger, creating a console-only
// fallback when main never initialized one (tests, library use)
func GetGlobalLogger() *SystemLogger {
	if globalLogger == nil {
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{})
	}
	return globalLogger
}

// Debug logs a debug-level message with the global logger
func Debug(message string, logCtx LogContext) {
	GetGlobalLogger().log(LevelDebug, message, logCtx)
}

// Info logs an info-level message with the global logger
func Info(message string, logCtx LogContext) {
	GetGlobalLogger().log(LevelInfo, message, logCtx)
}

// Warn logs a warn-level message with the global logger
func Warn(message string, logCtx LogContext) {
	GetGlobalLogger().log(LevelWarn, message, logCtx)
}

// Error logs an error-level message with the global logger
func Error(message string, logCtx LogContext) {
	GetGlobalLogger().log(LevelError, message, logCtx)
}
