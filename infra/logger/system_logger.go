package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/paybridge/paybridge/infra/opensearch"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var levelOrder = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to info
func ParseLogLevel(level string) LogLevel {
	l := LogLevel(strings.ToLower(strings.TrimSpace(level)))
	if _, ok := levelOrder[l]; ok {
		return l
	}
	return LevelInfo
}

// SystemLog is one structured log entry
type SystemLog struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Function  string         `json:"function,omitempty"`
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Service   string         `json:"service"`
}

// LogContext carries contextual information for a log entry
type LogContext struct {
	Provider string
	Fields   map[string]any
}

// SystemLogger writes structured logs to the console and, when
// configured, to OpenSearch
type SystemLogger struct {
	openSearchLogger *opensearch.Logger
	minLevel         LogLevel
	service          string
}

// SystemLoggerConfig configures a SystemLogger
type SystemLoggerConfig struct {
	MinLevel LogLevel
	Service  string
}

// NewSystemLogger creates a logger. openSearchLogger may be nil for
// console-only logging.
func NewSystemLogger(openSearchLogger *opensearch.Logger, config SystemLoggerConfig) *SystemLogger {
	if config.MinLevel == "" {
		config.MinLevel = LevelInfo
	}
	if config.Service == "" {
		config.Service = "paybridge"
	}
	return &SystemLogger{
		openSearchLogger: openSearchLogger,
		minLevel:         config.MinLevel,
		service:          config.Service,
	}
}

func (l *SystemLogger) log(level LogLevel, message string, logCtx LogContext) {
	if levelOrder[level] < levelOrder[l.minLevel] {
		return
	}

	entry := SystemLog{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Provider:  logCtx.Provider,
		Fields:    logCtx.Fields,
		Service:   l.service,
	}
	if _, file, line, ok := runtime.Caller(3); ok {
		parts := strings.Split(file, "/")
		entry.File = parts[len(parts)-1]
		entry.Line = line
	}

	l.writeConsole(entry)
	if l.openSearchLogger != nil {
		l.openSearchLogger.IndexSystemLog(entry)
	}
}

func (l *SystemLogger) writeConsole(entry SystemLog) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s %s", strings.ToUpper(string(entry.Level)),
		entry.Timestamp.Format(time.RFC3339), entry.Message))
	if entry.Provider != "" {
		sb.WriteString(" provider=" + entry.Provider)
	}
	if len(entry.Fields) > 0 {
		if fields, err := json.Marshal(entry.Fields); err == nil {
			sb.WriteString(" " + string(fields))
		}
	}
	fmt.Fprintln(os.Stdout, sb.String())
}

// Debug logs a debug-level message
func (l *SystemLogger) Debug(message string, logCtx LogContext) {
	l.log(LevelDebug, message, logCtx)
}

// Info logs an info-level message
func (l *SystemLogger) Info(message string, logCtx LogContext) {
	l.log(LevelInfo, message, logCtx)
}

// Warn logs a warn-level message
func (l *SystemLogger) Warn(message string, logCtx LogContext) {
	l.log(LevelWarn, message, logCtx)
}

// Error logs an error-level message
func (l *SystemLogger) Error(message string, logCtx LogContext) {
	l.log(LevelError, message, logCtx)
}
