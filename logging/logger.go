// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. It also offers a richer FlowLogger with contextual
// helpers (flow, pattern, component) and domain specific logging helpers for
// agent calls and flow executions.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel is a thin enum for user friendly level configuration decoupled
// from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger defines the minimal logging interface for FlowMesh. Args are
// slog-style alternating key/value pairs. This allows users to provide their
// own logger implementation or use the built-in adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AgentCallLogger is implemented by sinks that record per-dispatch agent
// call metrics. The engine routes call outcomes through it when the
// configured Logger supports it.
type AgentCallLogger interface {
	LogAgentCall(agent string, dur time.Duration, success bool, err error)
}

// FlowExecutionLogger is implemented by sinks that record aggregate flow run
// metrics. Flow sequencing routes run outcomes through it when the configured
// Logger supports it.
type FlowExecutionLogger interface {
	LogFlowExecution(flow string, steps int, dur time.Duration, success bool, err error)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// FlowLogger wraps slog.Logger adding contextual cloning helpers and domain
// convenience methods. It should be cheap to copy via With* methods.
type FlowLogger struct {
	logger    *slog.Logger
	level     LogLevel
	context   map[string]any
	component string
	flowID    string
}

// LoggerConfig configures construction of a FlowLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	FlowID      string
	CustomAttrs map[string]any
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout, CustomAttrs: map[string]any{}}
}

// NewLogger builds a FlowLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *FlowLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}
	attrs := map[string]any{}
	for k, v := range cfg.CustomAttrs {
		attrs[k] = v
	}
	return &FlowLogger{logger: slog.New(handler), level: cfg.Level, context: attrs, component: cfg.Component, flowID: cfg.FlowID}
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *FlowLogger) clone() *FlowLogger {
	nl := *l
	nl.context = map[string]any{}
	for k, v := range l.context {
		nl.context[k] = v
	}
	return &nl
}

// WithContext adds a key/value attribute that will be attached to every log entry.
func (l *FlowLogger) WithContext(key string, value any) *FlowLogger {
	nl := l.clone()
	nl.context[key] = value
	return nl
}

// WithComponent sets the logical component (flow, pattern, engine, etc.).
func (l *FlowLogger) WithComponent(c string) *FlowLogger {
	nl := l.clone()
	nl.component = c
	return nl
}

// WithFlow attaches the flow run identifier.
func (l *FlowLogger) WithFlow(flowID string) *FlowLogger {
	nl := l.clone()
	nl.flowID = flowID
	return nl
}

func (l *FlowLogger) buildAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.context)+3)
	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}
	if l.flowID != "" {
		attrs = append(attrs, slog.String("flow_id", l.flowID))
	}
	for k, v := range l.context {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

func (l *FlowLogger) log(level slog.Level, allowed bool, msg string, args ...any) {
	if !allowed {
		return
	}
	attrs := l.buildAttrs()
	kv := make([]any, 0, len(attrs)+len(args))
	for _, a := range attrs {
		kv = append(kv, a)
	}
	// Args are alternating key/value pairs, same contract as slog.
	kv = append(kv, args...)
	l.logger.Log(context.Background(), level, msg, kv...)
}

// Debug logs at debug level.
func (l *FlowLogger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, l.level <= LogLevelDebug, msg, args...)
}

// Info logs at info level.
func (l *FlowLogger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, l.level <= LogLevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *FlowLogger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, l.level <= LogLevelWarn, msg, args...)
}

// Error logs at error level.
func (l *FlowLogger) Error(msg string, args ...any) {
	l.log(slog.LevelError, l.level <= LogLevelError, msg, args...)
}

// LogAgentCall records latency and outcome for a single agent dispatch.
func (l *FlowLogger) LogAgentCall(agent string, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("agent", agent), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Agent call completed"
	if !success {
		level = slog.LevelError
		msg = "Agent call failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogFlowExecution records aggregate flow run metrics.
func (l *FlowLogger) LogFlowExecution(flow string, steps int, dur time.Duration, success bool, err error) {
	attrs := l.buildAttrs()
	attrs = append(attrs, slog.String("flow", flow), slog.Int("step_count", steps), slog.Duration("duration", dur), slog.Bool("success", success))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	level := slog.LevelInfo
	msg := "Flow execution completed"
	if !success {
		level = slog.LevelError
		msg = "Flow execution failed"
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
