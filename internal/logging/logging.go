// Package logging provides structured component logging backed by zap.
package logging

import (
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel converts a flag value such as "debug" or "WARN" to a Level.
// Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Format selects the zap encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// sink is shared by a logger and every logger derived from it, so SetLevel
// and SetOutput on any of them affect the whole family.
type sink struct {
	mu     sync.Mutex
	level  zap.AtomicLevel
	format Format
	output io.Writer
	core   *zap.Logger
}

func (s *sink) rebuild() {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if s.format == FormatConsole {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}
	s.core = zap.New(zapcore.NewCore(enc, zapcore.AddSync(s.output), s.level))
}

func (s *sink) logger() *zap.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core
}

// Logger provides structured logging for one component.
type Logger struct {
	sink      *sink
	component string
	traceID   string
}

var (
	defaultMu   sync.RWMutex
	defaultSink = newSink(os.Stderr, FormatJSON, LevelInfo)
)

func newSink(w io.Writer, format Format, level Level) *sink {
	s := &sink{
		level:  zap.NewAtomicLevelAt(level.zapLevel()),
		format: format,
		output: w,
	}
	s.rebuild()
	return s
}

// New returns a logger writing to the process-wide sink.
func New() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return &Logger{sink: defaultSink}
}

// NewWithWriter returns a logger with its own sink. Used by tests and the TUI.
func NewWithWriter(w io.Writer, format Format, level Level) *Logger {
	return &Logger{sink: newSink(w, format, level)}
}

// Configure replaces the process-wide sink. Loggers created earlier keep
// their old sink.
func Configure(w io.Writer, format Format, level Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultSink = newSink(w, format, level)
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, traceID: l.traceID}
}

// WithTraceID returns a new logger with the given trace ID.
func (l *Logger) WithTraceID(traceID string) *Logger {
	return &Logger{sink: l.sink, component: l.component, traceID: traceID}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.level.SetLevel(level.zapLevel())
}

// SetOutput sets the output writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output = w
	l.sink.rebuild()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.sink.logger().Sync()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	zl := l.sink.logger()
	ce := zl.Check(level.zapLevel(), msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, 4)
	if l.component != "" {
		zf = append(zf, zap.String("component", l.component))
	}
	if l.traceID != "" {
		zf = append(zf, zap.String("trace_id", l.traceID))
	}
	if len(fields) > 0 && fields[0] != nil {
		keys := make([]string, 0, len(fields[0]))
		for k := range fields[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			zf = append(zf, zap.Any(k, fields[0][k]))
		}
	}
	ce.Write(zf...)
}

// ToolCall logs a tool invocation. Arguments are not logged.
func (l *Logger) ToolCall(tool, agent string) {
	l.Info("tool_call", map[string]interface{}{
		"tool":  tool,
		"agent": agent,
	})
}

// ToolResult logs a tool result.
func (l *Logger) ToolResult(tool string, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"tool":     tool,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("tool_error", fields)
	} else {
		l.Debug("tool_result", fields)
	}
}

// TaskStart logs the start of a crew task.
func (l *Logger) TaskStart(task, agent string) {
	l.Info("task_start", map[string]interface{}{
		"task":  task,
		"agent": agent,
	})
}

// TaskComplete logs the completion of a crew task.
func (l *Logger) TaskComplete(task string, duration time.Duration, iterations int) {
	l.Info("task_complete", map[string]interface{}{
		"task":       task,
		"duration":   duration.String(),
		"iterations": iterations,
	})
}

// KickoffStart logs the start of a crew run.
func (l *Logger) KickoffStart(crew string, inputs map[string]string) {
	l.Info("kickoff_start", map[string]interface{}{
		"crew":   crew,
		"inputs": inputs,
	})
}

// KickoffComplete logs the end of a crew run.
func (l *Logger) KickoffComplete(crew string, duration time.Duration, status string) {
	l.Info("kickoff_complete", map[string]interface{}{
		"crew":     crew,
		"duration": duration.String(),
		"status":   status,
	})
}
