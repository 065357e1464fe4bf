package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// encoder renders one record as a line, newline included
type encoder func(now time.Time, level Level, msg string, fields map[string]any) ([]byte, error)

// sink is shared by a logger and all of its children
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	encode encoder
}

// StructuredLogger writes records through a JSON or key=value encoder
type StructuredLogger struct {
	sink   *sink
	fields []Field
}

// NewJSONLogger writes one JSON object per line
func NewJSONLogger(w io.Writer, level Level) *StructuredLogger {
	return &StructuredLogger{sink: &sink{out: w, level: level, encode: encodeJSON}}
}

// NewTextLogger writes key=value lines, used by the command line tools
func NewTextLogger(w io.Writer, level Level) *StructuredLogger {
	return &StructuredLogger{sink: &sink{out: w, level: level, encode: encodeText}}
}

// New builds a logger for the given format. Unknown formats fall back to JSON.
func New(w io.Writer, level Level, format Format) Logger {
	if format == FormatText {
		return NewTextLogger(w, level)
	}
	return NewJSONLogger(w, level)
}

func encodeJSON(now time.Time, level Level, msg string, fields map[string]any) ([]byte, error) {
	entry := LogEntry{Time: now.Format(time.RFC3339Nano), Level: level.String(), Message: msg}
	if len(fields) > 0 {
		entry.Fields = fields
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func encodeText(now time.Time, level Level, msg string, fields map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", now.Format("15:04:05.000"), level, msg)
	for _, k := range keys {
		v := fmt.Sprint(fields[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(&b, " %s=%s", k, v)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func (l *StructuredLogger) log(level Level, msg string, fields []Field) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.level {
		return
	}
	merged := make(map[string]any, len(l.fields)+len(fields))
	for _, f := range l.fields {
		merged[f.Key] = f.Value
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	line, err := s.encode(time.Now(), level, msg, merged)
	if err != nil {
		fmt.Fprintf(s.out, "logging: cannot encode %q: %v\n", msg, err)
		return
	}
	s.out.Write(line)
}

func (l *StructuredLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *StructuredLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *StructuredLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *StructuredLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

// With returns a child sharing the writer and level
func (l *StructuredLogger) With(fields ...Field) Logger {
	return &StructuredLogger{sink: l.sink, fields: concat(l.fields, fields)}
}

// SetLevel changes the level of the logger and every child
func (l *StructuredLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *StructuredLogger) GetLevel() Level {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.level
}

func concat(a, b []Field) []Field {
	out := make([]Field, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
	defaultOnce   sync.Once
)

// DefaultLogger returns the process-wide logger, built on first use from
// HYDRO_LOG_LEVEL (or LOG_LEVEL) and HYDRO_LOG_FORMAT
func DefaultLogger() Logger {
	defaultOnce.Do(func() {
		level := os.Getenv("HYDRO_LOG_LEVEL")
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		logger := New(os.Stderr, ParseLevel(level), Format(os.Getenv("HYDRO_LOG_FORMAT")))
		defaultMu.Lock()
		if defaultLogger == nil {
			defaultLogger = logger
		}
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger
func SetDefaultLogger(logger Logger) {
	defaultOnce.Do(func() {})
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// OrDefault returns logger, or the default logger when logger is nil
func OrDefault(logger Logger) Logger {
	if logger == nil {
		return DefaultLogger()
	}
	return logger
}

func Debug(msg string, fields ...Field) { DefaultLogger().Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { DefaultLogger().Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { DefaultLogger().Warn(msg, fields...) }

// ErrorLog is named to avoid clashing with the Error field constructor
func ErrorLog(msg string, fields ...Field) { DefaultLogger().Error(msg, fields...) }

// StartTimer begins timing an operation. The record is written by End,
// EndWarn or EndError with a latency field added.
func StartTimer(logger Logger, msg string, fields ...Field) *TimedOperation {
	return &TimedOperation{logger: OrDefault(logger), msg: msg, start: time.Now(), fields: fields}
}

func (t *TimedOperation) Elapsed() time.Duration { return time.Since(t.start) }

func (t *TimedOperation) End(extra ...Field) {
	t.logger.Info(t.msg, t.collect(extra)...)
}

// EndWarn logs under a different message, used for unbalanced solves
func (t *TimedOperation) EndWarn(msg string, extra ...Field) {
	t.logger.Warn(msg, t.collect(extra)...)
}

func (t *TimedOperation) EndError(err error, extra ...Field) {
	t.logger.Error(t.msg, append(t.collect(extra), Error(err))...)
}

func (t *TimedOperation) collect(extra []Field) []Field {
	return append(concat(t.fields, extra), Latency(time.Since(t.start)))
}
