package logging

import (
	"strings"
	"time"
)

// Level orders log records by severity
type Level int

const (
	// DebugLevel carries per-trial solver detail
	DebugLevel Level = iota
	InfoLevel
	// WarnLevel marks unbalanced steps, flagged pumps and similar soft failures
	WarnLevel
	// ErrorLevel marks failed solves and aborted runs
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel reads a level name in any case. "warning" is accepted; anything
// unrecognised is InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	}
	return InfoLevel
}

// Format selects the line encoding of a logger
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Field is one key/value of a structured record
type Field struct {
	Key   string
	Value any
}

// Logger is implemented by every logger in the module. Packages take a
// Logger and fall back to OrDefault when given nil.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child that adds fields to every record
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// LogEntry is the JSON shape of a record
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything; solver tests use it
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (n NopLogger) With(...Field) Logger { return n }
func (NopLogger) SetLevel(Level)         {}
func (NopLogger) GetLevel() Level        { return ErrorLevel + 1 }

func NewNopLogger() Logger { return NopLogger{} }

// TimedOperation measures a load, solve or export and logs it once done
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
