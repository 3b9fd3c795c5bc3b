// Package logging provides the structured console logger used across
// the cognitive deduplication engine: anomaly alerts, delta
// expansion-limit violations, and metric resets go through here rather
// than fmt.Println, so operators can filter by level and prefix.
package logging

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// Logger is a level-filtered, prefix-scoped, field-carrying logger.
type Logger struct {
	level  LogLevel
	prefix string
	fields map[string]interface{}
}

// NewLogger creates a new logger with the specified level and prefix.
func NewLogger(level LogLevel, prefix string) *Logger {
	return &Logger{level: level, prefix: prefix}
}

// SetLevel changes the logging level.
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return level >= l.level
}

// format renders a line as "[ts] LEVEL [prefix] message k=v k=v ..."
// bound fields are sorted so output is deterministic for the same call.
func (l *Logger) format(level LogLevel, message string, args ...interface{}) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	levelStr := levelNames[level]

	var base string
	if l.prefix != "" {
		base = fmt.Sprintf("[%s] %s [%s] %s", timestamp, levelStr, l.prefix, message)
	} else {
		base = fmt.Sprintf("[%s] %s %s", timestamp, levelStr, message)
	}

	var kvPairs []string
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kvPairs = append(kvPairs, fmt.Sprintf("%s=%v", k, l.fields[k]))
		}
	}

	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprintf("%v", args[i])
		if i+1 < len(args) {
			kvPairs = append(kvPairs, fmt.Sprintf("%s=%v", key, args[i+1]))
		} else {
			kvPairs = append(kvPairs, fmt.Sprintf("%s=<missing_value>", key))
		}
	}

	if len(kvPairs) > 0 {
		base += " " + strings.Join(kvPairs, " ")
	}
	return base
}

func (l *Logger) Debug(message string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		log.Println(l.format(DEBUG, message, args...))
	}
}

func (l *Logger) Info(message string, args ...interface{}) {
	if l.shouldLog(INFO) {
		log.Println(l.format(INFO, message, args...))
	}
}

func (l *Logger) Warn(message string, args ...interface{}) {
	if l.shouldLog(WARN) {
		log.Println(l.format(WARN, message, args...))
	}
}

func (l *Logger) Error(message string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		log.Println(l.format(ERROR, message, args...))
	}
}

// WithFields returns a child logger that always includes the given
// key/value pairs, merged over (and overridden by) any already bound.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, prefix: l.prefix, fields: merged}
}

// WithPrefix returns a child logger scoped to a different prefix.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{level: l.level, prefix: prefix, fields: l.fields}
}

var defaultLogger = NewLogger(INFO, "cogdedup")

// SetDefaultLevel sets the default logging level.
func SetDefaultLevel(level LogLevel) { defaultLogger.SetLevel(level) }

func Debug(message string, args ...interface{}) { defaultLogger.Debug(message, args...) }
func Info(message string, args ...interface{})  { defaultLogger.Info(message, args...) }
func Warn(message string, args ...interface{})  { defaultLogger.Warn(message, args...) }
func Error(message string, args ...interface{}) { defaultLogger.Error(message, args...) }

// WithFields scopes the default logger to always include the given fields.
func WithFields(fields map[string]interface{}) *Logger { return defaultLogger.WithFields(fields) }

// WithPrefix scopes the default logger to a different prefix.
func WithPrefix(prefix string) *Logger { return defaultLogger.WithPrefix(prefix) }
