package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// StructuredLogger writes one JSON object per log line.
type StructuredLogger struct {
	level   Level
	service string
	version string
	mu      *sync.Mutex // shared by derived loggers; guards encoder
	levelMu sync.RWMutex
	encoder *json.Encoder
	fields  map[string]interface{}
}

// LogEntry represents a structured log entry.
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version,omitempty"`
	Message   string                 `json:"message"`
	GameID    string                 `json:"game_id,omitempty"`
	TurnID    string                 `json:"turn_id,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// NewStructuredLogger creates a structured logger writing to stderr.
func NewStructuredLogger(service, version, level string) *StructuredLogger {
	return NewStructuredLoggerWithWriter(os.Stderr, service, version, level)
}

// NewStructuredLoggerWithWriter creates a structured logger writing to w.
func NewStructuredLoggerWithWriter(w io.Writer, service, version, level string) *StructuredLogger {
	return &StructuredLogger{
		level:   ParseLevel(level),
		service: service,
		version: version,
		mu:      &sync.Mutex{},
		encoder: json.NewEncoder(w),
		fields:  make(map[string]interface{}),
	}
}

func (l *StructuredLogger) derive(extra map[string]interface{}) *StructuredLogger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &StructuredLogger{
		level:   l.GetLevel(),
		service: l.service,
		version: l.version,
		mu:      l.mu,
		encoder: l.encoder,
		fields:  fields,
	}
}

// WithContext returns a logger carrying the game and turn IDs found in ctx.
func (l *StructuredLogger) WithContext(ctx context.Context) ContextLogger {
	return l.derive(contextFields(ctx))
}

// WithFields returns a logger with additional fields.
func (l *StructuredLogger) WithFields(fields map[string]interface{}) ContextLogger {
	return l.derive(fields)
}

// WithField returns a logger with an additional field.
func (l *StructuredLogger) WithField(key string, value interface{}) ContextLogger {
	return l.derive(map[string]interface{}{key: value})
}

func (l *StructuredLogger) log(level Level, message string, args ...interface{}) {
	if level < l.GetLevel() {
		return
	}

	msg, kv := splitArgs(message, args)
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Service:   l.service,
		Version:   l.version,
		Message:   msg,
	}

	if _, file, line, ok := runtime.Caller(2); ok {
		entry.Caller = fmt.Sprintf("%s:%d", file, line)
	}

	for k, v := range l.fields {
		switch k {
		case string(gameIDKey):
			entry.GameID, _ = v.(string)
		case string(turnIDKey):
			entry.TurnID, _ = v.(string)
		default:
			if entry.Fields == nil {
				entry.Fields = make(map[string]interface{})
			}
			entry.Fields[k] = v
		}
	}
	for k, v := range kv {
		if entry.Fields == nil {
			entry.Fields = make(map[string]interface{})
		}
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		entry.Fields[k] = v
	}

	l.mu.Lock()
	err := l.encoder.Encode(entry)
	l.mu.Unlock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %s: %s (json encoding failed: %v)\n",
			entry.Timestamp, entry.Level, entry.Message, err)
	}
}

// Debug logs a debug message.
func (l *StructuredLogger) Debug(message string, args ...interface{}) {
	l.log(DebugLevel, message, args...)
}

// Info logs an info message.
func (l *StructuredLogger) Info(message string, args ...interface{}) {
	l.log(InfoLevel, message, args...)
}

// Warn logs a warning message.
func (l *StructuredLogger) Warn(message string, args ...interface{}) {
	l.log(WarnLevel, message, args...)
}

// Error logs an error message.
func (l *StructuredLogger) Error(message string, args ...interface{}) {
	l.log(ErrorLevel, message, args...)
}

// Fatal logs at error level and exits.
func (l *StructuredLogger) Fatal(message string, args ...interface{}) {
	l.log(ErrorLevel, message, args...)
	os.Exit(1)
}

// SetLevel sets the logging level.
func (l *StructuredLogger) SetLevel(level Level) {
	l.levelMu.Lock()
	defer l.levelMu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level.
func (l *StructuredLogger) GetLevel() Level {
	l.levelMu.RLock()
	defer l.levelMu.RUnlock()
	return l.level
}

// splitArgs consumes as many args as message has printf verbs and returns
// the rest as key/value pairs. A trailing unpaired value lands under "extra".
func splitArgs(message string, args []interface{}) (string, map[string]interface{}) {
	if len(args) == 0 {
		return message, nil
	}

	verbs := countVerbs(message)
	if verbs > len(args) {
		verbs = 0
	}
	if verbs > 0 {
		message = fmt.Sprintf(message, args[:verbs]...)
		args = args[verbs:]
	}
	if len(args) == 0 {
		return message, nil
	}

	fields := make(map[string]interface{}, len(args)/2+1)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	if len(args)%2 == 1 {
		fields["extra"] = args[len(args)-1]
	}
	return message, fields
}

func countVerbs(s string) int {
	n := 0
	for i := 0; i < len(s)-1; i++ {
		if s[i] != '%' {
			continue
		}
		if s[i+1] == '%' {
			i++
			continue
		}
		n++
	}
	return n
}
