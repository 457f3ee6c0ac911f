package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LoggerAdapter lets the text Logger satisfy ContextLogger.
type LoggerAdapter struct {
	*Logger
	fields map[string]interface{}
}

// NewLoggerAdapter wraps a text logger.
func NewLoggerAdapter(logger *Logger) *LoggerAdapter {
	return &LoggerAdapter{
		Logger: logger,
		fields: make(map[string]interface{}),
	}
}

func (l *LoggerAdapter) derive(extra map[string]interface{}) *LoggerAdapter {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &LoggerAdapter{Logger: l.Logger, fields: fields}
}

func (l *LoggerAdapter) WithContext(ctx context.Context) ContextLogger {
	return l.derive(contextFields(ctx))
}

func (l *LoggerAdapter) WithField(key string, value interface{}) ContextLogger {
	return l.derive(map[string]interface{}{key: value})
}

func (l *LoggerAdapter) WithFields(fields map[string]interface{}) ContextLogger {
	return l.derive(fields)
}

func (l *LoggerAdapter) Debug(format string, args ...interface{}) {
	l.Logger.Debug("%s", l.render(format, args))
}

func (l *LoggerAdapter) Info(format string, args ...interface{}) {
	l.Logger.Info("%s", l.render(format, args))
}

func (l *LoggerAdapter) Warn(format string, args ...interface{}) {
	l.Logger.Warn("%s", l.render(format, args))
}

func (l *LoggerAdapter) Error(format string, args ...interface{}) {
	l.Logger.Error("%s", l.render(format, args))
}

func (l *LoggerAdapter) Fatal(format string, args ...interface{}) {
	l.Logger.Fatal("%s", l.render(format, args))
}

// render formats the message and appends every field as key=value, sorted.
func (l *LoggerAdapter) render(format string, args []interface{}) string {
	msg, kv := splitArgs(format, args)

	all := make(map[string]interface{}, len(l.fields)+len(kv))
	for k, v := range l.fields {
		all[k] = v
	}
	for k, v := range kv {
		all[k] = v
	}
	if len(all) == 0 {
		return msg
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, all[k]))
	}
	return fmt.Sprintf("%s [%s]", msg, strings.Join(parts, " "))
}
