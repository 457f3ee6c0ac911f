package logging

import (
	"io"
	"os"
	"strings"

	"github.com/dmmcquay/chess-arbiter/internal/config"
)

// LogFormat represents the log output format.
type LogFormat string

const (
	// FormatText is the traditional text format.
	FormatText LogFormat = "text"
	// FormatJSON is structured JSON format.
	FormatJSON LogFormat = "json"
)

// Config represents logging configuration.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	Prefix  string
	File    *config.FileConfig
	// Output overrides stderr; used by tests.
	Output io.Writer
}

// NewLoggerFromConfig builds the process logger. The returned closer is
// non-nil only when a log file was opened.
func NewLoggerFromConfig(cfg *Config) (ContextLogger, io.Closer) {
	format := LogFormat(strings.ToLower(string(cfg.Format)))
	if format == "" {
		format = FormatJSON
	}

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}

	var fileWriter *FileWriter
	if cfg.File != nil && cfg.File.Enabled && cfg.File.Path != "" {
		fw, err := NewFileWriter(cfg.File.Path, cfg.File.MaxSize, cfg.File.MaxBackups, cfg.File.MaxAge)
		if err != nil {
			NewLoggerWithWriter(out, cfg.Prefix, "error").Error("Failed to create file writer: %v", err)
		} else {
			fileWriter = fw
			out = NewMultiWriter(out, fw)
		}
	}

	var logger ContextLogger
	switch format {
	case FormatText:
		logger = NewLoggerAdapter(NewLoggerWithWriter(out, cfg.Prefix, cfg.Level))
	default:
		logger = NewStructuredLoggerWithWriter(out, cfg.Service, cfg.Version, cfg.Level)
	}

	if fileWriter != nil {
		return logger, fileWriter
	}
	return logger, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() ContextLogger {
	return NewLoggerAdapter(NewLoggerWithWriter(io.Discard, "", "error"))
}
