package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggerOptions configure NewLogger.
type LoggerOptions struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console output instead of JSON
	// File, when set, receives all log output instead of stderr. The TUI
	// owns the terminal, so interactive runs log to a file.
	File string
	// Out overrides the destination, for tests.
	Out io.Writer
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns a structured logger and a close function for any file
// it opened.
func NewLogger(opts LoggerOptions) (zerolog.Logger, func() error, error) {
	closeFn := func() error { return nil }
	out := opts.Out
	if out == nil {
		out = os.Stderr
		if opts.File != "" {
			if dir := filepath.Dir(opts.File); dir != "" {
				if err := os.MkdirAll(dir, 0o750); err != nil {
					return zerolog.Nop(), closeFn, fmt.Errorf("failed to create log directory: %w", err)
				}
			}
			f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return zerolog.Nop(), closeFn, fmt.Errorf("failed to open log file: %w", err)
			}
			out, closeFn = f, f.Close
		}
	}

	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: opts.File != ""}
	}
	log := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger()
	return log, closeFn, nil
}
