package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how logs are written
type Options struct {
	Level  string
	Format string // "json" or "text"
	// File, when set, receives JSON logs rotated by size instead of the console
	File string
	// Console defaults to stderr; stdout is kept for command output
	Console io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds the process logger. The returned closer flushes the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: level})), lj, nil
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(console, &slog.HandlerOptions{Level: level})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(console, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isTerminal(console),
		})
	}
	return slog.New(handler), nopCloser{}, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
