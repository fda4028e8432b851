// Package log implements structured logging using slog.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/acpipe/internal/config"
)

var (
	mu      sync.Mutex
	closers []io.Closer
)

// Init initializes the global logger based on configuration.
func Init(cfg config.LogConfig) error {
	writers := []io.Writer{os.Stdout}

	var opened []io.Closer
	if cfg.Outputs.File.Enabled {
		w, err := createFileWriter(cfg.Outputs.File)
		if err != nil {
			return fmt.Errorf("failed to create file output: %w", err)
		}
		writers = append(writers, w)
		opened = append(opened, w)
	}

	logger, err := New(cfg, io.MultiWriter(writers...))
	if err != nil {
		return err
	}

	slog.SetDefault(logger)

	// Previous file outputs are closed only once the new logger is installed.
	mu.Lock()
	old := closers
	closers = opened
	mu.Unlock()
	for _, c := range old {
		c.Close()
	}
	return nil
}

// New builds a logger writing to w.
func New(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	case "pattern":
		handler = newPatternHandler(w, level, cfg.Pattern, cfg.TimeFormat)
	default:
		return nil, fmt.Errorf("unsupported log format: %s (must be json, text or pattern)", cfg.Format)
	}

	return slog.New(handler), nil
}

// Flush closes file outputs opened by Init. The default logger keeps
// writing to stdout.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range closers {
		c.Close()
	}
	closers = nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level: %s", levelStr)
	}
}

// createFileWriter creates a lumberjack file writer for log rotation.
func createFileWriter(fc config.FileOutputConfig) (*lumberjack.Logger, error) {
	if fc.Path == "" {
		return nil, fmt.Errorf("file output requires 'path' field")
	}
	return &lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.Rotation.MaxSizeMB,
		MaxBackups: fc.Rotation.MaxBackups,
		MaxAge:     fc.Rotation.MaxAgeDays,
		Compress:   fc.Rotation.Compress,
	}, nil
}
