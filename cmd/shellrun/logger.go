package main

import (
	"io"
	"log/slog"

	"github.com/npratt/shellrun/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileLoggerResult contains the results of setting up file logging.
type FileLoggerResult struct {
	Logger   *slog.Logger
	LogFile  io.WriteCloser
	FilePath string
}

// Close closes the log file if it was opened.
func (r *FileLoggerResult) Close() error {
	if r.LogFile != nil {
		return r.LogFile.Close()
	}
	return nil
}

// SetupFileLogger creates a logger that writes to a rotating file instead of
// stderr, so log lines never land on top of the TUI. Missing directories are
// created on first write.
func SetupFileLogger(path string, level slog.Leveler, rotationCfg config.LogRotationConfig) *FileLoggerResult {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rotationCfg.MaxSizeMB,
		MaxBackups: rotationCfg.MaxBackups,
		MaxAge:     rotationCfg.MaxAgeDays,
		Compress:   rotationCfg.Compress,
	}

	return &FileLoggerResult{
		Logger:   SetupLoggerWithWriter(w, level),
		LogFile:  w,
		FilePath: path,
	}
}

// SetupLoggerWithWriter creates a JSON logger that writes to w.
func SetupLoggerWithWriter(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
