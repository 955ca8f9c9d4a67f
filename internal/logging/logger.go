package logging

import (
	"io"
	"os"

	"github.com/alexjoedt/docstore/internal/config"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
)

// New builds the application logger from cfg. Logs go to stderr, and when
// file logging is enabled also to a rotating file. The returned closer
// releases the log file; it is a no-op without one.
func New(cfg config.LogConfig, stderr io.Writer) (zerolog.Logger, io.Closer) {
	if stderr == nil {
		stderr = os.Stderr
	}

	if !cfg.LogToFile {
		return NewLogger(cfg.Debug, stderr), nopCloser{}
	}

	fileLogger := &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}

	logger := NewLogger(cfg.Debug, io.MultiWriter(fileLogger, stderr))
	logger.Info().Str("path", cfg.LogFilePath).Msg("logging to file and stderr")
	return logger, fileLogger
}

// NewLogger creates a JSON zerolog logger writing to output at info level,
// or debug level when debug is set.
func NewLogger(debug bool, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// WithComponent returns a child logger with the component field set.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
