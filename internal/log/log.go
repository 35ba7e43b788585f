// Package log is the logging facade used across frer. It is backed by
// logrus and configured from config.LogConfig.
package log

import (
	"io"
	"os"
	"sync"

	"firestige.xyz/frer/internal/config"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

const (
	defaultPattern    = "%time [%level] %field %msg"
	defaultTimeFormat = "2006-01-02 15:04:05.000"
)

var (
	mu     sync.RWMutex
	logger Logger
	output *MultiWriter
)

func init() {
	logger, _ = newLogrusAdapter("info", defaultPattern, defaultTimeFormat, os.Stderr)
}

// GetLogger returns the process logger. Before Init it logs at info level
// to stderr.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Init replaces the process logger. It may be called again, the last call
// wins and the previous log file is closed.
func Init(cfg config.LogConfig) error {
	return InitWithOutput(cfg, os.Stdout)
}

// InitWithOutput is Init with console output sent to w instead of stdout.
func InitWithOutput(cfg config.LogConfig, w io.Writer) error {
	out := NewMultiWriter().Add(w)
	if cfg.File.Enabled {
		out.AddFile(cfg.File)
	}

	l, err := newLogrusAdapter(cfg.Level, cfg.Pattern, cfg.TimeFormat, out)
	if err != nil {
		return err
	}

	mu.Lock()
	previous := output
	logger, output = l, out
	mu.Unlock()

	if previous != nil {
		return previous.Close()
	}
	return nil
}
