package log

import (
	"io"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/frer/internal/config"
)

// MultiWriter copies every entry to all its writers. A failing writer does
// not stop the others.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0, 2)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

// AddFile adds a size-rotated log file.
func (m *MultiWriter) AddFile(cfg config.FileOutputConfig) *MultiWriter {
	return m.Add(&lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.Rotation.MaxSizeMB,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAgeDays,
		Compress:   cfg.Rotation.Compress,
	})
}

// Close closes the writers that own a file.
func (m *MultiWriter) Close() error {
	var err error
	for _, w := range m.writers {
		if lj, ok := w.(*lumberjack.Logger); ok {
			if e := lj.Close(); e != nil {
				err = e
			}
		}
	}
	return err
}
