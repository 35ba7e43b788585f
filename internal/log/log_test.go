package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/frer/internal/config"
	"firestige.xyz/frer/internal/core"
)

func TestDefaultLoggerBeforeInit(t *testing.T) {
	l := GetLogger()
	require.NotNil(t, l)
	assert.True(t, l.IsInfoEnabled())
	assert.False(t, l.IsDebugEnabled())
}

func TestInitWithOutputPattern(t *testing.T) {
	var buf bytes.Buffer
	err := InitWithOutput(config.LogConfig{
		Level:      "debug",
		Pattern:    "[%level] %field %msg",
		TimeFormat: "15:04",
	}, &buf)
	require.NoError(t, err)

	GetLogger().WithFields(map[string]interface{}{"stream": "1", "seq": 7}).Debug("duplicate eliminated")
	GetLogger().Trace("hidden")

	assert.Equal(t, "[DEBUG] seq=7,stream=1 duplicate eliminated\n", buf.String())
	assert.True(t, GetLogger().IsDebugEnabled())
	assert.False(t, GetLogger().IsTraceEnabled())
}

func TestInitWithError(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput(config.LogConfig{Level: "warn", Pattern: "%level %field %msg"}, &buf))

	GetLogger().Info("dropped")
	GetLogger().WithError(errors.New("boom")).Warn("capture failed")

	assert.Equal(t, "WARNING error=boom capture failed\n", buf.String())
}

func TestInitEmptyFieldsTrimmed(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, InitWithOutput(config.LogConfig{Pattern: "%msg %field"}, &buf))

	GetLogger().Info("started")
	assert.Equal(t, "started\n", buf.String())
}

func TestInitInvalidLevel(t *testing.T) {
	err := InitWithOutput(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestInitWithFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frer.log")
	var console bytes.Buffer

	err := InitWithOutput(config.LogConfig{
		Level:   "info",
		Pattern: "%msg",
		File: config.FileOutputConfig{
			Enabled:  true,
			Path:     path,
			Rotation: config.RotationConfig{MaxSizeMB: 1, MaxBackups: 1},
		},
	}, &console)
	require.NoError(t, err)

	GetLogger().Info("to both")

	// Re-init closes the previous file.
	require.NoError(t, InitWithOutput(config.LogConfig{Level: "info"}, &bytes.Buffer{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to both\n", string(data))
	assert.Equal(t, "to both\n", console.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestMultiWriterContinuesOnError(t *testing.T) {
	var buf bytes.Buffer
	w := NewMultiWriter().Add(failingWriter{}).Add(&buf)

	n, err := w.Write([]byte("line"))
	assert.Equal(t, 4, n)
	assert.Error(t, err)
	assert.True(t, strings.HasSuffix(buf.String(), "line"))
}
