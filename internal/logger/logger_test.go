package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNew_WritesJSONToConfiguredPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	log, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.With(Component("test")).Info("cycle finished", Int("new", 2), Err(errors.New("boom")))
	log.Debug("hidden")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	assert.Contains(t, out, `"msg":"cycle finished"`)
	assert.Contains(t, out, `"component":"test"`)
	assert.Contains(t, out, `"new":2`)
	assert.NotContains(t, out, "hidden")
}

func TestNop(t *testing.T) {
	log := NewNop()
	log.With(String("k", "v")).Error("ignored")
	assert.NoError(t, log.Sync())
}
