package log

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestLevels(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Debug("hidden debug")
	Info("hidden info")
	Warn("rule dropped", "token", "BYDAY=ZZ")
	Error("decode failed", errors.New("boom"), "id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] rule dropped token=BYDAY=ZZ")
	assert.Contains(t, out, "[ERROR] decode failed err=boom id=7")
}

func TestKeyValueFormatting(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	Debug("event saved", "title", "Linear Algebra", 42, "skipped", "dangling")

	out := buf.String()
	assert.Contains(t, out, `title="Linear Algebra"`)
	assert.NotContains(t, out, "skipped")
	assert.NotContains(t, out, "dangling")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{
		"":       LevelInfo,
		"debug":  LevelDebug,
		" Warn ": LevelWarn,
		"ERROR":  LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
