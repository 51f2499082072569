package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestStdLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewCustomLogger(&buf, LevelWarn)

	l.Debug("debug %d", 1)
	l.Info("info %d", 2)
	assert.Empty(t, buf.String())

	l.Warn("warn %d", 3)
	l.Error("error %d", 4)
	out := buf.String()
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "NONE", LevelNone.String())
}

func TestGologLogger(t *testing.T) {
	var buf bytes.Buffer
	gl := golog.New()
	gl.SetOutput(&buf)

	l := NewGologLogger(gl)
	l.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, l.GetLevel())

	l.Info("hello %s", "world")
	assert.Contains(t, buf.String(), "hello world")
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	SetDefault(NopLogger{})
	// Should not panic and produce no output.
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")
	assert.IsType(t, NopLogger{}, Default())
}
