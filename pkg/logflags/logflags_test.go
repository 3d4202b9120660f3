package logflags

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	defer Close()

	assert.Equal(t, errLogstrWithoutLog, Setup(false, "line"))
	require.NoError(t, Setup(false, ""))
	assert.False(t, Symbol())

	require.NoError(t, Setup(true, ""))
	assert.True(t, Symbol())
	assert.False(t, Line())

	require.NoError(t, Setup(true, "line, elf"))
	assert.True(t, Line())
	assert.True(t, ELF())
	assert.False(t, DWARF())

	assert.Error(t, Setup(true, "gdbwire"))
}

func TestLoggerLevels(t *testing.T) {
	defer Close()

	buf := new(bytes.Buffer)
	SetOutput(buf)
	require.NoError(t, Setup(true, "line"))

	LineLogger().Debugf("visible %d", 1)
	DWARFLogger().Debugf("hidden %d", 2)

	assert.Contains(t, buf.String(), "visible 1")
	assert.Contains(t, buf.String(), "layer=line")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestErrorLogger(t *testing.T) {
	defer Close()

	buf := new(bytes.Buffer)
	SetOutput(buf)
	require.NoError(t, Setup(false, ""))

	ErrorLogger().Debugf("hidden %d", 1)
	ErrorLogger().Errorf("bad form %d", 2)
	SessionLogger().Errorf("hidden %d", 3)

	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), "bad form 2")
	assert.NotContains(t, buf.String(), "hidden")

	buf.Reset()
	require.NoError(t, Setup(true, "session"))
	ErrorLogger().Debugf("visible %d", 4)
	assert.Contains(t, buf.String(), "visible 4")
}
