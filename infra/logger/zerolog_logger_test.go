package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.DebugLevel, true)
	defer SetOutput(os.Stdout, zerolog.InfoLevel, false)

	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
	assert.Contains(t, buf.String(), "info test")
}

func TestZerologLogger_LevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, zerolog.WarnLevel, false)
	defer SetOutput(os.Stdout, zerolog.InfoLevel, false)

	l := New("driver")
	l.Infof("dropped")
	l.Warnf("kept %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "driver", entry["component"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "kept 2", entry["message"])
}

func TestSetup(t *testing.T) {
	defer SetOutput(os.Stdout, zerolog.InfoLevel, false)

	_, err := Setup(Config{Level: "loud"})
	assert.Error(t, err)
	_, err = Setup(Config{Format: "xml"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "planner.log")
	closer, err := Setup(Config{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	New("setup").Debugf("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}
