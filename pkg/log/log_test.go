package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		wantLevel   Level
		wantJSON    bool
	}{
		{
			name:        "non-production environment",
			environment: NonProductionEnvironment,
			wantLevel:   DebugLevel,
			wantJSON:    false,
		},
		{
			name:        "production environment",
			environment: "production",
			wantLevel:   InfoLevel,
			wantJSON:    true,
		},
		{
			name:        "empty environment",
			environment: "",
			wantLevel:   InfoLevel,
			wantJSON:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			log := New(tt.environment, "netlogctl", &buf)
			require.NotNil(t, log)
			assert.Equal(t, tt.wantLevel, log.GetLevel())

			log.WithField("path", "netlog.json").Warn("failed opening netlog file")
			require.NoError(t, log.Sync())

			line := strings.TrimSpace(buf.String())
			assert.Contains(t, line, "failed opening netlog file")
			assert.Contains(t, line, "netlogctl")
			assert.Contains(t, line, "netlog.json")
			assert.Equal(t, tt.wantJSON, json.Valid([]byte(line)), line)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := New("production", "netlogctl", &buf)
	log.Debug("hidden")
	log.WithError(errors.New("disk full")).Error("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Contains(t, out, "disk full")
}

func TestWithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer

	parent := New("production", "netlogctl", &buf)
	child := parent.WithFields(Field{Key: "slot", Value: 3})

	parent.Info("parent")
	child.Info("child")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "slot")
	assert.Contains(t, lines[1], `"slot":3`)
}

func TestSyncRegularFile(t *testing.T) {
	file, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)

	defer file.Close()

	log := New("production", "netlogctl", file)
	log.Info("written")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "written")
}

func TestNoop(t *testing.T) {
	log := NewNoop()
	log.WithError(errors.New("ignored")).WithField("k", "v").Error("nothing")

	assert.Equal(t, InfoLevel, log.GetLevel())
	require.NoError(t, log.Sync())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARN", WarnLevel.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
	assert.True(t, ErrorLevel.IsValid())
	assert.False(t, Level(42).IsValid())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	file, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	require.NoError(t, err)

	defer file.Close()

	assert.False(t, IsTerminal(file))
}
