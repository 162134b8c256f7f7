package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Level
		wantErr  bool
	}{
		{"", log.InfoLevel, false},
		{"debug", log.DebugLevel, false},
		{"WARN", log.WarnLevel, false},
		{" error ", log.ErrorLevel, false},
		{"chatty", log.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestConfigureWritesToFile(t *testing.T) {
	saved := Logger
	t.Cleanup(func() {
		_ = Close()
		Logger = saved
	})

	path := filepath.Join(t.TempDir(), "listener.log")
	require.NoError(t, Configure("debug", path))

	Debug("connecting", "addr", "localhost:5000")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "connecting")
	assert.Contains(t, string(data), "addr=localhost:5000")
}

func TestConfigureRejectsBadLevel(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	assert.Error(t, Configure("loud", ""))
	assert.Same(t, saved, Logger)
}

func TestWithCarriesFields(t *testing.T) {
	saved := Logger
	t.Cleanup(func() { Logger = saved })

	var buf bytes.Buffer
	SetOutput(&buf)
	With("component", "supervisor").Info("state changed")

	assert.Contains(t, buf.String(), "component=supervisor")
	assert.Contains(t, buf.String(), "state changed")
}
