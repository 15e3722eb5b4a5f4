package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, Config{
		DB:        "vault.db",
		Capacity:  100,
		LogLevel:  "info",
		LogFormat: "text",
	}, cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("VAULT_DB", "/tmp/ledger.db")
	t.Setenv("VAULT_CAPACITY", "0")
	t.Setenv("VAULT_LOG_LEVEL", "debug")
	t.Setenv("VAULT_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/ledger.db", cfg.DB)
	assert.Equal(t, 0, cfg.Capacity)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"capacity not a number", "VAULT_CAPACITY", "lots", "parse env:"},
		{"negative capacity", "VAULT_CAPACITY", "-1", "VAULT_CAPACITY must be >= 0"},
		{"unknown level", "VAULT_LOG_LEVEL", "chatty", "invalid log level"},
		{"unknown format", "VAULT_LOG_FORMAT", "xml", "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "got %v", err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger(&buf, "json", slog.LevelInfo)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("step committed", "vault", "v-1", "seq", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "step committed", record["msg"])
	assert.Equal(t, "v-1", record["vault"])
	assert.Equal(t, float64(3), record["seq"])

	_, err = NewLogger(&buf, "yaml", slog.LevelInfo)
	assert.Error(t, err)
}
