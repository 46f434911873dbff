package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Bus.Kind)
	assert.Equal(t, 3, cfg.Session.InitialWaitMinutes)
	assert.Equal(t, 2*time.Second, cfg.Client.ReconnectBackoff)
}

func TestLoad_OverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
bus:
  kind: kafka
  brokers: ["localhost:9092"]
speech:
  recognize_timeout: 3s
session:
  defaults:
    size: medium
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "kafka", cfg.Bus.Kind)
	assert.Equal(t, 3*time.Second, cfg.Speech.RecognizeTimeout)
	assert.EqualValues(t, "medium", cfg.Session.Defaults.Size)
	assert.EqualValues(t, "standard", cfg.Session.Defaults.Sugar)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: oracle\n"},
		{"rabbitmq without url", "bus:\n  kind: rabbitmq\n"},
		{"redis without addr", "idempotency:\n  kind: redis\n"},
		{"bad speech mode", "speech:\n  mode: overlap\n"},
		{"unknown llm provider", "llm:\n  provider: bard\n"},
		{"azure without endpoint", "llm:\n  provider: azure\n  api_key: az\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("KIOSK_PORT", "7070")
	t.Setenv("KIOSK_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Idempotency.Kind)
}
