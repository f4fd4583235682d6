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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
robot:
  id: robot-1
sender:
  kind: log
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "robot-1", cfg.Robot.ID)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Period)
	assert.Equal(t, 60*time.Second, cfg.Monitor.FetchTimeout)
	assert.Equal(t, "telemetry", cfg.Sender.NATS.SubjectPrefix)
	assert.True(t, cfg.Buffer.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Buffer.MaxAge)
	assert.Equal(t, ":8080", cfg.Health.Address)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
env: dev
robot:
  id: robot-2
monitor:
  period: 3s
  fetch_timeout: 5s
sender:
  kind: http
  url: http://localhost:9000/data
  rate_limit: 2.5
log:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.Monitor.Period)
	assert.Equal(t, 5*time.Second, cfg.Monitor.FetchTimeout)
	assert.Equal(t, "http://localhost:9000/data", cfg.Sender.URL)
	assert.Equal(t, 2.5, cfg.Sender.RateLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"http without url": "robot:\n  id: r\nsender:\n  kind: http\n",
		"unknown sender":   "robot:\n  id: r\nsender:\n  kind: carrier-pigeon\n",
		"negative period":  "robot:\n  id: r\nsender:\n  kind: log\nmonitor:\n  period: -1s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
