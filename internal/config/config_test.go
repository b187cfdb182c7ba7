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
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	conf, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), conf)
	assert.Equal(t, 10*time.Second, conf.PollInterval)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
beo:
  url: https://beo.example.com/api/
  timeout: 5s
  page_size: 100
poll_interval: 3s
notification_ttl: 10s
journal: /var/lib/dashboard/journal.db
logging:
  level: debug
  format: JSON
retry:
  max_attempts: 0
  initial_delay: 250ms
  backoff_factor: 1.5
`)
	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", conf.Listen)
	assert.Equal(t, "beo.example.com", conf.BEO.BaseURL.Host)
	assert.Equal(t, 5*time.Second, conf.BEO.Timeout)
	assert.Equal(t, 100, conf.BEO.PageSize)
	assert.Equal(t, 3*time.Second, conf.PollInterval)
	assert.Equal(t, 10*time.Second, conf.NotificationTTL)
	assert.Equal(t, "/var/lib/dashboard/journal.db", conf.JournalPath)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "JSON", conf.LogFormat)
	assert.Equal(t, 0, conf.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, conf.Retry.InitialDelay)
	assert.Equal(t, 1.5, conf.Retry.BackoffFactor)
	// untouched keys keep their defaults
	assert.Equal(t, "web/dist", conf.StaticDir)
	assert.Equal(t, 30*time.Second, conf.Retry.MaxDelay)
}

func TestInvalidDurationFallsBack(t *testing.T) {
	conf, err := Load(writeConfig(t, "poll_interval: soon\n"))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, conf.PollInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	for name, body := range map[string]string{
		"relative url":   "beo:\n  url: /api\n",
		"negative page":  "beo:\n  page_size: -1\n",
		"shrinking back": "retry:\n  backoff_factor: 0.5\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "listen: \":9090\"\npoll_interval: 3s\n")
	t.Setenv("DASHBOARD_LISTEN", ":7070")
	t.Setenv("DASHBOARD_BEO_URL", "http://beo.internal:8000/")
	t.Setenv("DASHBOARD_PAGE_SIZE", "20")

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", conf.Listen)
	assert.Equal(t, "beo.internal:8000", conf.BEO.BaseURL.Host)
	assert.Equal(t, 20, conf.BEO.PageSize)
	assert.Equal(t, 3*time.Second, conf.PollInterval)

	t.Setenv("DASHBOARD_PAGE_SIZE", "many")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
