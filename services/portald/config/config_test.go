package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portald.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "listen: \"127.0.0.1:9000\"\n"))
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ListenAddress)
	require.Equal(t, "./portal.toml", cfg.ProtocolConfig)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout.Duration)
	require.Equal(t, float64(600), cfg.RateLimit.RequestsPerMinute)
	require.Equal(t, 20, cfg.RateLimit.Burst)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadParsesDurationsAndSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
listen: ":7081"
protocol_config: /etc/portal/portal.toml
journal: /var/lib/portald/journal.sqlite
shutdown_timeout: 30s
rate_limit:
  requests_per_minute: 60
  burst: 2
log:
  level: debug
  file: /var/log/portald.log
  compress: true
telemetry:
  enabled: true
  endpoint: otel:4318
  sample_ratio: 0.25
  headers:
    authorization: token
`))
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, cfg.ShutdownTimeout.Duration)
	require.Equal(t, "/etc/portal/portal.toml", cfg.ProtocolConfig)
	require.Equal(t, 2, cfg.RateLimit.Burst)
	require.True(t, cfg.Log.Compress)
	require.Equal(t, 100, cfg.Log.MaxSizeMB)
	require.True(t, cfg.Telemetry.Enabled)
	require.Equal(t, "token", cfg.Telemetry.Headers["authorization"])
	require.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad duration":   "shutdown_timeout: soon\n",
		"negative burst": "rate_limit:\n  burst: -1\n",
		"unknown key":    "validator_key: abc\n",
		"duration map":   "shutdown_timeout:\n  seconds: 3\n",
		"sample ratio":   "telemetry:\n  sample_ratio: 2\n",
	}
	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
