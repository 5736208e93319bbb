package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "obci-gateway", cfg.App.Name)
	assert.Equal(t, ":3000", cfg.TCP.Addr)
	assert.Equal(t, 64, cfg.TCP.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.TCP.ReadTimeout)
	assert.Equal(t, "serial", cfg.Decoder.Transport)
	assert.Equal(t, []float64{24, 24, 24, 24, 24, 24, 24, 24}, cfg.Decoder.Gains)
	assert.Equal(t, 4096, cfg.Decoder.MaxBuffer)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(100000), cfg.Redis.StreamMaxLen)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 5, cfg.Sink.BreakerThreshold)
	assert.Equal(t, 10*time.Second, cfg.Sink.SessionTimeout)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gw.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  env: prod
tcp:
  addr: ":4000"
decoder:
  transport: wifi
  gains: [24, 24, 12, 12]
  timeOffset: 80ms
redis:
  enabled: true
`), 0o600))

	t.Setenv("OBCI_TCP_MAXCONNECTIONS", "8")
	t.Setenv("OBCI_SERIAL_PORT", "/dev/ttyACM0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, ":4000", cfg.TCP.Addr)
	assert.Equal(t, 8, cfg.TCP.MaxConnections)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, "wifi", cfg.Decoder.Transport)
	assert.Equal(t, []float64{24, 24, 12, 12}, cfg.Decoder.Gains)
	assert.Equal(t, 80*time.Millisecond, cfg.Decoder.TimeOffset)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
