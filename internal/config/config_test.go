package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
port = "/dev/ttyACM3"
baud = 57600
protocol = "legacy"
capacity = 1200
status_interval = 5
capture = true
capture_db = "/path/to/capture.db"
debug = true
`)
	configPath := filepath.Join(tempDir, "ironmon.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("IRONMON_CONFIG", configPath)

	cfg, err := load(nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM3", cfg.Port)
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, "legacy", cfg.Protocol)
	assert.Equal(t, 1200, cfg.Capacity)
	assert.Equal(t, 5, cfg.StatusInterval)
	assert.True(t, cfg.Capture)
	assert.Equal(t, "/path/to/capture.db", cfg.CaptureDB)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Verbose)
}

func TestLoadDefaults(t *testing.T) {
	// Point at an empty directory so no config file is found
	t.Setenv("IRONMON_CONFIG", "")

	cfg, err := load(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultBaud, cfg.Baud)
	assert.Equal(t, DefaultProtocol, cfg.Protocol)
	assert.Equal(t, DefaultCapacity, cfg.Capacity)
	assert.Equal(t, DefaultStatusInterval, cfg.StatusInterval)
	assert.False(t, cfg.Capture)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.Verbose)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
port = "/dev/ttyACM3"
capacity = 1200
`)
	configPath := filepath.Join(tempDir, "ironmon.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("IRONMON_CONFIG", configPath)

	cfg, err := load([]string{"--port", "/dev/ttyUSB7", "--status-interval", "2"})
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB7", cfg.Port, "Expected flag to override file")
	assert.Equal(t, 1200, cfg.Capacity, "Expected file value to survive")
	assert.Equal(t, 2, cfg.StatusInterval)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
This is not a valid TOML file
`)
	configPath := filepath.Join(tempDir, "ironmon.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("IRONMON_CONFIG", configPath)

	_, err = load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read_config_failed")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Port:           DefaultPort,
			Baud:           DefaultBaud,
			Protocol:       DefaultProtocol,
			Capacity:       DefaultCapacity,
			StatusInterval: DefaultStatusInterval,
			CaptureDB:      DefaultCaptureDB,
		}
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Baud = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Capacity = -1
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Protocol = "binary"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Capture = true
	cfg.CaptureDB = ""
	assert.Error(t, cfg.Validate())
}
