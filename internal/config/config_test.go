package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MATRIXCI_ADDR", ":9999")
	t.Setenv("MATRIXCI_SERVER_URL", "http://ci.example.com/")
	t.Setenv("MATRIXCI_DEFAULT_PYTHON", "3.8")
	t.Setenv("MATRIXCI_LOG_LEVEL", "DEBUG")
	t.Setenv("MATRIXCI_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, "http://ci.example.com", cfg.ServerURL)
	require.Equal(t, "3.8", cfg.DefaultPython)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MATRIXCI_LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "text", cfg.LogFormat)
	require.NotEmpty(t, cfg.PlanDir)
	require.NotEmpty(t, cfg.KeyDir)
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	t.Setenv("MATRIXCI_LOG_FORMAT", "xml")
	_, err := Load()
	require.ErrorContains(t, err, "invalid log format")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("MATRIXCI_LOG_LEVEL", "loud")
	_, err := Load()
	require.ErrorContains(t, err, "invalid log level")
}
