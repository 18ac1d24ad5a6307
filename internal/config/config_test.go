package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLIGHTS_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 90000, cfg.FallbackPrice)
	require.Equal(t, 3, cfg.RetryMaxAttempts)
	require.Equal(t, time.Second, cfg.RetryBaseDelay)
	require.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 100, cfg.HTTPMaxConns)
	require.Equal(t, 20, cfg.HTTPMaxIdleConns)
	require.Equal(t, "https://airlabs.co/api/v9", cfg.AirLabsBaseURL)
	require.Equal(t, "https://test.api.amadeus.com", cfg.AmadeusURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLIGHTS_CONFIG", "")
	t.Setenv("FALLBACK_PRICE", "12000")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("AIRLABS_API_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 12000, cfg.FallbackPrice)
	require.Equal(t, 250*time.Millisecond, cfg.RetryBaseDelay)
	require.Equal(t, "k", cfg.AirLabsAPIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "flights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("amadeus_clientid: id\namadeus_clientsecret: secret\nsearch_timeout: 5s\n"), 0o600))
	t.Setenv("FLIGHTS_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "id", cfg.AmadeusClientId)
	require.Equal(t, "secret", cfg.AmadeusClientSecret)
	require.Equal(t, 5*time.Second, cfg.SearchTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FLIGHTS_CONFIG", "")

	t.Setenv("SEARCH_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("SEARCH_TIMEOUT", "10s")
	t.Setenv("FALLBACK_PRICE", "0")
	_, err = Load()
	require.Error(t, err)
}

func TestMissingCredentials(t *testing.T) {
	cfg := &Config{AirLabsAPIKey: "k", AmadeusClientId: "id"}
	require.Equal(t, []string{"amadeus_clientsecret", "jwt_secret"}, cfg.MissingCredentials())

	cfg = &Config{AirLabsAPIKey: "k", AmadeusClientId: "id", AmadeusClientSecret: "s", JWTSecret: "j"}
	require.Empty(t, cfg.MissingCredentials())
}
