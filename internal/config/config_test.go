package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("API_URL", "")
	t.Setenv("MAX_RETRIES", "")

	cfg := config.Load()

	assert.Equal(t, "http://localhost:3333", cfg.APIURL)
	assert.Equal(t, 0, cfg.MaxRetries, "reads are not retried unless configured")
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "/me", cfg.ProfilePath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("QUERY_STALE_TIME", "1m")
	t.Setenv("PORT", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, time.Minute, cfg.StaleTime)
	assert.Equal(t, 8080, cfg.Port, "invalid ints fall back to the default")
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("API_URL=http://from-file\nCOOKIE_SECRET=\"from file\"\n"), 0o600))

	t.Setenv("API_URL", "http://from-env")
	t.Setenv("COOKIE_SECRET", "")
	os.Unsetenv("COOKIE_SECRET")

	require.NoError(t, config.LoadDotEnv(path))

	assert.Equal(t, "http://from-env", os.Getenv("API_URL"))
	assert.Equal(t, "from file", os.Getenv("COOKIE_SECRET"))
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
