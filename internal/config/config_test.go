package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into an empty directory so no stray config.yaml is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, Pagination{DefaultPage: 1, DefaultPageSize: 5, MinPageSize: 1, MaxPageSize: 100}, cfg.Pagination)
	assert.Equal(t, "free", cfg.Auth.DefaultTier)
	assert.Equal(t, 365*24*time.Hour, cfg.TLS.ValidFor)
	assert.False(t, cfg.IsDev())
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := chdir(t)
	yaml := []byte(`
environment: dev
db:
  host: db.internal
  name: graphs
auth:
  okta_domain: https://example.okta.com/oauth2/default/
pagination:
  max_page_size: 50
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("NODEBASE_DB_NAME", "from_env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "db.internal", cfg.DB.Host)
	assert.Equal(t, "from_env", cfg.DB.Name)
	assert.Equal(t, 50, cfg.Pagination.MaxPageSize)
	assert.Equal(t, "https://example.okta.com/oauth2/default", cfg.Auth.OktaDomain)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := chdir(t)
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("NODEBASE_AUTH_CLIENT_ID=from-dotenv\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("NODEBASE_AUTH_CLIENT_ID") })

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Auth.ClientID)
}

func TestLoadConfig_MissingEnvFile(t *testing.T) {
	chdir(t)
	_, err := LoadConfig("does-not-exist.env")
	assert.Error(t, err)
}

func TestLoad_RejectsBadPagination(t *testing.T) {
	chdir(t)
	v := viper.New()
	v.Set("pagination.min_page_size", 10)
	v.Set("pagination.max_page_size", 5)

	_, err := Load(v, "")
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownTier(t *testing.T) {
	chdir(t)
	t.Setenv("NODEBASE_AUTH_DEFAULT_TIER", "platinum")

	_, err := LoadConfig("")
	assert.Error(t, err)
}
