package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Read(filepath.Join(t.TempDir(), "absent.json"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.NearestLimit)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "file", cfg.Preview.Backend)
	assert.Positive(t, cfg.Workers)
}

func TestReadFileAndNormalize(t *testing.T) {
	path := writeConfig(t, `{
		"listenAddr": "127.0.0.1:9090",
		"nearestLimit": -3,
		"locale": "de",
		"store": {"backend": "Redis", "redisURL": "redis://cache:6379/1"},
		"preview": {"backend": "minio", "bucket": "photos", "expirySeconds": 0}
	}`)

	cfg, err := Read(path)

	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.ListenAddr)
	assert.Equal(t, 10, cfg.NearestLimit)
	assert.Equal(t, "de", cfg.LanguageTag().String())
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Store.RedisURL)
	assert.Equal(t, "photos", cfg.Preview.Bucket)
	assert.Equal(t, "localhost:9000", cfg.Preview.Endpoint, "unset nested fields keep defaults")
	assert.Equal(t, Default().Preview.Expiry(), cfg.Preview.Expiry())
}

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv("DAMAGEREVIEW_NEAREST_LIMIT", "5")
	t.Setenv("DAMAGEREVIEW_STORE_BACKEND", "postgres")
	t.Setenv("DAMAGEREVIEW_MINIO_USE_SSL", "true")
	t.Setenv("DAMAGEREVIEW_WORKERS", "not-a-number")

	cfg, err := Read(writeConfig(t, `{"workers": 3}`))

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.NearestLimit)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.True(t, cfg.Preview.UseSSL)
	assert.Equal(t, 3, cfg.Workers)
}

func TestReadInvalidLocale(t *testing.T) {
	cfg, err := Read(writeConfig(t, `{"locale": "!!"}`))

	require.NoError(t, err)
	assert.Equal(t, "und", cfg.Locale)
}

func TestReadBadJSON(t *testing.T) {
	_, err := Read(writeConfig(t, `{`))

	assert.Error(t, err)
}

func TestStorePath(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = "/var/lib/review.json"

	path, err := cfg.StorePath()

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/review.json", path)
}
