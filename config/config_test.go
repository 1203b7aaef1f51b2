package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("APP_PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("STORAGE_DRIVER", "")

	c, err := Read(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "5000", c.AppPort)
	assert.Equal(t, 72, c.TokenTTLHours)
	assert.Equal(t, "local", c.StorageDriver)
	assert.Equal(t, 5, c.MaxAttachmentSizeMB)
	assert.Equal(t, 10, c.MaxAttachments)
	assert.Contains(t, c.AllowedOrigins, "http://localhost:3000")
}

func TestReadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{
		"app": {"port": "8080", "allowed_origins": ["https://a.example"]},
		"database": {"driver": "MEMORY"},
		"storage": {"driver": "s3", "s3_bucket": "posts"}
	}`), 0o644))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", "https://b.example, https://c.example")

	c, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "9090", c.AppPort)
	assert.Equal(t, "from-env", c.JWTSecret)
	assert.Equal(t, "memory", c.DBDriver)
	assert.Equal(t, "s3", c.StorageDriver)
	assert.Equal(t, "posts", c.S3Bucket)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, c.AllowedOrigins)
}

func TestReadRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{not json`), 0o644))
	_, err := Read(dir)
	assert.Error(t, err)
}
