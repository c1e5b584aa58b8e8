package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "host=localhost")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_EXPIRES_MIN", "")
	t.Setenv("S3_BUCKET_NAME", "")

	cfg := Load()
	assert.Equal(t, "host=localhost", cfg.DBDSN)
	assert.Equal(t, 10080, cfg.JWTExpiresMin)
	assert.Equal(t, "plan-images", cfg.S3.BucketName)
	assert.Equal(t, 60, cfg.TokenTTLMin)
	assert.False(t, cfg.IsProd())
}

func TestLoadPanicsWithoutSecret(t *testing.T) {
	t.Setenv("DB_DSN", "host=localhost")
	t.Setenv("JWT_SECRET", "")

	assert.PanicsWithValue(t, "missing env: JWT_SECRET", func() { Load() })
}
