package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DEDUP_WINDOW", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Development())
	assert.Equal(t, 8083, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Equal(t, 5*time.Second, cfg.DedupWindow)
	assert.Empty(t, cfg.AllowedOrigins)
}

func TestLoadRequiresSecretOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsLongDedupWindow(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DEDUP_WINDOW", "30s")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadParsesOriginsAndSQLite(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DEDUP_WINDOW", "")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DB_DSN", "")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "chat-sync.db", cfg.DBDSN)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
