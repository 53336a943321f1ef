package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/komponente/internal/db"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "komponente.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	d, err := cfg.Dialect()
	require.NoError(t, err)
	assert.Equal(t, db.SQLite, d)
	assert.Equal(t, 3, cfg.Guard.MaxConflictRetries)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
addr: 127.0.0.1:9000
database:
  driver: mysql
  dsn: "user:pw@tcp(localhost:3306)/komponente"
blob:
  backend: redis
  redis_addr: localhost:6379
tenancy:
  full_company_support: true
guard:
  max_conflict_retries: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, BlobRedis, cfg.Blob.Backend)
	assert.Equal(t, "localhost:6379", cfg.Blob.RedisAddr)
	assert.True(t, cfg.Tenancy.FullCompanySupport)
	assert.Equal(t, 5, cfg.Guard.MaxConflictRetries)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, "Admin", cfg.AdminUser)
	assert.Equal(t, "komponente:blob:", cfg.Blob.RedisPrefix)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "addr: [unterminated"},
		{"unknown driver", "database:\n  driver: postgres\n"},
		{"redis without addr", "blob:\n  backend: redis\n"},
		{"unknown blob backend", "blob:\n  backend: s3\n"},
		{"zero retries", "guard:\n  max_conflict_retries: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
