// Package config loads the komponente YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/erazemk/komponente/internal/db"
)

// Blob backends.
const (
	BlobSQL   = "sql"
	BlobRedis = "redis"
)

// Config is the server configuration. Zero values are filled by Default.
type Config struct {
	Addr      string   `yaml:"addr"`
	LogFile   string   `yaml:"log_file"`
	AdminUser string   `yaml:"admin_user"`
	Database  Database `yaml:"database"`
	Blob      Blob     `yaml:"blob"`
	Tenancy   Tenancy  `yaml:"tenancy"`
	Guard     Guard    `yaml:"guard"`
}

// Database selects the SQL backend.
type Database struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Blob selects where component images are stored.
type Blob struct {
	Backend     string `yaml:"backend"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// Tenancy controls company scoping.
type Tenancy struct {
	FullCompanySupport bool `yaml:"full_company_support"`
}

// Guard tunes the quantity mutation guard.
type Guard struct {
	MaxConflictRetries int `yaml:"max_conflict_retries"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Addr:      ":8080",
		AdminUser: "Admin",
		Database: Database{
			Driver: string(db.SQLite),
			DSN:    "komponente.sqlite3",
		},
		Blob: Blob{
			Backend:     BlobSQL,
			RedisPrefix: "komponente:blob:",
		},
		Guard: Guard{MaxConflictRetries: 3},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Dialect returns the parsed database driver.
func (c Config) Dialect() (db.Dialect, error) {
	return db.ParseDialect(c.Database.Driver)
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if _, err := c.Dialect(); err != nil {
		return err
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	switch c.Blob.Backend {
	case BlobSQL:
	case BlobRedis:
		if c.Blob.RedisAddr == "" {
			return errors.New("blob.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported blob backend %q", c.Blob.Backend)
	}
	if c.Guard.MaxConflictRetries < 1 {
		return errors.New("guard.max_conflict_retries must be at least 1")
	}
	return nil
}
