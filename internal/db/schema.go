package db

import (
	"database/sql"
	"fmt"
)

// sqliteSchema is the full SQLite schema, one statement per entry.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    company_id    INTEGER REFERENCES companies(id),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS components (
    id              INTEGER PRIMARY KEY,
    name            TEXT NOT NULL,
    category_id     INTEGER,
    location_id     INTEGER,
    company_id      INTEGER REFERENCES companies(id),
    manufacturer_id INTEGER,
    supplier_id     INTEGER,
    model_number    TEXT,
    order_number    TEXT,
    serial          TEXT NOT NULL DEFAULT '',
    notes           TEXT,
    purchase_date   TEXT,
    purchase_cost   TEXT,
    min_amt         INTEGER,
    qty             INTEGER NOT NULL CHECK (qty >= 0),
    image           TEXT,
    created_by      INTEGER REFERENCES users(id),
    version         INTEGER NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at      DATETIME
)`,
	`CREATE INDEX IF NOT EXISTS idx_components_company ON components(company_id)`,
	`CREATE TABLE IF NOT EXISTS allocations (
    id            INTEGER PRIMARY KEY,
    component_id  INTEGER NOT NULL REFERENCES components(id),
    assigned_type TEXT NOT NULL CHECK (assigned_type IN ('asset', 'user')),
    assigned_to   INTEGER NOT NULL,
    quantity      INTEGER NOT NULL CHECK (quantity > 0),
    note          TEXT,
    created_by    INTEGER REFERENCES users(id),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    checked_in_at DATETIME
)`,
	`CREATE INDEX IF NOT EXISTS idx_allocations_active
    ON allocations(component_id) WHERE checked_in_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS blobs (
    blob_key   TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS settings (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
)`,
}

// mysqlSchema mirrors sqliteSchema for MySQL 8.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
    id         BIGINT AUTO_INCREMENT PRIMARY KEY,
    name       VARCHAR(255) NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS users (
    id            BIGINT AUTO_INCREMENT PRIMARY KEY,
    username      VARCHAR(255) NOT NULL,
    password_hash VARCHAR(255) NOT NULL,
    role          VARCHAR(16) NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'manager', 'user')),
    company_id    BIGINT NULL REFERENCES companies(id),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME NULL,
    active_username VARCHAR(255) AS (IF(deleted_at IS NULL, username, NULL)) STORED,
    UNIQUE KEY idx_users_username_active (active_username)
)`,
	`CREATE TABLE IF NOT EXISTS components (
    id              BIGINT AUTO_INCREMENT PRIMARY KEY,
    name            VARCHAR(255) NOT NULL,
    category_id     BIGINT NULL,
    location_id     BIGINT NULL,
    company_id      BIGINT NULL REFERENCES companies(id),
    manufacturer_id BIGINT NULL,
    supplier_id     BIGINT NULL,
    model_number    VARCHAR(255) NULL,
    order_number    VARCHAR(255) NULL,
    serial          VARCHAR(255) NOT NULL DEFAULT '',
    notes           TEXT NULL,
    purchase_date   VARCHAR(10) NULL,
    purchase_cost   DECIMAL(24,4) NULL,
    min_amt         INT NULL,
    qty             INT NOT NULL CHECK (qty >= 0),
    image           VARCHAR(255) NULL,
    created_by      BIGINT NULL REFERENCES users(id),
    version         BIGINT NOT NULL DEFAULT 0,
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at      DATETIME NULL,
    KEY idx_components_company (company_id)
)`,
	`CREATE TABLE IF NOT EXISTS allocations (
    id            BIGINT AUTO_INCREMENT PRIMARY KEY,
    component_id  BIGINT NOT NULL REFERENCES components(id),
    assigned_type VARCHAR(16) NOT NULL CHECK (assigned_type IN ('asset', 'user')),
    assigned_to   BIGINT NOT NULL,
    quantity      INT NOT NULL CHECK (quantity > 0),
    note          TEXT NULL,
    created_by    BIGINT NULL REFERENCES users(id),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    checked_in_at DATETIME NULL,
    KEY idx_allocations_component (component_id, checked_in_at)
)`,
	`CREATE TABLE IF NOT EXISTS blobs (
    blob_key   VARCHAR(255) PRIMARY KEY,
    data       LONGBLOB NOT NULL,
    mime       VARCHAR(64) NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS settings (
    name  VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        VARCHAR(64) PRIMARY KEY,
    expires_at DATETIME NOT NULL
)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB, dialect Dialect) error {
	statements := sqliteSchema
	if dialect == MySQL {
		statements = mysqlSchema
	}

	for i, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema (statement %d): %w", i+1, err)
		}
	}
	return nil
}
