package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL backend.
type Dialect string

// Supported dialects.
const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// ParseDialect validates a driver name from configuration.
func ParseDialect(name string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(name)); d {
	case SQLite, MySQL:
		return d, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// ForUpdate returns the row-lock clause appended to locking reads. SQLite
// takes the database write lock at BEGIN (see sqliteDSN) and needs none.
func (d Dialect) ForUpdate() string {
	if d == MySQL {
		return " FOR UPDATE"
	}
	return ""
}

// InsertIgnore returns the dialect's insert-unless-duplicate verb.
func (d Dialect) InsertIgnore() string {
	if d == MySQL {
		return "INSERT IGNORE"
	}
	return "INSERT OR IGNORE"
}

// Open opens a database connection for the given dialect and configures it.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case SQLite:
		db, err := sql.Open("sqlite", sqliteDSN(dsn))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return db, nil
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parsing mysql dsn: %w", err)
		}
		// Timestamps are scanned into time.Time.
		cfg.ParseTime = true
		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db := sql.OpenDB(connector)
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

// sqliteDSN turns a file path into a modernc DSN. Pragmas are set through the
// DSN so that every pooled connection gets them, and transactions start with
// BEGIN IMMEDIATE so the writer lock is held from the first statement.
func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") && strings.Contains(path, "?") {
		return path
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_pragma=synchronous(NORMAL)",
		"_txlock=immediate",
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// Ping verifies the database is reachable.
func Ping(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}
