package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/erazemk/komponente/internal/db"
)

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one, stores it, and returns it.
// Uses insert-or-ignore + re-SELECT to avoid a TOCTOU race on concurrent startup.
func GetJWTSecret(ctx context.Context, database *sql.DB, d db.Dialect) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := database.ExecContext(ctx,
		d.InsertIgnore()+` INTO settings (name, value) VALUES ('jwt_secret', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing jwt_secret: %w", err)
	}

	// Either our insert or the existing value.
	var secret string
	err = database.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = 'jwt_secret'`,
	).Scan(&secret)
	if err != nil {
		return "", fmt.Errorf("querying jwt_secret: %w", err)
	}

	return secret, nil
}
