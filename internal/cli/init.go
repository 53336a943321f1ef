package cli

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/erazemk/komponente/internal/auth"
	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/model"
	"github.com/erazemk/komponente/internal/store"
)

// errAlreadyInitialised is returned by init when the database has users.
var errAlreadyInitialised = errors.New("database already initialised")

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	AdminUser string
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and the first admin account",
		Long: `Create the database schema and an admin account with a random password.

The password is printed once and cannot be recovered. Fails if the database
already has users.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.AdminUser, "user", "u", "", "admin username (default from config)")

	return cmd
}

func runInit(cmd *cobra.Command, opts *InitOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("user") {
		cfg.AdminUser = opts.AdminUser
	}
	dialect, err := cfg.Dialect()
	if err != nil {
		return err
	}

	database, err := db.Open(dialect, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.EnsureSchema(database, dialect); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}

	password, created, err := bootstrapAdmin(cmd.Context(), database, cfg.AdminUser)
	if err != nil {
		return err
	}
	if !created {
		return errAlreadyInitialised
	}

	printInitResult(cmd.OutOrStdout(), cfg.Database.DSN, cfg.AdminUser, password)
	return nil
}

// bootstrapAdmin creates the admin account with a random password when the
// database has no users yet. created reports whether an account was made.
func bootstrapAdmin(ctx context.Context, database *sql.DB, username string) (password string, created bool, err error) {
	users, err := store.ListUsers(ctx, database)
	if err != nil {
		return "", false, err
	}
	if len(users) > 0 {
		return "", false, nil
	}

	password, err = generatePassword(16)
	if err != nil {
		return "", false, fmt.Errorf("generating password: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", false, err
	}

	if _, err := store.CreateUser(ctx, database, username, hash, model.RoleAdmin, nil); err != nil {
		return "", false, fmt.Errorf("creating admin user: %w", err)
	}
	return password, true, nil
}

// printInitResult prints the database initialization result.
func printInitResult(w io.Writer, dsn, username, password string) {
	fmt.Fprintf(w, "Database ready: %s\n", dsn)
	fmt.Fprintln(w, "Schema initialized.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Admin account created:")
	fmt.Fprintf(w, "  Username: %s\n", username)
	fmt.Fprintf(w, "  Password: %s\n", password)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Save this password, it cannot be recovered.")
	fmt.Fprintln(w, "The admin can change it after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
