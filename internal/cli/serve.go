package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/erazemk/komponente/internal/api"
	"github.com/erazemk/komponente/internal/blob"
	"github.com/erazemk/komponente/internal/component"
	"github.com/erazemk/komponente/internal/config"
	"github.com/erazemk/komponente/internal/db"
	"github.com/erazemk/komponente/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr      string
	AdminUser string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the komponente HTTP API.

An empty database is initialised on first start and the generated admin
password is printed once.

Example:
  komponente serve --addr :8080 --db ./komponente.sqlite3
  komponente serve --config /etc/komponente.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Addr, "addr", "a", "", "listen address (default from config)")
	cmd.Flags().StringVarP(&opts.AdminUser, "user", "u", "", "admin username on first run (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = opts.Addr
	}
	if cmd.Flags().Changed("user") {
		cfg.AdminUser = opts.AdminUser
	}

	closeLog, err := setupLogger(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialect, err := cfg.Dialect()
	if err != nil {
		return err
	}

	database, err := db.Open(dialect, cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return err
	}
	defer database.Close()

	if err := db.EnsureSchema(database, dialect); err != nil {
		slog.Error("failed to ensure database schema", "error", err)
		return err
	}

	password, created, err := bootstrapAdmin(ctx, database, cfg.AdminUser)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		return err
	}
	if created {
		printInitResult(cmd.OutOrStdout(), cfg.Database.DSN, cfg.AdminUser, password)
	}

	slog.Info("database ready", "driver", dialect)

	jwtSecret, err := store.GetJWTSecret(ctx, database, dialect)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		return err
	}

	blobs, closeBlobs, err := newBlobStore(ctx, cfg.Blob, database)
	if err != nil {
		slog.Error("failed to set up blob store", "backend", cfg.Blob.Backend, "error", err)
		return err
	}
	defer closeBlobs()

	handler := newHandler(cfg, database, dialect, jwtSecret, blob.NewResolver(blobs))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

// newHandler wires the component service and the API router.
func newHandler(cfg config.Config, database *sql.DB, dialect db.Dialect, jwtSecret string, images *blob.Resolver) http.Handler {
	svc := component.NewService(database, dialect, images)
	svc.SetCompanyScope(component.CompanyScope{FullCompanySupport: cfg.Tenancy.FullCompanySupport})
	svc.MaxConflictRetries = cfg.Guard.MaxConflictRetries

	return api.LoggingMiddleware(api.NewRouter(database, dialect, jwtSecret, svc, images))
}

// newBlobStore returns the configured image backend and a cleanup function.
func newBlobStore(ctx context.Context, cfg config.Blob, database *sql.DB) (blob.Store, func(), error) {
	switch cfg.Backend {
	case config.BlobRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return blob.NewRedisStore(client, cfg.RedisPrefix), func() { client.Close() }, nil
	case config.BlobSQL, "":
		return blob.NewSQLStore(database), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported blob backend %q", cfg.Backend)
	}
}
