package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	web "vendordesk/internal/adapters/http"
	"vendordesk/internal/adapters/storage"
	accountStore "vendordesk/internal/adapters/storage/account"
	deletionStore "vendordesk/internal/adapters/storage/deletion"
	notificationStore "vendordesk/internal/adapters/storage/notification"
	"vendordesk/internal/application/orchestrators"
	"vendordesk/internal/application/projector"
	"vendordesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_event", "event", "load_failed", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("internal_error", "event", "server_failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// backend bundles the stores for the configured STORE_BACKEND.
type backend struct {
	requests      deletionStore.Store
	accounts      accountStore.Store
	notifications notificationStore.Store
	tx            storage.TxRunner
	schema        uint
	closers       []func() error
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("internal_error", "event", "close_failed", "error", err)
		}
	}
}

func schemaVersion(db *sql.DB) uint {
	version, dirty, err := storage.SchemaVersion(db)
	if err != nil {
		slog.Warn("internal_error", "event", "schema_version_failed", "error", err)
		return 0
	}
	if dirty {
		slog.Warn("internal_error", "event", "schema_dirty", "version", version)
	}
	return version
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	b := &backend{}
	switch cfg.StoreBackend {
	case config.BackendMemory:
		b.requests = deletionStore.NewMemoryStore()
		b.accounts = accountStore.NewMemoryStore()
		b.notifications = notificationStore.NewMemoryStore()
		b.tx = storage.NewMemoryTxRunner()
		slog.Warn("config_event", "event", "memory_backend", "hint", "state is lost on restart")

	case config.BackendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := storage.MigrateSQLite(db); err != nil {
			b.close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		timed := storage.NewTimedDB(db, cfg.SlowQuery())
		b.requests = deletionStore.NewSQLiteStore(timed)
		b.accounts = accountStore.NewSQLiteStore(timed)
		b.notifications = notificationStore.NewSQLiteStore(timed)
		b.tx = storage.NewSQLTxRunner(timed, true)
		b.schema = schemaVersion(db)

	case config.BackendPostgres:
		if err := storage.MigratePostgres(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		db, err := storage.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		timed := storage.NewTimedDB(db, cfg.SlowQuery())
		b.requests = deletionStore.NewPostgresStore(timed)
		b.accounts = accountStore.NewPostgresStore(timed)
		b.notifications = notificationStore.NewPostgresStore(timed)
		b.tx = storage.NewSQLTxRunner(timed, false)
		b.schema = schemaVersion(db)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if cfg.NotifyBackend == config.NotifyRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			b.close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		b.closers = append(b.closers, client.Close)
		b.notifications = notificationStore.NewRedisStore(client, cfg.RedisPrefix)
	}
	return b, nil
}

func seed(ctx context.Context, cfg *config.Config, accounts accountStore.Store) error {
	deps := orchestrators.SeedDeps{
		AccountStore: accounts,
		GenerateID:   uuid.NewString,
		Now:          time.Now,
	}
	if _, _, err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.SeedAdminInput{
		Email: cfg.AdminEmail,
		Name:  cfg.AdminName,
	}, deps); err != nil {
		return err
	}
	if cfg.SeedDemo && !cfg.IsProduction() {
		if _, err := orchestrators.ExecuteSeedDemoClients(ctx, deps); err != nil {
			return err
		}
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config) error {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	if err := seed(ctx, cfg, b.accounts); err != nil {
		return err
	}

	csrfKey, err := cfg.CSRFKeyBytes()
	if err != nil {
		return err
	}
	srv, err := web.NewServer(web.Deps{
		Requests:      b.requests,
		Accounts:      b.accounts,
		Notifications: b.notifications,
		Projector:     projector.New(b.requests, b.accounts),
		Tx:            b.tx,
	}, web.Options{
		CSRFKey:            csrfKey,
		SecureCookies:      cfg.IsProduction(),
		TrustedOrigins:     cfg.TrustedOriginList(),
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		SessionTTL:         cfg.SessionDuration(),
		SlowRequest:        cfg.SlowRequest(),
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	slog.Info("server_starting",
		"version", version,
		"addr", cfg.HTTPAddr,
		"env", cfg.Env,
		"store", cfg.StoreBackend,
		"notify", cfg.NotifyBackend,
		"schema", b.schema,
		"schema_latest", storage.LatestSchemaVersion(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server_stopping", "reason", "signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
