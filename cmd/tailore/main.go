package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/erazemk/tailore/internal/api"
	"github.com/erazemk/tailore/internal/auth"
	"github.com/erazemk/tailore/internal/config"
	"github.com/erazemk/tailore/internal/db"
	"github.com/erazemk/tailore/internal/inventory"
	"github.com/erazemk/tailore/internal/lock"
	"github.com/erazemk/tailore/internal/metrics"
	"github.com/erazemk/tailore/internal/model"
	"github.com/erazemk/tailore/internal/ratelimit"
	"github.com/erazemk/tailore/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("tailore", flag.ContinueOnError)

	fs.StringVar(&cfg.DB.Path, "db", cfg.DB.Path, "")
	fs.StringVar(&cfg.DB.Path, "d", cfg.DB.Path, "")

	addr := cfg.App.Addr()
	fs.StringVar(&addr, "addr", addr, "")
	fs.StringVar(&addr, "a", addr, "")

	fs.StringVar(&cfg.App.AdminUser, "user", cfg.App.AdminUser, "")
	fs.StringVar(&cfg.App.AdminUser, "u", cfg.App.AdminUser, "")

	fs.StringVar(&cfg.Log.File, "log", cfg.Log.File, "")
	fs.StringVar(&cfg.Log.File, "l", cfg.Log.File, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: tailore [flags]

Flags override the matching environment variables.

Flags:
  -d, -db <path>          SQLite database path (env DB_PATH, default: data/catalog.db)
  -a, -addr <host:port>   listen address (env PORT, default: :3000)
  -u, -user <name>        admin username on first run (env ADMIN_USER, default: admin)
  -l, -log <path>         log file path (env LOG_FILE, default: stdout/stderr only)
  -h, -help               show this help and exit
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.File, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg, addr, logger); err != nil {
		logger.Error().Err(err).Msg("server exited")
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config, addr string, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	logger.Info().Str("path", cfg.DB.Path).Msg("database ready")

	if err := ensureAdmin(ctx, database, cfg.DB.Path, cfg.App.AdminUser); err != nil {
		return err
	}

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		// Auto-generated on first run and kept in the settings table.
		jwtSecret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return fmt.Errorf("getting JWT secret: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var locker lock.Locker = lock.NewLocal()
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled() {
		limiter = ratelimit.NewLocal(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	if cfg.Redis.URL != "" {
		client, err := lock.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer client.Close()
		locker = lock.NewRedis(client, cfg.Redis.LockTTL)
		logger.Info().Dur("ttl", cfg.Redis.LockTTL).Msg("using redis product locks")
		if cfg.RateLimit.Enabled() {
			limiter = ratelimit.NewRedis(client, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		}
	}
	if limiter != nil {
		logger.Info().Int("requests", cfg.RateLimit.Requests).Dur("window", cfg.RateLimit.Window).Msg("rate limiting /api")
	}

	svc := inventory.NewService(
		&store.InventoryStore{DB: database},
		&store.HistoryStore{DB: database},
		inventory.WithLocker(locker),
		inventory.WithMetrics(metrics.NewInventoryMetrics(reg)),
	)

	handler := api.NewRouter(api.Options{
		DB:                  database,
		Inventory:           svc,
		JWTSecret:           jwtSecret,
		TokenExpiry:         cfg.JWT.ExpiresIn,
		LowStockThreshold:   cfg.Inventory.LowStockThreshold,
		HistoryDefaultLimit: cfg.Inventory.HistoryDefaultLimit,
		AllowedOrigins:      cfg.CORS.AllowedOrigins,
		Logger:              logger,
		RateLimiter:         limiter,
		Metrics:             promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped, closing database")
	return nil
}

// ensureAdmin creates the first admin account when none exists and prints its
// generated password.
func ensureAdmin(ctx context.Context, database *sqlx.DB, dbPath, username string) error {
	n, err := store.CountAdmins(ctx, database)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := auth.GeneratePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.CreateUser(ctx, database, username, hash, model.RoleAdmin); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	printInitResult(dbPath, username, password)
	return nil
}

// printInitResult prints the first-run admin credentials to stdout.
func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database initialized: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println()
}
