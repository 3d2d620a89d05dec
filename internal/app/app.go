// Package app wires every kernel package (rbum, credential, session,
// oauth2, resource, gateway, spi) and pkg/consoleapi's HTTP handlers into
// a running process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/grayforge/keyward/internal/audit"
	"github.com/grayforge/keyward/internal/config"
	"github.com/grayforge/keyward/internal/httpserver"
	"github.com/grayforge/keyward/internal/platform"
	"github.com/grayforge/keyward/internal/seed"
	"github.com/grayforge/keyward/internal/telemetry"
	"github.com/grayforge/keyward/pkg/cache"
	"github.com/grayforge/keyward/pkg/consoleapi"
	"github.com/grayforge/keyward/pkg/credential"
	"github.com/grayforge/keyward/pkg/gateway"
	"github.com/grayforge/keyward/pkg/oauth2"
	"github.com/grayforge/keyward/pkg/rbum"
	"github.com/grayforge/keyward/pkg/resource"
	"github.com/grayforge/keyward/pkg/session"
)

// Run is the process entry point: it reads config, connects to
// infrastructure, and starts the mode cfg.Mode names.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting keywardd", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunGlobalMigrations(cfg.DatabaseURL, cfg.MigrationsGlobalDir); err != nil {
		return fmt.Errorf("running global migrations: %w", err)
	}
	logger.Info("global migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	store := rbum.NewStore(db)
	if err := seed.Bootstrap(ctx, store, cfg.RBUM.DomainCode, logger); err != nil {
		return fmt.Errorf("seeding rbum kernel: %w", err)
	}

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, metricsReg, store)
	case "worker":
		return runWorker(ctx, logger, rdb, store, cfg)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *pgxpool.Pool,
	rdb *redis.Client,
	metricsReg *prometheus.Registry,
	store *rbum.Store,
) error {
	c := cache.New(rdb)

	sessionSecret := cfg.SessionSecret
	if sessionSecret == "" {
		sessionSecret = session.GenerateDevSecret()
		logger.Info("session: using auto-generated dev secret (set KEYWARD_SESSION_SECRET in production)")
	}
	issuer, err := session.NewIssuer(sessionSecret)
	if err != nil {
		return fmt.Errorf("creating session issuer: %w", err)
	}
	sessions := session.NewService(c, issuer)

	registry := credential.NewRegistry()
	lockTracker := credential.NewLockTracker(c)
	creds := credential.NewService(store, registry, lockTracker, c, credential.LogVCodeSender{Logger: logger})

	oauth2TTL := time.Duration(cfg.OAuth2.AuthCodeExpireSec) * time.Second
	refreshTTL := time.Duration(cfg.OAuth2.RefreshTokenExpireSec) * time.Second
	oauthSvc := oauth2.NewService(c, sessions, oauth2ClientLookup(store), oauth2TTL, refreshTTL)

	trie := resource.NewTrie()
	evaluator := resource.NewEvaluator(trie, c)

	serverKey, err := loadOrGenerateServerKey(cfg.ServerPrivateKeyPEM, logger)
	if err != nil {
		return fmt.Errorf("loading gateway server key: %w", err)
	}
	headers := gateway.HeaderConfig{
		Token:         cfg.Crypto.TokenHeader,
		App:           cfg.Crypto.AppHeader,
		Protocol:      cfg.Crypto.ProtocolHeader,
		Authorization: cfg.Crypto.AuthorizationHeader,
		Date:          cfg.Crypto.DateHeader,
		Ctx:           cfg.Crypto.CtxHeader,
		Crypto:        cfg.Crypto.CryptoHeader,
	}
	pipeline := gateway.NewPipeline(headers, sessions, evaluator, c, serverKey)

	auditWriter := audit.NewWriter(db, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	srv := httpserver.NewServer(cfg.CORSAllowedOrigins, logger, db, rdb, metricsReg)

	consoleapi.Mount(srv, consoleapi.Deps{
		Logger:              logger,
		Audit:               auditWriter,
		Store:               store,
		Credential:          creds,
		Sessions:            sessions,
		OAuth2:              oauthSvc,
		Resource:            evaluator,
		Trie:                trie,
		Cache:               c,
		Gateway:             pipeline,
		TokenHeader:         cfg.Crypto.TokenHeader,
		AppHeader:           cfg.Crypto.AppHeader,
		SPIManagementMode:   cfg.SPI.ManagementMode,
		MigrationsTenantDir: cfg.MigrationsTenantDir,
	})

	stopRefresh := startTrieRefreshLoop(ctx, c, trie, logger, cfg.Gateway.ResourceTrieTickSec)
	defer stopRefresh()

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// startTrieRefreshLoop schedules the periodic resource-trie refresh tick
// and returns a func that stops it.
func startTrieRefreshLoop(ctx context.Context, c *cache.Cache, trie *resource.Trie, logger *slog.Logger, tickSec int) func() {
	if tickSec <= 0 {
		tickSec = 300
	}
	sched := cron.New()
	_, err := sched.AddFunc(fmt.Sprintf("@every %ds", tickSec), func() {
		refreshTrieFromCache(ctx, c, trie, logger)
	})
	if err != nil {
		logger.Error("scheduling resource trie refresh", "error", err)
		return func() {}
	}
	sched.Start()
	return func() { <-sched.Stop().Done() }
}

func runWorker(ctx context.Context, logger *slog.Logger, rdb *redis.Client, store *rbum.Store, cfg *config.Config) error {
	logger.Info("worker started")

	c := cache.New(rdb)
	trie := resource.NewTrie()

	stopRefresh := startTrieRefreshLoop(ctx, c, trie, logger, cfg.Gateway.ResourceTrieTickSec)
	defer stopRefresh()

	<-ctx.Done()
	logger.Info("worker stopped")
	return nil
}
