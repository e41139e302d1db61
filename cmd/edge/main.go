package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/beyondnet/beyond/internal/config"
	"github.com/beyondnet/beyond/internal/credential"
	"github.com/beyondnet/beyond/internal/notify"
	"github.com/beyondnet/beyond/internal/observability"
	"github.com/beyondnet/beyond/internal/rpcauth"
	"github.com/beyondnet/beyond/internal/security"
	"github.com/beyondnet/beyond/internal/session"
	"github.com/beyondnet/beyond/internal/store/postgres"
	"github.com/beyondnet/beyond/internal/store/redis"
	"github.com/beyondnet/beyond/internal/transport"
	"github.com/beyondnet/beyond/pkg/version"
)

func main() {
	cfg, err := config.Load("config.json")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	loggerCfg := observability.LoggerConfig{
		Level:        cfg.GetLogLevel(),
		Format:       cfg.Logging.Format,
		OutputPath:   cfg.Logging.OutputPath,
		ErrorPath:    cfg.Logging.ErrorPath,
		EnableCaller: cfg.Logging.EnableCaller,
		EnableStack:  cfg.Logging.EnableStack,
		Service:      "beyond-edge",
		Version:      version.Version,
	}
	logger := observability.NewLogger(loggerCfg)

	logger.Info().
		Str("version", version.Version).
		Str("git_commit", version.GitCommit).
		Str("platform", version.Platform).
		Msg("starting beyond edge")

	health := observability.NewHealthChecker(logger, version.Version)
	edgeUUID := uuid.NewString()

	// --- Credential Engine ---
	engine := credential.NewEngine(logger)
	if err := engine.Activate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to activate credential engine")
	}
	if err := engine.Prepare(); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare edge key material")
	}
	health.RegisterCheck("credential_engine", observability.CredentialEngineHealthCheck(func() error {
		_, err := engine.GetKey(credential.Certificate)
		return err
	}))

	// --- Peer Session store ---
	store := rpcauth.NewStore()
	authenticator := rpcauth.NewAuthenticator(store)

	// --- Infrastructure: PostgreSQL audit log (opt-in) ---
	var pgDB *postgres.DB
	var auditRepo *postgres.AuditRepo
	if cfg.Database.Postgres.Enabled {
		const maxRetries = 5
		for attempt := 1; attempt <= maxRetries; attempt++ {
			pgDB, err = postgres.New(cfg.Database.Postgres, logger)
			if err == nil {
				break
			}
			if attempt == maxRetries {
				logger.Fatal().Err(err).Int("attempts", maxRetries).Msg("postgresql unavailable after retries — audit log is enabled and required")
			}
			wait := time.Duration(attempt) * 2 * time.Second
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("postgresql unavailable — retrying")
			time.Sleep(wait)
		}

		migrator := postgres.NewMigrator(pgDB, logger)
		if err := migrator.Run(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to run postgresql migrations")
		}

		auditRepo = postgres.NewAuditRepo(pgDB, logger)
		health.RegisterCheck("postgresql", observability.DatabaseHealthCheck(pgDB.Ping))
		logger.Info().Msg("audit log enabled against postgresql")
	}

	// --- Infrastructure: Redis session mirror (opt-in) ---
	var redisClient *redis.Client
	if cfg.Cache.Redis.Enabled {
		redisClient, err = redis.New(cfg.Cache.Redis, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable — sessions will not be mirrored")
			redisClient = nil
		} else {
			store.SetMirror(redis.NewSessionMirror(redisClient, logger))
			health.RegisterCheck("redis", observability.RedisHealthCheck(redisClient.Ping))
			logger.Info().Msg("session mirror enabled against redis")
		}
	}

	// --- Peer Session (Edge) ---
	if err := os.MkdirAll(cfg.Edge.StoragePath, 0o755); err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Edge.StoragePath).Msg("failed to create model storage directory")
	}
	portAlloc := newPipelinePortAllocator(cfg.Edge.PipelinePortLo, cfg.Edge.PipelinePortHi)
	edge := session.NewEdge(engine, edgeUUID, cfg.Edge.StoragePath, store, portAlloc.next, logger)

	if auditRepo != nil {
		edge.SetAuditSink(newAuditSinkAdapter(auditRepo, logger))
	}

	health.RegisterCheck("edge_listener", observability.EdgeListenerHealthCheck(func() error { return nil }))

	// --- RPC transport listener ---
	listener, err := newEdgeListener(cfg.Edge)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to bind edge rpc listener")
	}

	rpcServer := transport.NewServer(listener, edge, authenticator, logger)
	if cfg.Security.RateLimitEnabled {
		rpcServer.SetRateLimiter(security.NewRateLimiter(cfg.Security.RateLimitPerConn, time.Second, cfg.Security.RateLimitPerConn))
	}
	rpcServer.SetBruteForceProtector(security.NewBruteForceProtector(cfg.Security.ExchangeKeyMaxAttempts, cfg.Security.ExchangeKeyLockoutPeriod))

	errCh := make(chan error, 1)
	go func() {
		if err := rpcServer.Serve(); err != nil {
			errCh <- fmt.Errorf("rpc server error: %w", err)
		}
	}()

	logger.Info().
		Str("addr", cfg.GetEdgeAddr()).
		Str("edge_uuid", edgeUUID).
		Msg("beyond edge rpc listener started")

	// --- Ops HTTP server (health + metrics) ---
	var opsServer *notify.Server
	if cfg.Ops.Enabled {
		observability.NewMetrics()
		hub := notify.NewHub(logger)
		opsServer = notify.New(health, hub, logger)
		opsAddr := fmt.Sprintf("%s:%d", cfg.Ops.Host, cfg.Ops.Port)
		go func() {
			if err := opsServer.Start(opsAddr); err != nil {
				logger.Warn().Err(err).Msg("ops http server stopped")
			}
		}()
		logger.Info().Str("addr", opsAddr).Msg("ops http server started (healthz, metrics)")
	}

	// --- Graceful shutdown ---
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("rpc server error, initiating shutdown")
	}

	logger.Info().Dur("timeout", cfg.Edge.ShutdownTimeout).Msg("starting graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Edge.ShutdownTimeout)
	defer shutdownCancel()

	if opsServer != nil {
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("ops http server shutdown error")
		}
	}

	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Error().Err(err).Msg("rpc listener close error")
	} else {
		logger.Info().Msg("rpc listener closed")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	if pgDB != nil {
		pgDB.Close()
		logger.Info().Msg("postgresql connection closed")
	}

	logger.Info().Msg("beyond edge shut down successfully")
}

func newEdgeListener(cfg config.EdgeConfig) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if !cfg.TLSEnabled {
		return net.Listen("tcp", addr)
	}

	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load edge tls material: %w", err)
	}
	return tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
}

// pipelinePortAllocator hands out ports within [lo, hi] for the Prepare RPC,
// probing each candidate with a throwaway listener to skip ones already in
// use on this host.
type pipelinePortAllocator struct {
	lo, hi int
}

func newPipelinePortAllocator(lo, hi int) *pipelinePortAllocator {
	return &pipelinePortAllocator{lo: lo, hi: hi}
}

func (a *pipelinePortAllocator) next() (int, error) {
	span := a.hi - a.lo + 1
	start := a.lo + rand.Intn(span)
	for i := 0; i < span; i++ {
		port := a.lo + (start-a.lo+i)%span
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free pipeline port in range [%d, %d]", a.lo, a.hi)
}

// auditSinkAdapter bridges the fire-and-forget session.AuditSink interface
// to postgres.AuditRepo's context-and-error-returning Record method.
type auditSinkAdapter struct {
	repo   *postgres.AuditRepo
	logger zerolog.Logger
}

func newAuditSinkAdapter(repo *postgres.AuditRepo, logger zerolog.Logger) *auditSinkAdapter {
	return &auditSinkAdapter{repo: repo, logger: logger.With().Str("component", "audit_sink").Logger()}
}

func (a *auditSinkAdapter) Record(peerID, eventType, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.repo.Record(ctx, peerID, eventType, detail); err != nil {
		a.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to record audit event")
	}
}
