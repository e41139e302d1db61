package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/beyondnet/beyond/internal/config"
	"github.com/beyondnet/beyond/internal/credential"
	"github.com/beyondnet/beyond/internal/observability"
	"github.com/beyondnet/beyond/internal/session"
	"github.com/beyondnet/beyond/internal/store/sqlite"
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
		Service:      "beyond-device",
		Version:      version.Version,
	}
	logger := observability.NewLogger(loggerCfg)

	modelPath := "model.bin"
	if len(os.Args) > 1 {
		modelPath = os.Args[1]
	}

	edgeAddr := cfg.GetDeviceDialAddr()
	logger.Info().Str("edge_addr", edgeAddr).Str("model", modelPath).Msg("starting beyond device")

	// --- Local store ---
	db, err := sqlite.New(sqlite.Config{
		Path:            cfg.Database.SQLite.Path,
		MaxOpenConns:    cfg.Database.SQLite.MaxOpenConns,
		MaxIdleConns:    cfg.Database.SQLite.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.SQLite.ConnMaxLifetime,
		WALMode:         cfg.Database.SQLite.WALMode,
		ForeignKeys:     cfg.Database.SQLite.ForeignKeys,
		BusyTimeout:     cfg.Database.SQLite.BusyTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open local sqlite store")
	}
	defer db.Close()

	ctx := context.Background()

	migrator := sqlite.NewMigrator(db, logger)
	if err := migrator.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run local store migrations")
	}
	keyRepo := sqlite.NewKeyMaterialRepo(db)

	// --- Credential Engine, restoring a persisted identity if one exists ---
	deviceUUID := uuid.NewString()
	engine := credential.NewEngine(logger)
	if err := engine.Activate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to activate device credential engine")
	}

	if stored, loadErr := keyRepo.LoadKeyMaterial(ctx, edgeAddr); loadErr == nil {
		if err := engine.Configure(credential.ConfigureSSLPEM, credential.SSLPEMBlob{
			PrivateKeyPEM:  stored.PrivateKeyPEM,
			CertificatePEM: stored.CertificatePEM,
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to restore persisted device key material, generating fresh")
		}
	}

	if err := engine.Prepare(); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare device key material")
	}

	if keyPEM, certPEM, saveErr := exportKeyMaterial(engine); saveErr == nil {
		if err := keyRepo.SaveKeyMaterial(ctx, sqlite.StoredKeyMaterial{
			EdgeUUID:       edgeAddr,
			PrivateKeyPEM:  keyPEM,
			CertificatePEM: certPEM,
		}); err != nil {
			logger.Warn().Err(err).Msg("failed to persist device key material")
		}
	}

	// --- Connect to Edge ---
	conn, err := dialEdge(cfg.Device, edgeAddr)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to edge")
	}
	client := transport.Dial(conn, logger)
	defer client.Close()

	device := session.NewDevice(client, engine, deviceUUID, logger)

	if err := device.Configure(session.InputConfig{
		InputType:      "tensor",
		Preprocessing:  "none",
		Postprocessing: "none",
		Framework:      "onnx",
		Accel:          "cpu",
	}); err != nil {
		logger.Fatal().Err(err).Msg("configure rpc failed")
	}

	if err := device.Activate(); err != nil {
		logger.Fatal().Err(err).Msg("handshake failed")
	}
	logger.Info().Str("peer_id", device.PeerID()).Msg("peer session activated")

	uploaded, err := keyRepo.WasModelUploaded(ctx, edgeAddr, filepath.Base(modelPath))
	if err != nil {
		logger.Warn().Err(err).Msg("failed to check local upload cache")
	}
	if err := device.LoadModel(modelPath, os.ReadFile); err != nil {
		logger.Fatal().Err(err).Msg("load_model failed")
	}
	if !uploaded {
		if err := keyRepo.MarkModelUploaded(ctx, edgeAddr, filepath.Base(modelPath)); err != nil {
			logger.Warn().Err(err).Msg("failed to record model upload in local cache")
		}
	}

	endpoints, err := device.Prepare()
	if err != nil {
		logger.Fatal().Err(err).Msg("prepare rpc failed")
	}
	logger.Info().
		Int("request_port", endpoints.RequestPort).
		Int("response_port", endpoints.ResponsePort).
		Msg("pipeline endpoints ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received, stopping session")
	if err := device.Stop(); err != nil {
		logger.Error().Err(err).Msg("stop rpc failed")
	}
	if err := device.Destroy(); err != nil {
		logger.Error().Err(err).Msg("destroy failed")
	}
	logger.Info().Msg("beyond device shut down successfully")
}

func exportKeyMaterial(engine *credential.Engine) ([]byte, []byte, error) {
	keyPEM, err := engine.GetKey(credential.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	certPEM, err := engine.GetKey(credential.Certificate)
	if err != nil {
		return nil, nil, err
	}
	return keyPEM, certPEM, nil
}

func dialEdge(cfg config.DeviceConfig, addr string) (net.Conn, error) {
	if cfg.CACertFile == "" {
		return net.DialTimeout("tcp", addr, cfg.ConnectTimeout)
	}

	caPEM, err := os.ReadFile(cfg.CACertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ca cert file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse ca cert file %s", cfg.CACertFile)
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{RootCAs: pool})
}
