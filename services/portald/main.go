package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	protocolcfg "stakeportal/config"
	"stakeportal/core/state"
	"stakeportal/native/bank"
	"stakeportal/native/portal"
	"stakeportal/native/venue"
	"stakeportal/observability/logging"
	telemetry "stakeportal/observability/otel"
	"stakeportal/services/portald/config"
	"stakeportal/services/portald/journal"
	"stakeportal/services/portald/server"
	"stakeportal/storage"
)

func main() {
	var (
		cfgPath      string
		protocolPath string
		exportPath   string
		exportAfter  int64
	)
	flag.StringVar(&cfgPath, "config", "", "path to portald config (YAML)")
	flag.StringVar(&protocolPath, "protocol", "", "override the protocol config path (TOML)")
	flag.StringVar(&exportPath, "export-journal", "", "write the journal to a parquet file and exit")
	flag.Int64Var(&exportAfter, "export-after", 0, "only export entries after this sequence number")
	flag.Parse()

	cfg := config.Default()
	if strings.TrimSpace(cfgPath) != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if strings.TrimSpace(protocolPath) != "" {
		cfg.ProtocolConfig = protocolPath
	}

	env := strings.TrimSpace(cfg.Environment)
	if env == "" {
		env = strings.TrimSpace(os.Getenv("PORTAL_ENV"))
	}
	var logger *slog.Logger
	if strings.TrimSpace(cfg.Log.File) != "" {
		var closer io.Closer
		logger, closer = logging.SetupWithFile("portald", env, cfg.Log.Level, logging.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
		defer closer.Close()
	} else {
		logger = logging.SetupLevel("portald", env, cfg.Log.Level)
	}

	if strings.TrimSpace(exportPath) != "" {
		if err := exportJournal(logger, cfg.JournalPath, exportPath, exportAfter); err != nil {
			log.Fatalf("export journal: %v", err)
		}
		return
	}

	protocol, err := protocolcfg.Load(cfg.ProtocolConfig)
	if err != nil {
		log.Fatalf("load protocol config: %v", err)
	}
	params, err := protocol.Portal.Params()
	if err != nil {
		log.Fatalf("protocol params: %v", err)
	}

	if cfg.Telemetry.Enabled {
		headers := cfg.Telemetry.Headers
		if raw := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); raw != "" {
			headers = telemetry.ParseHeaders(raw)
		}
		endpoint := cfg.Telemetry.Endpoint
		if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
			endpoint = value
		}
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "portald",
			Environment: env,
			Endpoint:    endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     headers,
			Attributes: map[string]string{
				"portal.principal_asset":   params.PrincipalAsset,
				"portal.reference_asset":   params.ReferenceAsset,
				"portal.receipt_asset":     params.ReceiptAsset,
				"portal.entitlement_asset": params.EntitlementAsset,
			},
			SampleRatio: cfg.Telemetry.SampleRatio,
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			log.Fatalf("init telemetry: %v", err)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	if err := os.MkdirAll(protocol.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(protocol.DataDir, "state"))
	if err != nil {
		log.Fatalf("open state db: %v", err)
	}
	defer db.Close()

	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}
	defer j.Close()
	j.SetLogger(logger)

	mgr := state.NewManager(db)
	ledger := bank.NewLedger(mgr)
	vault := venue.NewVault(mgr, ledger, params.PrincipalAsset, protocol.Venue.RewardAsset)

	engine, err := portal.NewEngine(params)
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}
	engine.SetState(mgr)
	engine.SetAssets(ledger)
	engine.SetClaims(ledger)
	engine.SetVenue(vault)
	engine.SetRewardSources(vault, vault)
	engine.SetEmitter(j)
	engine.SetLogger(logger)

	if err := bootstrap(logger, engine, mgr, ledger, protocol, uint64(time.Now().Unix())); err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	// Pauses apply after bootstrap so a paused portal can still be created.
	engine.SetPauses(protocol.Pauses)

	srv, err := server.New(server.Backend{
		Engine:   engine,
		Balances: ledger,
		Venue:    vault,
		State:    mgr,
		Journal:  j,
	}, server.Config{
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("create server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("portald listening", slog.String("listen", cfg.ListenAddress))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func exportJournal(logger *slog.Logger, journalPath, out string, after int64) error {
	j, err := journal.Open(journalPath)
	if err != nil {
		return err
	}
	defer j.Close()
	if err := j.Verify(context.Background()); err != nil {
		return err
	}
	n, err := j.ExportParquet(context.Background(), out, after)
	if err != nil {
		return err
	}
	logger.Info("journal exported", slog.String("path", out), slog.Int("rows", n))
	return nil
}
