package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jmerrifield20/SupplyChainLedger/internal/config"
	"github.com/jmerrifield20/SupplyChainLedger/internal/health"
	"github.com/jmerrifield20/SupplyChainLedger/internal/ledger"
	"github.com/jmerrifield20/SupplyChainLedger/internal/provenance"
	"github.com/jmerrifield20/SupplyChainLedger/internal/viewer"
	"github.com/jmerrifield20/SupplyChainLedger/internal/viewer/handler"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("viewer exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, found, err := config.Load(config.New(), os.Getenv("VIEWER_CONFIG"))
	if err != nil {
		return err
	}
	if !found {
		logger.Info("no config file found, using defaults and environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Ledger ───────────────────────────────────────────────────────────────
	conn, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer conn.Close()

	agg := provenance.NewAggregator(
		ledger.Instrument(conn.client),
		conn.sourceID,
		logger,
		provenance.WithParallelStages(cfg.Ledger.ParallelStages),
	)

	// ── Catalog ──────────────────────────────────────────────────────────────
	garments, closeCatalog, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCatalog()

	// ── gRPC health service (optional) ───────────────────────────────────────
	var (
		grpcServer *grpc.Server
		healthSvc  *grpchealth.Server
	)
	if cfg.Server.GRPCPort > 0 {
		grpcServer = grpc.NewServer()
		healthSvc = grpchealth.NewServer()
		grpc_health_v1.RegisterHealthServer(grpcServer, healthSvc)
		reflection.Register(grpcServer)
	}
	setServing := func(up bool) {
		handler.SetLedgerUp(up)
		if healthSvc == nil {
			return
		}
		status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
		if up {
			status = grpc_health_v1.HealthCheckResponse_SERVING
		}
		healthSvc.SetServingStatus("", status)
	}

	// ── Ledger health checker ────────────────────────────────────────────────
	var ledgerStatus viewer.LedgerStatus
	connected := true
	if conn.prober != nil {
		checker := health.New(conn.prober, health.Config{
			CheckInterval: cfg.Health.CheckInterval,
			ProbeTimeout:  cfg.Ledger.CallTimeout,
			FailThreshold: cfg.Health.FailThreshold,
		}, logger)
		checker.SetMetricsRecord(handler.RecordHealthCheck)
		checker.SetStatusChange(func(s health.Status) {
			setServing(s == health.StatusHealthy)
		})
		connected = checker.CheckOnce(ctx)
		if cfg.Health.CheckInterval > 0 {
			go checker.Start(ctx)
		}
		ledgerStatus = checker
	} else {
		setServing(true)
	}

	// ── HTTP Router ──────────────────────────────────────────────────────────
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	explorer := cfg.Ledger.ExplorerURL
	if cfg.Ledger.Mode == config.ModeMemory {
		explorer = ""
	}
	router, err := viewer.NewRouter(ctx, viewer.Options{
		Aggregator: agg,
		Catalog:    garments,
		Pages: handler.PageOptions{
			DefaultProduct: cfg.DefaultProduct,
			ExplorerURL:    explorer,
			CallTimeout:    cfg.Ledger.CallTimeout,
		},
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimitRPS: cfg.Server.RateLimitRPS,
		Health:       ledgerStatus,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	printBanner(bannerInfo{
		Mode:      cfg.Ledger.Mode,
		Connected: connected,
		Contract:  conn.sourceID,
		Explorer:  provenance.ExplorerURL(explorer, conn.sourceID),
		Port:      cfg.Server.Port,
		Product:   cfg.DefaultProduct,
	})

	// ── Start servers ────────────────────────────────────────────────────────
	errCh := make(chan error, 2)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("viewer HTTP listening", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP listen: %w", err)
		}
	}()

	if grpcServer != nil {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			return fmt.Errorf("gRPC listen on :%d: %w", cfg.Server.GRPCPort, err)
		}
		go func() {
			logger.Info("viewer gRPC health listening", zap.Int("port", cfg.Server.GRPCPort))
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- fmt.Errorf("gRPC serve: %w", err)
			}
		}()
	}

	// ── Graceful shutdown ────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	logger.Info("shutting down viewer...")
	stop()

	if grpcServer != nil {
		healthSvc.Shutdown()
		grpcServer.GracefulStop()
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("viewer stopped")
	return runErr
}
