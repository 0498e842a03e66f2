package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/statements-tracker/internal/app"
	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/ingest"
	"github.com/joseph-ayodele/statements-tracker/internal/server"
)

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// pick up runs left behind by the previous process before accepting new ones
	pending, err := a.Processor.Resume(ctx)
	if err != nil {
		logger.Error("failed to resume pending runs", "error", err)
	}

	queue := async.NewWorkerPool(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithRunTimeout(cfg.Queue.RunTimeout),
	)
	for _, p := range pending {
		if err := queue.Enqueue(ctx, async.Job{StatementID: p.StatementID, RunID: p.RunID, SubmittedAt: time.Now()}); err != nil {
			logger.Warn("failed to requeue run", "statement_id", p.StatementID, "error", err)
		}
	}

	deps := server.Deps{
		Pipeline:     a.Processor,
		Queue:        queue,
		Statements:   a.Statements,
		Transactions: a.Transactions,
		Exporter:     a.Export,
		Health:       a.DB,
	}
	httpSrv := server.NewHTTPServer(deps, cfg.Server.MaxUploadBytes, logger)
	grpcSrv, health := server.NewGRPCServer(server.NewStatementService(a.Statements, a.Transactions, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.Listen(cfg.Server.HTTPAddr); err != nil {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	if len(cfg.Inbox.Dirs) > 0 {
		ing := ingest.NewIngestor(a.Processor, queue, ingest.Defaults{
			Bank:     cfg.Inbox.DefaultBank,
			Account:  cfg.Inbox.DefaultAccount,
			Currency: cfg.Inbox.DefaultCurrency,
		}, logger)
		go func() {
			err := ing.Serve(ctx, ingest.WatchConfig{Roots: cfg.Inbox.Dirs, InitialScan: cfg.Inbox.InitialScan})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("inbox stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Queue.RunTimeout+5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	grpcSrv.GracefulStop()
}
