package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/receipts-extractor/internal/bootstrap"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/server"
	"github.com/joseph-ayodele/receipts-extractor/internal/web"
)

func main() {
	deps, err := bootstrap.Load(os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg, logger := deps.Config, deps.Logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := web.NewHandler(deps.Client, export.NewService(logger), web.Options{
		MaxUploadBytes:   cfg.Upload.MaxBytes,
		APIKeyConfigured: cfg.LLM.APIKeyConfigured(),
	}, logger)
	if !cfg.LLM.APIKeyConfigured() {
		logger.Warn("receiptsd.api_key_missing", "hint", "set OPENAI_API_KEY; uploads will be rejected")
	}

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           web.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var health *server.HealthServer
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			stop()
			os.Exit(1)
		}
		health = server.NewHealthServer(logger)
		health.SetReady(cfg.LLM.APIKeyConfigured())
		go func() {
			if err := health.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	go func() {
		logger.Info("receiptsd listening", "addr", "http://"+cfg.Server.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("receiptsd shutting down")

	// in-flight uploads get one attempt's timeout plus slack
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if health != nil {
		health.Stop()
	}
}
