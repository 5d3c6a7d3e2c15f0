package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/orbitalrush/grid/internal/config"
	"github.com/orbitalrush/grid/internal/observability"
	"github.com/orbitalrush/grid/internal/server"
	"github.com/orbitalrush/grid/internal/transport"
)

func main() {
	logger := observability.NewLogger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Error(err, "failed to load config")
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	observability.InitMetrics()

	savePath := os.Getenv("SAVE_PATH")
	gameAddr := fmt.Sprintf(":%s", port)
	gridServer, err := server.New(cfg, gameAddr, savePath, logger)
	if err != nil {
		logger.Error(err, "failed to start UDP transport")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- gridServer.Serve(ctx) }()

	mux := http.NewServeMux()
	mux.HandleFunc("/spectate", transport.SpectatorHandler(gridServer, time.Duration(cfg.Server.TimeBetweenInputPkts*float64(time.Second))))
	mux.HandleFunc("/healthz", transport.HealthzHandler)
	mux.HandleFunc("/metrics", observability.MetricsHandler)

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "8080"
	}
	httpAddr := fmt.Sprintf(":%s", httpPort)
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}

	go func() {
		logger.Info("grid server starting", "udp_addr", gameAddr, "http_addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "http server forced to shutdown")
	}

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error(err, "grid server exited with error")
		}
	case <-time.After(5 * time.Second):
		logger.Info("grid server shutdown timed out")
	}

	logger.Info("server exited")
}
