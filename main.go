package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"pvetopo/config"
	"pvetopo/ctxlog"
	"pvetopo/handlers"
	"pvetopo/middleware"
	"pvetopo/services"
)

func main() {
	// 1. Config
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := ctxlog.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	logger.Info("configuration loaded",
		"server", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"proxmox", cfg.ProxmoxBaseURL(),
		"verify_ssl", cfg.Proxmox.VerifySSL,
		"timeout", cfg.ProxmoxTimeoutDuration(),
		"concurrency", cfg.Topology.Concurrency,
	)

	// 2. Services
	metrics := services.NewMetrics()
	pve := services.NewProxmoxClient(cfg)
	topologyService := services.NewTopologyService(cfg, pve, metrics)

	// 3. Web Server Setup
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.LoggerMiddleware(logger))
	e.Use(middleware.RecoverMiddleware())
	e.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	// 4. Handlers & Routes
	handlers.Register(e,
		handlers.NewTopologyHandlers(topologyService),
		handlers.NewSystemHandlers(pve, cfg.Proxmox.MinVersion),
		metrics.Registry,
	)

	// 5. Start HTTP Server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		logger.Info("server running", "addr", "http://"+serverAddr)
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Error("shutting down the server", "error", err)
			os.Exit(1)
		}
	}()

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("graceful shutdown initiated")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server exited cleanly")
}
