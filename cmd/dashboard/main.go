package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/api"
	"github.com/churn-insight/dashboard/internal/app"
	"github.com/churn-insight/dashboard/internal/metrics"
	"github.com/churn-insight/dashboard/pkg/config"
	appLogger "github.com/churn-insight/dashboard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: search ./config.yaml)")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting employee churn dashboard",
		zap.Bool("inference", cfg.Features.Inference),
		zap.Bool("notebooks", cfg.Features.Notebooks),
	)

	metrics.Init()

	dashboard, err := app.New(context.Background(), cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize dashboard", zap.Error(err))
	}
	defer dashboard.Close()

	if dashboard.Model != nil {
		appLogger.Info("Model loaded",
			zap.String("name", dashboard.Model.Name),
			zap.String("version", dashboard.Model.Version),
			zap.Int("trees", dashboard.Model.Trees),
		)
	}

	server := api.NewServer(dashboard, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := server.App.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.Shutdown(); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
