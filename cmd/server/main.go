package main

import (
	"fmt"
	"time"

	"github.com/t2tlabs/t2t-backend/internal/billing"
	"github.com/t2tlabs/t2t-backend/internal/crm"
	"github.com/t2tlabs/t2t-backend/internal/engine"
	"github.com/t2tlabs/t2t-backend/internal/provider"
	"github.com/t2tlabs/t2t-backend/internal/server"
	"github.com/t2tlabs/t2t-backend/internal/storage"
	"github.com/t2tlabs/t2t-backend/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize completion provider
	completions := provider.NewOpenAIProvider(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.SearchModel,
		cfg.OpenAI.Temperature,
		time.Duration(cfg.OpenAI.TimeoutSeconds)*time.Second,
		logger,
	)

	// Initialize CRM client
	var crmClient crm.Client = crm.Noop{}
	if cfg.CRM.APIKey != "" {
		crmClient = crm.NewGHLClient(cfg.CRM.APIKey, cfg.CRM.LocationID, logger)
	} else {
		logger.Info("CRM sync disabled, no API key configured")
	}

	// Initialize engine and reconciler
	eng := engine.New(store, completions, cfg.Payments.CheckoutURLRecurring, logger)
	reconciler := billing.NewReconciler(store, crmClient, logger)

	// Start the server
	srv := server.New(eng, store, reconciler, crmClient, cfg.Payments, logger)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server", zap.String("addr", addr))
	if err := srv.Router().Run(addr); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
