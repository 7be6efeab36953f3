package main

import (
	"fmt"
	"os"

	"tallybook/internal/config"
	"tallybook/internal/database"
	"tallybook/internal/logger"
	"tallybook/internal/router"
	"tallybook/internal/validator"

	_ "tallybook/internal/docs" // Import swagger docs
)

// @title           Tallybook API
// @version         1.0
// @description     Tallybook keeps account balances, the balance ledger, summary rows and the audit trail consistent with every transaction mutation.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig := database.NewConfig(appConfig)
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	svc := router.NewServices(dbManager.DB(), dbConfig.TxOptions(), appConfig.ReconcileWorkers)
	engine := router.New(svc)

	log.Infow("Starting Tallybook server",
		"port", appConfig.Port,
		"tx_isolation", appConfig.TxIsolation,
	)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return engine.Run(":" + appConfig.Port)
}
