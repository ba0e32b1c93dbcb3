package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/textpay-hq/textpay-backend/internal/adapter/httpapi"
	"github.com/textpay-hq/textpay-backend/internal/adapter/ledger/evm"
	"github.com/textpay-hq/textpay-backend/internal/adapter/repository/postgres"
	"github.com/textpay-hq/textpay-backend/internal/config"
	"github.com/textpay-hq/textpay-backend/internal/domain"
	"github.com/textpay-hq/textpay-backend/internal/usecase/intent"
	"github.com/textpay-hq/textpay-backend/internal/usecase/settlement"
	"github.com/textpay-hq/textpay-backend/internal/usecase/wallet"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 1. Setup Database
	db, err := postgres.NewDB(cfg.DB.ConnString(), cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// 2. Initialize Repositories and the Ledger
	intentRepo := postgres.NewIntentRepository(db)

	ledger, err := evm.NewLedger(
		cfg.Ledger.RPCURL,
		cfg.Ledger.VaultAddress,
		cfg.Ledger.OwnerPrivateKey,
		cfg.Ledger.ChainID,
		cfg.Ledger.TokenDecimals,
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to connect to ledger", zap.Error(err))
	}

	// 3. Initialize Services (Use Cases)
	transferProcessor := settlement.NewTransferProcessor(ledger, logger)
	registry := settlement.NewRegistry(transferProcessor)

	intentService := intent.NewService(
		intentRepo,
		registry,
		domain.Application(cfg.Application),
		[]byte(cfg.ClientSecretSalt),
		logger,
	)
	walletService := wallet.NewService(ledger, logger)

	// 4. Start metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics server listening", zap.String("port", cfg.MetricsPort))
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	// 5. Start HTTP API
	server := httpapi.NewServer(intentService, walletService, cfg.APIKey, cfg.Stripe.WebhookSecret, logger)

	go func() {
		if err := server.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("Failed to serve HTTP server", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// waitForShutdown waits for SIGTERM or SIGINT and gracefully shuts down the server
func waitForShutdown(server *httpapi.Server, logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logger.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))

	if err := server.Shutdown(); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	logger.Info("HTTP server stopped")
}
