package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/anayak07/walletsync/internal/client"
	"github.com/anayak07/walletsync/internal/config"
	"github.com/anayak07/walletsync/internal/logging"
)

// The device agent keeps a local wallet database usable offline and
// reconciles it with the server on an interval. WALLET_ID and USER_ID
// select the wallet this agent syncs.
func main() {
	godotenv.Load()

	cfg, err := config.LoadDeviceConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	walletID, err := uuid.Parse(os.Getenv("WALLET_ID"))
	if err != nil {
		log.Fatalf("WALLET_ID is required: %v", err)
	}
	userID, err := uuid.Parse(os.Getenv("USER_ID"))
	if err != nil {
		log.Fatalf("USER_ID is required: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	store, err := client.OpenStore(cfg.DBPath, userID, cfg.DeviceID)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer store.Close()

	api := client.NewHTTPSyncAPI(cfg.ServerURL, cfg.AuthToken, nil)
	syncer := client.NewSyncer(store, api, walletID, cfg.SyncInterval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("shutting down device agent")
		cancel()
	}()

	logger.Info("starting device agent",
		"wallet_id", walletID,
		"device_id", cfg.DeviceID,
		"interval", cfg.SyncInterval,
	)
	syncer.TriggerSync()
	syncer.Run(ctx)

	logger.Info("device agent stopped")
}
