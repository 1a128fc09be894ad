package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/okolovich/offsync/internal/config"
	"github.com/okolovich/offsync/internal/engine"
	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/internal/network"
	"github.com/okolovich/offsync/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncd")
	cfg, err := config.GetStructuredConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	log.Debug().Any("config", cfg).Msg("received configs")

	eng, err := engine.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("error creating sync engine")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("error starting sync engine")
	}

	// No platform connectivity hook in a plain daemon; assume a wired link
	// until something reports otherwise.
	eng.ReportNetwork(network.Link{
		Type:              models.ConnectionEthernet,
		Connected:         true,
		InternetReachable: true,
	})

	unsubscribe := eng.Subscribe(func(result models.SyncResult) {
		log.Info().
			Bool("success", result.Success).
			Int("synced", result.EntitiesSynced).
			Int("conflicts", len(result.Conflicts)).
			Int("errors", len(result.Errors)).
			Msg("sync pass completed")
	})
	defer unsubscribe()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if err := eng.Stop(); err != nil {
		log.Err(err).Msg("error stopping sync engine")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}

	if buildDate == "" {
		buildDate = "N/A"
	}

	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
