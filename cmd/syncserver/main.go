package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/okolovich/offsync/internal/devserver"
	"github.com/okolovich/offsync/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("syncserver")

	addr := os.Getenv("SYNCSERVER_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	srv := devserver.New(log)

	log.Info().Str("address", addr).Msg("development sync server listening")
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		log.Fatal().Err(err).Msg("sync server stopped")
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
