// dlq-executor runs the Executor stage of the DLQ recovery pipeline: it
// subscribes to MessageClassified and dispatches Retry, Archive or Escalate
// (§4.3). Like the Analyzer, it is event-driven rather than scheduled (§5).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/app"
	"github.com/ternarybob/dlq-recover/internal/common"
)

var (
	configFile  = flag.String("config", "", "Configuration file path")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion {
		fmt.Printf("dlq-executor version %s\n", common.GetVersion())
		os.Exit(0)
	}

	config, err := common.LoadFromFile(nil, *configFile)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.InstallCrashHandler("./logs")
	common.PrintBanner("dlq-executor", common.GetVersion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize executor")
	}
	defer application.Close()

	logger.Info().
		Bool("auto_replay_enabled", config.Features.AutoReplayEnabled).
		Bool("incident_integration_enabled", config.Features.IncidentIntegrationEnabled).
		Msg("executor subscribed to MessageClassified - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
}
