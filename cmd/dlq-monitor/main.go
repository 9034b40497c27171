// dlq-monitor runs only the Monitor stage of the DLQ recovery pipeline:
// discover, poll, deduplicate, enrich and publish (§4.1). It still wires the
// full App so a published MessageEnriched event is consumed in-process by
// the Analyzer; splitting Monitor onto its own host in production would
// require swapping the in-memory event bus for a networked one.
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
	runOnce     = flag.Bool("once", false, "Run a single poll invocation and exit, instead of starting the scheduler")
)

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion {
		fmt.Printf("dlq-monitor version %s\n", common.GetVersion())
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
	common.PrintBanner("dlq-monitor", common.GetVersion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize monitor")
	}
	defer application.Close()

	if *runOnce {
		if err := application.Monitor.Run(ctx); err != nil {
			logger.Fatal().Err(err).Msg("monitor invocation failed")
		}
		return
	}

	if err := application.Scheduler.Start(config.Monitor.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	logger.Info().Str("schedule", config.Monitor.Schedule).Msg("monitor scheduled - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
}
