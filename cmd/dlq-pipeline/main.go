// dlq-pipeline runs all three DLQ recovery stages - Monitor, Analyzer,
// Executor - in a single process, linked by the in-process event bus.
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
		fmt.Printf("dlq-pipeline version %s\n", common.GetVersion())
		os.Exit(0)
	}

	path := *configFile
	if path == "" {
		if _, err := os.Stat("dlq-recover.toml"); err == nil {
			path = "dlq-recover.toml"
		}
	}

	config, err := common.LoadFromFile(nil, path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", path).Msg("failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.InstallCrashHandler("./logs")
	common.PrintBanner("dlq-pipeline", common.GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("dlq_name_pattern", config.Monitor.DLQNamePattern).
		Str("schedule", config.Monitor.Schedule).
		Bool("llm_classification_enabled", config.Features.LLMClassificationEnabled).
		Msg("starting dlq-pipeline")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pipeline")
	}
	defer application.Close()

	if err := application.Scheduler.Start(config.Monitor.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	logger.Info().Str("schedule", config.Monitor.Schedule).Msg("monitor scheduled - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
}
