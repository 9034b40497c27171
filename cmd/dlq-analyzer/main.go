// dlq-analyzer runs the Analyzer stage of the DLQ recovery pipeline: it
// subscribes to MessageEnriched and, for each event, resolves a
// classification via cache/heuristics/LLM and publishes MessageClassified
// (§4.2). Analyzer invocations are event-driven, not scheduled (§5); the
// process simply stays up so the event-bus subscription set up by app.New
// keeps handling events until shutdown.
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
		fmt.Printf("dlq-analyzer version %s\n", common.GetVersion())
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
	common.PrintBanner("dlq-analyzer", common.GetVersion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize analyzer")
	}
	defer application.Close()

	logger.Info().
		Bool("llm_classification_enabled", config.Features.LLMClassificationEnabled).
		Float64("confidence_threshold", config.Analyzer.ConfidenceThreshold).
		Msg("analyzer subscribed to MessageEnriched - press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutdown signal received")
}
