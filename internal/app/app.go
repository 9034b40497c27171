// Package app wires the DLQ recovery pipeline's storage, adapters and the
// three pipeline stages (Monitor, Analyzer, Executor) into one process.
// Every cmd/* binary (dlq-pipeline, dlq-monitor, dlq-analyzer, dlq-executor)
// calls New, which wires all three stages.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/alerts"
	"github.com/ternarybob/dlq-recover/internal/archive"
	"github.com/ternarybob/dlq-recover/internal/common"
	"github.com/ternarybob/dlq-recover/internal/deployments"
	"github.com/ternarybob/dlq-recover/internal/incidents"
	"github.com/ternarybob/dlq-recover/internal/interfaces"
	"github.com/ternarybob/dlq-recover/internal/queue"
	"github.com/ternarybob/dlq-recover/internal/services/analyzer"
	"github.com/ternarybob/dlq-recover/internal/services/cache"
	"github.com/ternarybob/dlq-recover/internal/services/events"
	"github.com/ternarybob/dlq-recover/internal/services/executor"
	"github.com/ternarybob/dlq-recover/internal/services/llm"
	"github.com/ternarybob/dlq-recover/internal/services/monitor"
	"github.com/ternarybob/dlq-recover/internal/services/scheduler"
	"github.com/ternarybob/dlq-recover/internal/storage/badger"
)

// App holds every collaborator the pipeline's three stages depend on.
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	ctx    context.Context
	cancel context.CancelFunc

	Store *badger.Store

	// Out-of-scope external collaborators (§1 Non-goals), backed by
	// in-memory/logging adapters rather than real cloud services.
	Discovery *queue.DiscoveryService
	Objects   *archive.Store
	Alerts    *alerts.Publisher
	Incidents *incidents.Client
	Deploys   *deployments.Store

	EventBus  interfaces.EventBus
	Scheduler interfaces.SchedulerService
	LLM       interfaces.LLMService
	Cache     interfaces.CacheService

	Monitor  *monitor.Service
	Analyzer *analyzer.Service
	Executor *executor.Service
}

// New wires the full pipeline: storage, adapters, and all three stages,
// subscribing the Analyzer and Executor to the event bus so a published
// MessageEnriched or MessageClassified event drives the next stage without
// any component calling another synchronously (§2 "Data flow is strictly forward").
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	appCtx, cancel := context.WithCancel(ctx)
	a := &App{Config: cfg, Logger: logger, ctx: appCtx, cancel: cancel}

	store, err := badger.NewStore(
		logger,
		&cfg.Storage.Badger,
		time.Duration(cfg.Monitor.LedgerTTLDays)*24*time.Hour,
		time.Duration(cfg.Analyzer.RecordTTLDays)*24*time.Hour,
		time.Duration(cfg.Analyzer.CacheTTLHours)*time.Hour,
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize badger store: %w", err)
	}
	a.Store = store

	a.Discovery = queue.NewDiscoveryService(logger)
	a.Objects = archive.NewStore(logger)
	a.Alerts = alerts.NewPublisher(logger)
	a.Incidents = incidents.NewClient(logger)
	a.Deploys = deployments.NewStore(logger)

	a.EventBus = events.NewService(logger)
	a.Scheduler = scheduler.NewService(logger)
	a.Cache = cache.NewService(store.Cache, logger)

	if cfg.Features.LLMClassificationEnabled {
		claudeSvc, err := llm.NewClaudeService(appCtx, &cfg.Claude, store.KV, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("claude LLM service unavailable, analyzer will use fallback path for every non-heuristic message")
		} else {
			a.LLM = claudeSvc
		}
	}

	a.Monitor = monitor.NewService(
		a.Discovery,
		a.Store.Ledger,
		a.Store.Record,
		a.Deploys,
		a.EventBus,
		logger,
		monitor.Config{
			DLQNamePattern:     cfg.Monitor.DLQNamePattern,
			MaxMessagesPerPoll: cfg.Monitor.MaxMessagesPerPoll,
			VisibilityTimeout:  cfg.MonitorVisibilityTimeout(),
			LongPollWait:       cfg.MonitorLongPollWait(),
			HardCap:            cfg.Monitor.MaxRetriesMonitor,
			DeploymentWindow:   time.Duration(cfg.Monitor.SystemicWindowMS) * time.Millisecond,
		},
	)

	a.Analyzer = analyzer.NewService(
		a.Cache,
		a.Store.Record,
		a.LLM,
		a.EventBus,
		logger,
		analyzer.Config{
			ConfidenceThreshold: cfg.Analyzer.ConfidenceThreshold,
			SystemicMinSimilar:  cfg.Analyzer.SystemicMinSimilar,
			CacheTTL:            time.Duration(cfg.Analyzer.CacheTTLHours) * time.Hour,
			RecordTTL:           time.Duration(cfg.Analyzer.RecordTTLDays) * 24 * time.Hour,
			LLMEnabled:          cfg.Features.LLMClassificationEnabled,
		},
	)

	a.Executor = executor.NewService(
		a.Discovery,
		a.Store.Record,
		a.Objects,
		a.Alerts,
		a.Incidents,
		logger,
		executor.Config{
			MaxRetries:        cfg.Executor.MaxRetriesExecutor,
			BackoffBaseS:      cfg.Executor.BackoffBaseS,
			BackoffMaxS:       cfg.Executor.BackoffMaxS,
			AutoReplayEnabled: cfg.Features.AutoReplayEnabled,
			IncidentsEnabled:  cfg.Features.IncidentIntegrationEnabled,
			ProjectName:       cfg.Executor.ProjectName,
		},
	)

	if err := a.EventBus.Subscribe(interfaces.EventMessageEnriched, a.Analyzer.HandleMessageEnriched); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe analyzer to MessageEnriched: %w", err)
	}
	if err := a.EventBus.Subscribe(interfaces.EventMessageClassified, a.Executor.HandleMessageClassified); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe executor to MessageClassified: %w", err)
	}

	if err := a.Scheduler.RegisterJob("monitor-poll", cfg.Monitor.Schedule, func() error {
		return a.Monitor.Run(a.ctx)
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register monitor job: %w", err)
	}

	return a, nil
}

// Close releases every resource the app opened.
func (a *App) Close() error {
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("scheduler stop failed")
		}
	}
	if a.LLM != nil {
		if err := a.LLM.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("llm close failed")
		}
	}
	if a.EventBus != nil {
		if err := a.EventBus.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("event bus close failed")
		}
	}
	a.cancel()
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
