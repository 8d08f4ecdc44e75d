// Package notifier assembles the push-notification engine into a runnable
// service: stream pipeline, token API, and the scheduled compaction sweep.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/robfig/cron/v3"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/alpaltug/shuffl-repo/internal/api"
	"github.com/alpaltug/shuffl-repo/internal/engine"
	"github.com/alpaltug/shuffl-repo/internal/pipeline"
	"github.com/alpaltug/shuffl-repo/internal/trigger"
	"github.com/alpaltug/shuffl-repo/notifier/config"
	"github.com/alpaltug/shuffl-repo/pkg/dispatch"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[trigger.Result]
	scheduler       *cron.Cron
	logger          *slog.Logger
}

// New assembles the service from its external collaborators.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	multicaster dispatch.Multicaster,
	tokenStore dispatch.TokenStorage,
	users dispatch.UserDirectory,
	conversations dispatch.ConversationStore,
	claims dispatch.ClaimStore,
	cleaner dispatch.NotificationCleaner,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Engine
	guard := engine.NewGuard(claims, logger)
	resolver := engine.NewResolver(conversations)
	builder := engine.NewBuilder(users, logger)
	fanout := engine.NewFanout(tokenStore, multicaster, cfg.FanoutConcurrency, logger)
	reconciler := engine.NewReconciler(tokenStore, logger)

	processor := pipeline.NewProcessor(guard, resolver, builder, fanout, reconciler, users, cleaner, logger)

	// 3. Pipeline
	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.TriggerTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	// 4. Compaction schedule
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.CompactionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := reconciler.CompactAll(ctx); err != nil {
			logger.Error("Scheduled token compaction failed", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid compaction schedule %q: %w", cfg.CompactionSchedule, err)
	}

	// 5. API (Token Registration)
	tokenAPI := api.NewTokenAPI(tokenStore, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	handle("POST /api/v1/register/token", tokenAPI.RegisterToken)
	handle("POST /api/v1/unregister/token", tokenAPI.UnregisterToken)

	// CORS preflight for the API namespace
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		scheduler:       scheduler,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.scheduler.Start()
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	<-w.scheduler.Stop().Done()
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
