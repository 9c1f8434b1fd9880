package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetboard/internal/amqp"
	"budgetboard/internal/backend"
	"budgetboard/internal/cache"
	"budgetboard/internal/cli"
	"budgetboard/internal/config"
	apphttp "budgetboard/internal/http"
	"budgetboard/internal/log"
	"budgetboard/internal/services"
)

const (
	filterEventBuffer      = 1024
	sessionCleanupInterval = time.Minute
	shutdownTimeout        = 30 * time.Second
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig((*config.Config).Validate)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid backend configuration", err)
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	source, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize data backend", err, "backend", cfg.DataBackend)
	}
	defer source.Close()

	datasets := services.NewDatasetService(source.Backend, source.Source)
	if _, err := datasets.Reload(ctx); err != nil {
		// Serve anyway: /readyz reports not ready until a reload succeeds.
		logger.Error("Initial dataset load failed", log.FieldError, err.Error(), log.FieldSource, source.Source)
	}

	// AMQP is optional: without it filter events are only logged and the
	// dataset is reloaded on restart.
	var (
		amqpClient *amqp.Client
		events     *services.FilterEventPublisher
		sink       services.FilterEventSink
	)
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer amqpClient.Close()
		events = services.NewFilterEventPublisher(amqpClient, filterEventBuffer)
		sink = events
		logger.Info("AMQP enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	sessions := services.NewSessionService(datasets, services.SessionConfig{
		TTL:        cfg.SessionTTL,
		Max:        cfg.SessionMax,
		LazyGroups: cfg.LazyGroups,
	}, sink)

	cacheManager := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register("sessions", sessions.Cleaner())
	cacheManager.StartCleanup(sessionCleanupInterval)

	srv := apphttp.NewServer(":"+cfg.Port, datasets, sessions, apphttp.Options{
		TableSize:         cfg.TableSize,
		RequestsPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:    cfg.AllowedOrigins,
		Logger:            logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting budgetboard server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"lazy_groups", cfg.LazyGroups)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if events != nil {
		g.Go(func() error {
			if err := events.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Filter event publisher stopped", log.FieldError, err.Error())
			}
			return nil
		})
	}

	if amqpClient != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeDatasetUpdated(gctx, func(msg *amqp.DatasetUpdatedMessage) error {
				return datasets.HandleDatasetUpdated(gctx, msg)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				// The dashboard keeps serving the dataset it has.
				logger.Error("Dataset update consumption stopped", log.FieldError, err.Error())
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		cli.RunShutdown(logger, shutdownTimeout,
			srv.Shutdown,
			func(context.Context) error {
				cacheManager.Stop()
				return nil
			},
		)
		return nil
	})

	if err := g.Wait(); err != nil {
		cli.Fatal(logger, "Server error", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully")
}
