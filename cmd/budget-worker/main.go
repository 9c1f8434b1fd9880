package main

import (
	"time"

	"budgetboard/internal/amqp"
	"budgetboard/internal/backend"
	"budgetboard/internal/cli"
	"budgetboard/internal/config"
	"budgetboard/internal/log"
	"budgetboard/internal/services"
	"budgetboard/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadConfig((*config.Config).ValidateWorker)
	logger = logger.WithComponent(log.ComponentWorker)

	logger.Info("Starting budget-worker",
		"import_source", cfg.ImportSource,
		"interval", cfg.ImportInterval.String())

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	// SQLite is the destination every dashboard server with DATA_BACKEND=sqlite reads
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sourceCfg, err := backend.ImportSourceFromAppConfig(cfg)
	if err != nil {
		cli.Fatal(logger, "Invalid import source", err)
	}
	source, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateBackend(ctx, sourceCfg)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize import source", err, "source", cfg.ImportSource)
	}
	defer source.Close()

	var publisher services.DatasetUpdatedPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			cli.Fatal(logger, "Failed to initialize AMQP client", err)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - imports will not be announced")
	}

	importer := services.NewImporter(source.Backend, source.Source, repo, publisher)
	importWorker := worker.NewImportWorker(importer, worker.Config{
		Interval:   cfg.ImportInterval,
		RunOnStart: true,
	})
	if err := importWorker.Start(ctx); err != nil {
		cli.Fatal(logger, "Failed to start import worker", err)
	}

	<-ctx.Done()
	logger.Info("Shutting down worker...")
	cli.RunShutdown(logger, 30*time.Second, importWorker.Stop)

	stats := importWorker.Stats()
	logger.Info("Worker stopped",
		"runs", stats.Runs,
		"failures", stats.Failures,
		log.FieldImportID, stats.LastImport.ID)
}
