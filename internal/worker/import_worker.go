package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetboard/internal/storage"
)

// Importer runs a single import. *services.Importer implements it.
type Importer interface {
	Import(ctx context.Context) (storage.ImportInfo, error)
}

// Config holds configuration for the import worker
type Config struct {
	// Interval is how often the source is imported (default: 1h)
	Interval time.Duration

	// RunOnStart imports once before waiting for the first tick.
	RunOnStart bool
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// Stats summarises the worker's runs so far.
type Stats struct {
	Runs       int
	Failures   int
	LastImport storage.ImportInfo
	LastError  error
	LastRun    time.Time
}

// ImportWorker periodically copies the configured source into SQLite.
type ImportWorker struct {
	importer Importer
	config   Config

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   Stats
}

func NewImportWorker(importer Importer, config Config) *ImportWorker {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &ImportWorker{importer: importer, config: config}
}

// Start begins the import loop. Returns an error if already running.
func (w *ImportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("import worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Import worker started",
		"interval", w.config.Interval,
		"run_on_start", w.config.RunOnStart)
	return nil
}

// Stop stops the loop and waits for an in-flight import to finish.
func (w *ImportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Import worker stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Import worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *ImportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns a copy of the run statistics.
func (w *ImportWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *ImportWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one import and records its outcome.
func (w *ImportWorker) RunOnce(ctx context.Context) error {
	start := time.Now()
	info, err := w.importer.Import(ctx)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.LastRun = start
	w.stats.LastError = err
	if err != nil {
		w.stats.Failures++
	} else {
		w.stats.LastImport = info
	}
	w.mu.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "Import failed",
			"error", err,
			"duration", time.Since(start))
		return err
	}
	slog.InfoContext(ctx, "Import completed",
		"import_id", info.ID,
		"source", info.Source,
		"records", info.RecordCount,
		"total_budget", info.TotalBudget,
		"duration", time.Since(start))
	return nil
}
