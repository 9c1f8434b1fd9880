package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"budgetboard/internal/amqp"
	"budgetboard/internal/dashboard"
	"budgetboard/internal/metrics"
	"budgetboard/internal/sheets"
)

// ErrDatasetNotLoaded is returned while no dataset has been loaded yet.
var ErrDatasetNotLoaded = errors.New("dataset not loaded")

// DatasetService owns the dataset new sessions are built over. Reload swaps
// it atomically; sessions already open keep the dataset they started with.
type DatasetService struct {
	reader sheets.ExpenditureReader
	source string

	reloadMu sync.Mutex
	current  atomic.Pointer[dashboard.Dataset]
}

func NewDatasetService(reader sheets.ExpenditureReader, source string) *DatasetService {
	return &DatasetService{reader: reader, source: source}
}

// Reload fetches and validates the dataset. On error the current dataset is
// kept.
func (s *DatasetService) Reload(ctx context.Context) (*dashboard.Dataset, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	records, err := s.reader.Fetch(ctx)
	if err != nil {
		metrics.ObserveDatasetLoad(0, 0, err)
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	ds, err := dashboard.NewDataset(s.source, records)
	if err != nil {
		metrics.ObserveDatasetLoad(0, 0, err)
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	s.current.Store(ds)
	metrics.ObserveDatasetLoad(ds.Len(), ds.Total(), nil)

	slog.InfoContext(ctx, "Dataset loaded",
		"source", s.source,
		"records", ds.Len(),
		"total_budget", ds.Total())
	return ds, nil
}

// Current returns the loaded dataset.
func (s *DatasetService) Current() (*dashboard.Dataset, error) {
	ds := s.current.Load()
	if ds == nil {
		return nil, ErrDatasetNotLoaded
	}
	return ds, nil
}

// Ready reports whether a dataset is loaded.
func (s *DatasetService) Ready() bool { return s.current.Load() != nil }

// HandleDatasetUpdated reloads in response to an import notification.
func (s *DatasetService) HandleDatasetUpdated(ctx context.Context, msg *amqp.DatasetUpdatedMessage) error {
	slog.InfoContext(ctx, "Dataset update received",
		"import_id", msg.ImportID,
		"source", msg.Source,
		"records", msg.RecordCount)
	_, err := s.Reload(ctx)
	return err
}
