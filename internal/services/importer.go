package services

import (
	"context"
	"fmt"
	"log/slog"

	"budgetboard/internal/amqp"
	"budgetboard/internal/dashboard"
	"budgetboard/internal/sheets"
	"budgetboard/internal/storage"
)

// ImportStore is the destination of an import.
type ImportStore interface {
	sheets.ExpenditureWriter
	LatestImport(ctx context.Context) (storage.ImportInfo, error)
}

// DatasetUpdatedPublisher is implemented by *amqp.Client.
type DatasetUpdatedPublisher interface {
	PublishDatasetUpdated(ctx context.Context, msg *amqp.DatasetUpdatedMessage) error
}

// Importer copies a dataset from a source into the store and announces it.
type Importer struct {
	source     sheets.ExpenditureReader
	sourceName string
	store      ImportStore
	publisher  DatasetUpdatedPublisher
}

// NewImporter wires an importer. publisher may be nil.
func NewImporter(source sheets.ExpenditureReader, sourceName string, store ImportStore, publisher DatasetUpdatedPublisher) *Importer {
	return &Importer{
		source:     source,
		sourceName: sourceName,
		store:      store,
		publisher:  publisher,
	}
}

// Import runs one import. A dataset that would not load into the dashboard
// is rejected before anything is written.
func (i *Importer) Import(ctx context.Context) (storage.ImportInfo, error) {
	records, err := i.source.Fetch(ctx)
	if err != nil {
		return storage.ImportInfo{}, fmt.Errorf("fetch source: %w", err)
	}
	if _, err := dashboard.NewDataset(i.sourceName, records); err != nil {
		return storage.ImportInfo{}, fmt.Errorf("validate source: %w", err)
	}
	if err := i.store.ReplaceAll(ctx, i.sourceName, records); err != nil {
		return storage.ImportInfo{}, fmt.Errorf("store import: %w", err)
	}
	info, err := i.store.LatestImport(ctx)
	if err != nil {
		return storage.ImportInfo{}, fmt.Errorf("read import: %w", err)
	}

	if i.publisher == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping dataset updated message")
		return info, nil
	}
	msg := amqp.NewDatasetUpdatedMessage(info.ID, info.Source, info.RecordCount, info.TotalBudget)
	if err := i.publisher.PublishDatasetUpdated(ctx, msg); err != nil {
		// The import is stored; servers pick it up on their next reload.
		slog.ErrorContext(ctx, "Failed to publish dataset updated message",
			"import_id", info.ID, "error", err)
	}
	return info, nil
}
