package sheets

import (
	"context"

	"budgetboard/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenditureReader returns a complete expenditure dataset.
	ExpenditureReader interface {
		Fetch(ctx context.Context) ([]core.Expenditure, error)
	}

	// ExpenditureWriter replaces the stored dataset with records imported
	// from source.
	ExpenditureWriter interface {
		ReplaceAll(ctx context.Context, source string, records []core.Expenditure) error
	}
)
