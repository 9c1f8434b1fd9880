package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"budgetboard/internal/core"
	"budgetboard/internal/loader"
	ports "budgetboard/internal/sheets"
)

// SeedFile is the dataset NewFromFiles looks for in its base directory.
const SeedFile = "seed_expenditures.json"

// Store keeps a dataset in memory. It serves development runs and tests.
type Store struct {
	mu      sync.Mutex
	source  string
	records []core.Expenditure
}

var (
	_ ports.ExpenditureReader = (*Store)(nil)
	_ ports.ExpenditureWriter = (*Store)(nil)
)

func New(records []core.Expenditure) *Store {
	return &Store{source: "memory", records: append([]core.Expenditure(nil), records...)}
}

// NewFromFiles loads base/seed_expenditures.json. A missing file yields a
// small built-in dataset so the dashboard has something to show.
func NewFromFiles(base string) (*Store, error) {
	path := filepath.Join(base, SeedFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return New(defaultSeed), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	records, err := loader.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	s := New(records)
	s.source = "memory:" + path
	return s, nil
}

// Fetch returns a copy of the stored records.
func (s *Store) Fetch(_ context.Context) ([]core.Expenditure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expenditure(nil), s.records...), nil
}

// ReplaceAll swaps the stored records.
func (s *Store) ReplaceAll(_ context.Context, source string, records []core.Expenditure) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
	s.records = append([]core.Expenditure(nil), records...)
	return nil
}

// Source reports where the current records came from.
func (s *Store) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

var defaultSeed = []core.Expenditure{
	{Department: "Community Services", Branch: "Parks", Program: "Urban Forestry", FundType: "Operating", BudgetYear: "2017", Budget: 1250000},
	{Department: "Community Services", Branch: "Recreation", Program: "Aquatics", FundType: "Operating", BudgetYear: "2017", Budget: 830000},
	{Department: "Public Safety", Branch: "Fire Services", Program: "Emergency Response", FundType: "Operating", BudgetYear: "2017", Budget: 4100000},
	{Department: "Public Safety", Branch: "Fire Services", Program: "Station Renewal", FundType: "Capital", BudgetYear: "2018", Budget: 2300000},
	{Department: "Transportation", Branch: "Roads", Program: "Pavement Rehabilitation", FundType: "Capital", BudgetYear: "2018", Budget: 5600000},
	{Department: "Transportation", Branch: "Transit", Program: "Fleet Maintenance", FundType: "Operating", BudgetYear: "2018", Budget: 2750000},
}
