package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"budgetboard/internal/core"
	ports "budgetboard/internal/sheets"

	_ "modernc.org/sqlite"
)

// ErrNoImport is returned by Fetch and LatestImport before the first import.
var ErrNoImport = errors.New("no dataset imported")

// ImportInfo describes one stored import.
type ImportInfo struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	RecordCount int       `json:"record_count"`
	TotalBudget float64   `json:"total_budget"`
	ImportedAt  time.Time `json:"imported_at"`
}

type SQLiteRepository struct {
	db            *sql.DB
	queries       *Queries
	schemaVersion uint
}

var (
	_ ports.ExpenditureReader = (*SQLiteRepository)(nil)
	_ ports.ExpenditureWriter = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateSchema(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "path", dbPath, "version", version)

	return &SQLiteRepository{
		db:            db,
		queries:       New(db),
		schemaVersion: version,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SchemaVersion is the migration version the database was brought to.
func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Fetch implements sheets.ExpenditureReader. It returns the latest import in
// its original order.
func (r *SQLiteRepository) Fetch(ctx context.Context) ([]core.Expenditure, error) {
	imp, err := r.queries.GetLatestImport(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoImport
	}
	if err != nil {
		return nil, fmt.Errorf("get latest import: %w", err)
	}

	rows, err := r.queries.GetExpendituresByImport(ctx, imp.ID)
	if err != nil {
		return nil, fmt.Errorf("get expenditures for import %d: %w", imp.ID, err)
	}
	out := make([]core.Expenditure, len(rows))
	for i, row := range rows {
		out[i] = core.Expenditure{
			Department: row.Department,
			Branch:     row.Branch,
			Program:    row.Program,
			FundType:   row.FundType,
			BudgetYear: row.BudgetYear,
			Budget:     row.Budget,
		}
	}
	return out, nil
}

// ReplaceAll implements sheets.ExpenditureWriter. The records become a new
// import; rows of older imports are pruned in the same transaction while
// their import metadata is kept.
func (r *SQLiteRepository) ReplaceAll(ctx context.Context, source string, records []core.Expenditure) error {
	var total float64
	for i, e := range records {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		total += e.Budget
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	imp, err := q.CreateImport(ctx, CreateImportParams{
		Source:      source,
		RecordCount: int64(len(records)),
		TotalBudget: total,
		ImportedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("create import: %w", err)
	}

	for i, e := range records {
		if err := q.InsertExpenditure(ctx, Expenditure{
			ImportID:   imp.ID,
			Position:   int64(i),
			Department: e.Department,
			Branch:     e.Branch,
			Program:    e.Program,
			FundType:   e.FundType,
			BudgetYear: e.BudgetYear,
			Budget:     e.Budget,
		}); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := q.DeleteExpendituresBefore(ctx, imp.ID); err != nil {
		return fmt.Errorf("prune old imports: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	slog.InfoContext(ctx, "Dataset imported to SQLite",
		"import_id", imp.ID,
		"source", source,
		"records", len(records),
		"total_budget", total)
	return nil
}

// LatestImport describes the import Fetch returns.
func (r *SQLiteRepository) LatestImport(ctx context.Context) (ImportInfo, error) {
	imp, err := r.queries.GetLatestImport(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ImportInfo{}, ErrNoImport
	}
	if err != nil {
		return ImportInfo{}, fmt.Errorf("get latest import: %w", err)
	}
	return toImportInfo(imp), nil
}

// ListImports returns up to limit imports, newest first.
func (r *SQLiteRepository) ListImports(ctx context.Context, limit int) ([]ImportInfo, error) {
	imps, err := r.queries.ListImports(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list imports: %w", err)
	}
	out := make([]ImportInfo, len(imps))
	for i, imp := range imps {
		out[i] = toImportInfo(imp)
	}
	return out, nil
}

func toImportInfo(imp Import) ImportInfo {
	// imported_at is always written by ReplaceAll in RFC 3339
	at, _ := time.Parse(time.RFC3339Nano, imp.ImportedAt)
	return ImportInfo{
		ID:          imp.ID,
		Source:      imp.Source,
		RecordCount: int(imp.RecordCount),
		TotalBudget: imp.TotalBudget,
		ImportedAt:  at,
	}
}
