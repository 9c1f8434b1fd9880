package storage

import (
	"context"
)

// Import is one row of the imports table.
type Import struct {
	ID          int64
	Source      string
	RecordCount int64
	TotalBudget float64
	ImportedAt  string
}

// Expenditure is one row of the expenditures table.
type Expenditure struct {
	ImportID   int64
	Position   int64
	Department string
	Branch     string
	Program    string
	FundType   string
	BudgetYear string
	Budget     float64
}

const createImport = `
INSERT INTO imports (source, record_count, total_budget, imported_at)
VALUES (?, ?, ?, ?)
RETURNING id, source, record_count, total_budget, imported_at
`

type CreateImportParams struct {
	Source      string
	RecordCount int64
	TotalBudget float64
	ImportedAt  string
}

func (q *Queries) CreateImport(ctx context.Context, arg CreateImportParams) (Import, error) {
	row := q.db.QueryRowContext(ctx, createImport, arg.Source, arg.RecordCount, arg.TotalBudget, arg.ImportedAt)
	var i Import
	err := row.Scan(&i.ID, &i.Source, &i.RecordCount, &i.TotalBudget, &i.ImportedAt)
	return i, err
}

const insertExpenditure = `
INSERT INTO expenditures (import_id, position, department, branch, program, fund_type, budget_year, budget)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) InsertExpenditure(ctx context.Context, arg Expenditure) error {
	_, err := q.db.ExecContext(ctx, insertExpenditure,
		arg.ImportID,
		arg.Position,
		arg.Department,
		arg.Branch,
		arg.Program,
		arg.FundType,
		arg.BudgetYear,
		arg.Budget,
	)
	return err
}

const getLatestImport = `
SELECT id, source, record_count, total_budget, imported_at
FROM imports
ORDER BY id DESC
LIMIT 1
`

func (q *Queries) GetLatestImport(ctx context.Context) (Import, error) {
	row := q.db.QueryRowContext(ctx, getLatestImport)
	var i Import
	err := row.Scan(&i.ID, &i.Source, &i.RecordCount, &i.TotalBudget, &i.ImportedAt)
	return i, err
}

const listImports = `
SELECT id, source, record_count, total_budget, imported_at
FROM imports
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListImports(ctx context.Context, limit int64) ([]Import, error) {
	rows, err := q.db.QueryContext(ctx, listImports, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Import
	for rows.Next() {
		var i Import
		if err := rows.Scan(&i.ID, &i.Source, &i.RecordCount, &i.TotalBudget, &i.ImportedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getExpendituresByImport = `
SELECT import_id, position, department, branch, program, fund_type, budget_year, budget
FROM expenditures
WHERE import_id = ?
ORDER BY position
`

func (q *Queries) GetExpendituresByImport(ctx context.Context, importID int64) ([]Expenditure, error) {
	rows, err := q.db.QueryContext(ctx, getExpendituresByImport, importID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expenditure
	for rows.Next() {
		var i Expenditure
		if err := rows.Scan(
			&i.ImportID,
			&i.Position,
			&i.Department,
			&i.Branch,
			&i.Program,
			&i.FundType,
			&i.BudgetYear,
			&i.Budget,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteExpendituresBefore = `
DELETE FROM expenditures
WHERE import_id < ?
`

func (q *Queries) DeleteExpendituresBefore(ctx context.Context, importID int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpendituresBefore, importID)
	return err
}
