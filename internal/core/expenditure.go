// Package core holds the budget expenditure record and its validation rules.
package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dimension names served by the dashboard.
const (
	DimBranchProgram = "branch_program"
	DimDepartment    = "department"
	DimFundType      = "fund_type"
	DimFundTypeYear  = "fund_type_year"
	DimBudgetYear    = "budget_year"
)

// DimensionNames lists every dashboard dimension in display order.
var DimensionNames = []string{
	DimBranchProgram,
	DimDepartment,
	DimFundType,
	DimFundTypeYear,
	DimBudgetYear,
}

type (
	// Expenditure is one budget line. Records are immutable once loaded.
	Expenditure struct {
		Department string  `json:"department"`
		Branch     string  `json:"branch"`
		Program    string  `json:"program"`
		FundType   string  `json:"fund_type"`
		BudgetYear string  `json:"budget_year"`
		Budget     float64 `json:"budget"`
	}
)

var (
	ErrEmptyDepartment = errors.New("empty department")
	ErrEmptyBranch     = errors.New("empty branch")
	ErrEmptyProgram    = errors.New("empty program")
	ErrEmptyFundType   = errors.New("empty fund type")
	ErrEmptyBudgetYear = errors.New("empty budget year")
	ErrInvalidBudget   = errors.New("invalid budget")
	ErrMissingBudget   = errors.New("missing budget")
)

func (e Expenditure) Validate() error {
	if strings.TrimSpace(e.Department) == "" {
		return ErrEmptyDepartment
	}
	if strings.TrimSpace(e.Branch) == "" {
		return ErrEmptyBranch
	}
	if strings.TrimSpace(e.Program) == "" {
		return ErrEmptyProgram
	}
	if strings.TrimSpace(e.FundType) == "" {
		return ErrEmptyFundType
	}
	if strings.TrimSpace(e.BudgetYear) == "" {
		return ErrEmptyBudgetYear
	}
	if math.IsNaN(e.Budget) || math.IsInf(e.Budget, 0) {
		return ErrInvalidBudget
	}
	return nil
}

// UnmarshalJSON decodes a record strictly: budget must be a JSON number and
// must be present. budget_year may be a string or a number since published
// datasets use both.
func (e *Expenditure) UnmarshalJSON(data []byte) error {
	var raw struct {
		Department string          `json:"department"`
		Branch     string          `json:"branch"`
		Program    string          `json:"program"`
		FundType   string          `json:"fund_type"`
		BudgetYear json.RawMessage `json:"budget_year"`
		Budget     json.RawMessage `json:"budget"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	budget := bytes.TrimSpace(raw.Budget)
	if len(budget) == 0 || bytes.Equal(budget, []byte("null")) {
		return ErrMissingBudget
	}
	var amount json.Number
	if err := json.Unmarshal(budget, &amount); err != nil || budget[0] == '"' {
		return fmt.Errorf("%w: %s", ErrInvalidBudget, budget)
	}
	value, err := amount.Float64()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBudget, budget)
	}

	year, err := yearString(raw.BudgetYear)
	if err != nil {
		return err
	}

	*e = Expenditure{
		Department: raw.Department,
		Branch:     raw.Branch,
		Program:    raw.Program,
		FundType:   raw.FundType,
		BudgetYear: year,
		Budget:     value,
	}
	return nil
}

func yearString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("budget_year: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
