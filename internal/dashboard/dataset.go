// Package dashboard builds the budget dashboard on top of the crossfilter
// engine: the five linked dimensions, their select menus, the counter, the
// total display and the data table.
package dashboard

import (
	"time"

	"budgetboard/internal/core"
	"budgetboard/internal/crossfilter"
)

// Dataset is a validated, immutable record set. Sessions share it and build
// their own filter state over it.
type Dataset struct {
	Source   string
	LoadedAt time.Time
	records  []core.Expenditure
	total    float64

	departments    []string
	branchPrograms []string
}

// NewDataset validates records and derives the colour-scale domains.
// An invalid record fails the whole dataset with a *crossfilter.MalformedDataError.
func NewDataset(source string, records []core.Expenditure) (*Dataset, error) {
	// Load validates and copies; the store itself is discarded.
	store, err := crossfilter.Load(records, core.Expenditure.Validate)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{
		Source:   source,
		LoadedAt: time.Now(),
		records:  store.Filtered(),
	}

	var branches, programs []string
	seenDept := map[string]bool{}
	seenBranch := map[string]bool{}
	seenProgram := map[string]bool{}
	for _, r := range ds.records {
		ds.total += r.Budget
		if !seenDept[r.Department] {
			seenDept[r.Department] = true
			ds.departments = append(ds.departments, r.Department)
		}
		if !seenBranch[r.Branch] {
			seenBranch[r.Branch] = true
			branches = append(branches, r.Branch)
		}
		if !seenProgram[r.Program] {
			seenProgram[r.Program] = true
			programs = append(programs, r.Program)
		}
	}
	seen := map[string]bool{}
	for _, name := range append(branches, programs...) {
		if !seen[name] {
			seen[name] = true
			ds.branchPrograms = append(ds.branchPrograms, name)
		}
	}
	return ds, nil
}

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// Total returns the unfiltered budget sum.
func (d *Dataset) Total() float64 { return d.total }

// Records returns a copy of the records in load order.
func (d *Dataset) Records() []core.Expenditure {
	return append([]core.Expenditure(nil), d.records...)
}

// Departments returns distinct departments in first-seen order.
func (d *Dataset) Departments() []string { return d.departments }

// BranchPrograms returns distinct branches followed by distinct programs, in
// first-seen order. It is the sunburst's ordinal colour domain.
func (d *Dataset) BranchPrograms() []string { return d.branchPrograms }
