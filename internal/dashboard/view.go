package dashboard

import (
	"cmp"
	"fmt"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/crossfilter"
)

type (
	// Entry is one key of a chart or select menu.
	Entry struct {
		Key      crossfilter.Key `json:"key"`
		Value    float64         `json:"value"`
		Title    string          `json:"title"`
		Selected bool            `json:"selected,omitempty"`
	}

	// Chart is a render-ready group. ColorKeys is the ordinal colour domain
	// for keyed charts; ColorExtent the [min, max] value domain for the
	// heatmap.
	Chart struct {
		Dimension   string     `json:"dimension"`
		Entries     []Entry    `json:"entries"`
		ColorKeys   []string   `json:"color_keys,omitempty"`
		ColorExtent []float64  `json:"color_extent,omitempty"`
		Filter      *Selection `json:"filter,omitempty"`
	}

	// SelectMenu is a multi-select over one dimension ordered by value.
	SelectMenu struct {
		Dimension string  `json:"dimension"`
		Label     string  `json:"label"`
		Multiple  bool    `json:"multiple"`
		Visible   int     `json:"visible"`
		Options   []Entry `json:"options"`
	}

	// Counter is the "N selected out of M records" display.
	Counter struct {
		Selected int    `json:"selected"`
		Total    int    `json:"total"`
		Text     string `json:"text"`
	}

	// TotalBudget is the sum of budget over the selected records.
	TotalBudget struct {
		Value   float64 `json:"value"`
		Display string  `json:"display"`
	}

	// Table is the data table: the top rows by budget year.
	Table struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}

	// Snapshot is everything a client needs to redraw the dashboard.
	Snapshot struct {
		Sunburst Chart        `json:"sunburst"`
		Heatmap  Chart        `json:"heatmap"`
		Row      Chart        `json:"row"`
		Selects  []SelectMenu `json:"selects"`
		Counter  Counter      `json:"counter"`
		Total    TotalBudget  `json:"total"`
		Table    Table        `json:"table"`
	}
)

// DefaultTableSize is the number of data table rows shown.
const DefaultTableSize = 10

var tableColumns = []string{"Department", "Branch", "Program", "Fund Type", "Budget Year", "Budget"}

// Snapshot renders the current state of every chart.
func (b *Board) Snapshot(tableSize int) Snapshot {
	snap := Snapshot{
		Sunburst: b.chart(core.DimBranchProgram, chartTitle),
		Heatmap:  b.chart(core.DimFundTypeYear, heatmapTitle),
		Row:      b.chart(core.DimDepartment, chartTitle),
		Counter:  b.Counter(),
		Total:    b.Total(),
		Table:    b.Table(tableSize),
	}
	snap.Sunburst.ColorKeys = b.dataset.BranchPrograms()
	snap.Row.ColorKeys = b.dataset.Departments()
	snap.Heatmap.ColorExtent = extent(snap.Heatmap.Entries)
	for _, bd := range b.dims {
		snap.Selects = append(snap.Selects, b.selectMenu(bd))
	}
	return snap
}

func (b *Board) chart(name string, title func(crossfilter.Key, float64) string) Chart {
	bd := b.byName[name]
	all := bd.group.All()
	c := Chart{Dimension: name, Entries: make([]Entry, len(all)), Filter: bd.sel}
	for i, kv := range all {
		c.Entries[i] = b.entry(bd, kv, title)
	}
	return c
}

func (b *Board) entry(bd *boardDimension, kv crossfilter.KeyValue[float64], title func(crossfilter.Key, float64) string) Entry {
	return Entry{
		Key:      kv.Key,
		Value:    kv.Value,
		Title:    title(kv.Key, kv.Value),
		Selected: bd.sel != nil && bd.sel.contains(kv.Key),
	}
}

// SelectMenu renders the named dimension's select menu.
func (b *Board) SelectMenu(name string) (SelectMenu, error) {
	bd, err := b.lookup(name)
	if err != nil {
		return SelectMenu{}, err
	}
	return b.selectMenu(bd), nil
}

// selectMenu orders options by value descending; equal values fall back to
// ascending key so the menu is stable between redraws.
func (b *Board) selectMenu(bd *boardDimension) SelectMenu {
	top := bd.group.Top(-1, cmp.Compare[float64])
	m := SelectMenu{
		Dimension: bd.spec.Name,
		Label:     bd.spec.Label,
		Multiple:  true,
		Visible:   bd.spec.Visible,
		Options:   make([]Entry, len(top)),
	}
	for i, kv := range top {
		m.Options[i] = b.entry(bd, kv, chartTitle)
	}
	return m
}

// Counter reports how many records the filter set selects.
func (b *Board) Counter() Counter {
	c := Counter{Selected: b.store.FilteredSize(), Total: b.store.Size()}
	if c.Selected == c.Total {
		c.Text = "All records selected. Please click on the chart(s) to apply filters."
	} else {
		c.Text = fmt.Sprintf("%s selected out of %s records.",
			core.FormatNumber(float64(c.Selected)), core.FormatNumber(float64(c.Total)))
	}
	return c
}

// Total reports the budget sum over the selected records.
func (b *Board) Total() TotalBudget {
	v := b.total.Value()
	return TotalBudget{Value: v, Display: core.FormatNumber(v)}
}

// Table returns up to size selected records with the latest budget years
// first. size <= 0 means DefaultTableSize.
func (b *Board) Table(size int) Table {
	if size <= 0 {
		size = DefaultTableSize
	}
	rows := b.byName[core.DimBudgetYear].dim.TopVisible(size)
	t := Table{Columns: tableColumns, Rows: make([][]string, len(rows))}
	for i, r := range rows {
		t.Rows[i] = []string{r.Department, r.Branch, r.Program, r.FundType, r.BudgetYear, core.FormatDollars(r.Budget)}
	}
	return t
}

func keyLabel(k crossfilter.Key) string {
	parts := make([]string, k.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(k.At(i))
	}
	return strings.Join(parts, ",")
}

func chartTitle(k crossfilter.Key, v float64) string {
	return keyLabel(k) + ": " + core.FormatDollars(v)
}

func heatmapTitle(k crossfilter.Key, v float64) string {
	var fund, year string
	if k.Len() == 2 {
		fund, year = fmt.Sprint(k.At(0)), fmt.Sprint(k.At(1))
	}
	return "Fund Type: " + fund + "\nYear: " + year + "\nValue: " + core.FormatDollars(v)
}

func extent(entries []Entry) []float64 {
	if len(entries) == 0 {
		return nil
	}
	lo, hi := entries[0].Value, entries[0].Value
	for _, e := range entries[1:] {
		lo = min(lo, e.Value)
		hi = max(hi, e.Value)
	}
	return []float64{lo, hi}
}
