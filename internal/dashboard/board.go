package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/crossfilter"
)

// ErrUnknownDimension is returned for a dimension name the board does not have.
var ErrUnknownDimension = errors.New("unknown dimension")

// DimensionInfo describes one dashboard dimension.
type DimensionInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	// Arity is the number of key components; 2 for tuple dimensions.
	Arity int `json:"arity"`
	// Visible is the number of rows the dimension's select menu shows.
	Visible int `json:"visible"`
}

type dimensionSpec struct {
	DimensionInfo
	key func(core.Expenditure) crossfilter.Key
}

var specs = []dimensionSpec{
	{
		DimensionInfo: DimensionInfo{Name: core.DimBranchProgram, Label: "Branch / Program", Arity: 2, Visible: 11},
		key: func(e core.Expenditure) crossfilter.Key {
			return crossfilter.Tuple(crossfilter.String(e.Branch), crossfilter.String(e.Program))
		},
	},
	{
		DimensionInfo: DimensionInfo{Name: core.DimDepartment, Label: "Department", Arity: 1, Visible: 11},
		key:           func(e core.Expenditure) crossfilter.Key { return crossfilter.String(e.Department) },
	},
	{
		DimensionInfo: DimensionInfo{Name: core.DimFundType, Label: "Fund Type", Arity: 1, Visible: 5},
		key:           func(e core.Expenditure) crossfilter.Key { return crossfilter.String(e.FundType) },
	},
	{
		DimensionInfo: DimensionInfo{Name: core.DimFundTypeYear, Label: "Fund Type / Year", Arity: 2, Visible: 10},
		key: func(e core.Expenditure) crossfilter.Key {
			return crossfilter.Tuple(crossfilter.String(e.FundType), crossfilter.String(e.BudgetYear))
		},
	},
	{
		DimensionInfo: DimensionInfo{Name: core.DimBudgetYear, Label: "Budget Year", Arity: 1, Visible: 4},
		key:           func(e core.Expenditure) crossfilter.Key { return crossfilter.String(e.BudgetYear) },
	},
}

// Dimensions lists the dashboard dimensions in display order.
func Dimensions() []DimensionInfo {
	out := make([]DimensionInfo, len(specs))
	for i, s := range specs {
		out[i] = s.DimensionInfo
	}
	return out
}

// Selection is a user's choice on one dimension: a set of keys (multi-select
// menus, chart clicks) or a half-open key range.
type Selection struct {
	Keys  []crossfilter.Key `json:"keys,omitempty"`
	Range []crossfilter.Key `json:"range,omitempty"`
}

func (s Selection) filter(info DimensionInfo) (crossfilter.Filter, error) {
	invalid := func(reason string) error {
		return &crossfilter.InvalidFilterError{Dimension: info.Name, Reason: reason}
	}
	switch {
	case s.Keys != nil && s.Range != nil:
		return nil, invalid("keys and range are mutually exclusive")
	case s.Range != nil:
		if len(s.Range) != 2 {
			return nil, invalid("range needs exactly two bounds")
		}
		for _, k := range s.Range {
			if k.Len() != info.Arity {
				return nil, invalid(fmt.Sprintf("range bound %q has %d components, want %d", k, k.Len(), info.Arity))
			}
		}
		return crossfilter.Range(s.Range[0], s.Range[1]), nil
	case s.Keys != nil:
		for _, k := range s.Keys {
			if k.Len() != info.Arity {
				return nil, invalid(fmt.Sprintf("key %q has %d components, want %d", k, k.Len(), info.Arity))
			}
		}
		return crossfilter.In(s.Keys...), nil
	default:
		return nil, invalid("selection needs keys or range")
	}
}

// String renders the selection for logs.
func (s Selection) String() string {
	if s.Range != nil {
		if len(s.Range) != 2 {
			return "range(?)"
		}
		return "range(" + s.Range[0].String() + " .. " + s.Range[1].String() + ")"
	}
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		parts[i] = "[" + k.String() + "]"
	}
	return "in(" + strings.Join(parts, " ") + ")"
}

func (s Selection) contains(k crossfilter.Key) bool {
	if s.Range != nil {
		return k.Compare(s.Range[0]) >= 0 && k.Compare(s.Range[1]) < 0
	}
	for _, sel := range s.Keys {
		if sel.Equal(k) {
			return true
		}
	}
	return false
}

type boardDimension struct {
	spec  dimensionSpec
	dim   *crossfilter.Dimension[core.Expenditure]
	group *crossfilter.Group[core.Expenditure, float64]
	sel   *Selection
}

// Board is one filter set over a dataset with the dashboard's dimensions and
// groups attached. It is not safe for concurrent use; Session serialises it.
type Board struct {
	dataset *Dataset
	store   *crossfilter.Store[core.Expenditure]
	dims    []*boardDimension
	byName  map[string]*boardDimension
	total   *crossfilter.GroupAll[core.Expenditure, float64]
}

// NewBoard builds the dashboard's dimensions and sum-of-budget groups.
// opts apply to every group.
func NewBoard(ds *Dataset, opts ...crossfilter.GroupOption) (*Board, error) {
	store, err := crossfilter.Load(ds.records, nil)
	if err != nil {
		return nil, err
	}
	b := &Board{
		dataset: ds,
		store:   store,
		byName:  make(map[string]*boardDimension, len(specs)),
	}
	for _, spec := range specs {
		dim, err := store.Dimension(spec.Name, spec.key)
		if err != nil {
			return nil, fmt.Errorf("dimension %s: %w", spec.Name, err)
		}
		bd := &boardDimension{spec: spec, dim: dim, group: dim.GroupSum(budget, opts...)}
		b.dims = append(b.dims, bd)
		b.byName[spec.Name] = bd
	}
	b.total = crossfilter.NewGroupAll(store, crossfilter.Sum(budget), opts...)
	return b, nil
}

func budget(e core.Expenditure) float64 { return e.Budget }

func (b *Board) lookup(name string) (*boardDimension, error) {
	bd, ok := b.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDimension, name)
	}
	return bd, nil
}

// Select applies sel to the named dimension. On error nothing changes.
func (b *Board) Select(name string, sel Selection) error {
	bd, err := b.lookup(name)
	if err != nil {
		return err
	}
	f, err := sel.filter(bd.spec.DimensionInfo)
	if err != nil {
		return err
	}
	if err := bd.dim.Filter(f); err != nil {
		return err
	}
	bd.sel = &sel
	return nil
}

// Clear removes the named dimension's filter.
func (b *Board) Clear(name string) error {
	bd, err := b.lookup(name)
	if err != nil {
		return err
	}
	bd.dim.FilterAll()
	bd.sel = nil
	return nil
}

// Reset clears every filter.
func (b *Board) Reset() {
	b.store.FilterAll()
	for _, bd := range b.dims {
		bd.sel = nil
	}
}

// Subscribe registers fn for every applied filter change.
func (b *Board) Subscribe(fn func(crossfilter.ChangeEvent)) (unsubscribe func()) {
	return b.store.Subscribe(fn)
}

// Selections returns the active selection of every filtered dimension.
func (b *Board) Selections() map[string]Selection {
	out := make(map[string]Selection)
	for _, bd := range b.dims {
		if bd.sel != nil {
			out[bd.spec.Name] = *bd.sel
		}
	}
	return out
}

// Dataset returns the dataset the board was built over.
func (b *Board) Dataset() *Dataset { return b.dataset }
