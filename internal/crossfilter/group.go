package crossfilter

import (
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// Reducer folds records into an aggregate. Remove must undo Add.
type Reducer[T, V any] struct {
	Add    func(acc V, r T) V
	Remove func(acc V, r T) V
	Init   func() V
}

// Sum returns a reducer summing value over the folded records.
func Sum[T any](value func(T) float64) Reducer[T, float64] {
	return Reducer[T, float64]{
		Add:    func(acc float64, r T) float64 { return acc + value(r) },
		Remove: func(acc float64, r T) float64 { return acc - value(r) },
		Init:   func() float64 { return 0 },
	}
}

// Count returns a reducer counting the folded records.
func Count[T any]() Reducer[T, int] {
	return Reducer[T, int]{
		Add:    func(acc int, _ T) int { return acc + 1 },
		Remove: func(acc int, _ T) int { return acc - 1 },
		Init:   func() int { return 0 },
	}
}

// KeyValue is one entry of a group.
type KeyValue[V any] struct {
	Key   Key `json:"key"`
	Value V   `json:"value"`
}

// State reports whether a group's cache matches the current filter set.
type State uint8

const (
	Clean State = iota
	Dirty
)

func (s State) String() string {
	if s == Dirty {
		return "dirty"
	}
	return "clean"
}

type groupOptions struct {
	rekey func(Key) Key
	lazy  bool
}

// GroupOption configures NewGroup and NewGroupAll.
type GroupOption func(*groupOptions)

// WithGroupKey maps dimension keys to coarser group keys.
func WithGroupKey(fn func(Key) Key) GroupOption {
	return func(o *groupOptions) { o.rekey = fn }
}

// WithLazyRecompute makes the group mark itself dirty on filter changes and
// recompute from scratch on the next read, instead of folding changes in.
func WithLazyRecompute() GroupOption {
	return func(o *groupOptions) { o.lazy = true }
}

// Group aggregates a dimension's records by key over every filter except the
// dimension's own.
type Group[T, V any] struct {
	store   *Store[T]
	pos     int
	reducer Reducer[T, V]
	isLazy  bool
	dirty   bool

	keys   []Key
	values []V
	counts []int
	slotOf []int32
	byID   map[string]int32
}

// NewGroup builds a group over dim and registers it with dim's store.
func NewGroup[T, V any](dim *Dimension[T], reducer Reducer[T, V], opts ...GroupOption) *Group[T, V] {
	var o groupOptions
	for _, opt := range opts {
		opt(&o)
	}

	g := &Group[T, V]{
		store:   dim.store,
		pos:     dim.pos,
		reducer: reducer,
		isLazy:  o.lazy,
		slotOf:  make([]int32, len(dim.keyOf)),
		byID:    make(map[string]int32),
	}

	groupKeys := dim.keyOf
	if o.rekey != nil {
		groupKeys = make([]Key, len(dim.keyOf))
		for id, k := range dim.keyOf {
			groupKeys[id] = o.rekey(k)
		}
	}
	for _, k := range groupKeys {
		if _, ok := g.byID[k.id]; !ok {
			g.byID[k.id] = 0
			g.keys = append(g.keys, k)
		}
	}
	slices.SortFunc(g.keys, Key.Compare)
	for i, k := range g.keys {
		g.byID[k.id] = int32(i)
	}
	for id, k := range groupKeys {
		g.slotOf[id] = g.byID[k.id]
	}

	g.values = make([]V, len(g.keys))
	g.counts = make([]int, len(g.keys))
	g.recompute()
	g.store.register(g)
	return g
}

func (g *Group[T, V]) dimension() int { return g.pos }
func (g *Group[T, V]) lazy() bool     { return g.isLazy }
func (g *Group[T, V]) invalidate()    { g.dirty = true }

// fold adds and removes records slot by slot. A slot left with no records is
// reset to Init so that float rounding from Add/Remove pairs cannot survive
// an empty selection.
func (g *Group[T, V]) fold(added, removed *roaring.Bitmap) {
	added.Iterate(func(id uint32) bool {
		s := g.slotOf[id]
		g.values[s] = g.reducer.Add(g.values[s], g.store.records[id])
		g.counts[s]++
		return true
	})
	removed.Iterate(func(id uint32) bool {
		s := g.slotOf[id]
		g.counts[s]--
		if g.counts[s] == 0 {
			g.values[s] = g.reducer.Init()
		} else {
			g.values[s] = g.reducer.Remove(g.values[s], g.store.records[id])
		}
		return true
	})
}

func (g *Group[T, V]) recompute() {
	for i := range g.values {
		g.values[i] = g.reducer.Init()
		g.counts[i] = 0
	}
	g.store.acceptedExcept(g.pos, noDimension).Iterate(func(id uint32) bool {
		s := g.slotOf[id]
		g.values[s] = g.reducer.Add(g.values[s], g.store.records[id])
		g.counts[s]++
		return true
	})
	g.dirty = false
}

func (g *Group[T, V]) refresh() {
	if g.dirty {
		g.recompute()
	}
}

// State reports whether the next read needs a recompute.
func (g *Group[T, V]) State() State {
	if g.dirty {
		return Dirty
	}
	return Clean
}

// Size returns the number of distinct group keys, filtered or not.
func (g *Group[T, V]) Size() int { return len(g.keys) }

// All returns every group in ascending key order. Groups whose records are all
// filtered out are reported with the reducer's initial value.
func (g *Group[T, V]) All() []KeyValue[V] {
	g.refresh()
	out := make([]KeyValue[V], len(g.keys))
	for i, k := range g.keys {
		out[i] = KeyValue[V]{Key: k, Value: g.values[i]}
	}
	return out
}

// Value returns the aggregate for key, or the initial value for unknown keys.
func (g *Group[T, V]) Value(key Key) V {
	s, ok := g.byID[key.id]
	if !ok {
		return g.reducer.Init()
	}
	g.refresh()
	return g.values[s]
}

// Top returns up to n groups with the largest values under compare. Equal
// values are ordered by ascending key. n < 0 returns every group.
func (g *Group[T, V]) Top(n int, compare func(a, b V) int) []KeyValue[V] {
	all := g.All()
	slices.SortStableFunc(all, func(a, b KeyValue[V]) int {
		if c := compare(b.Value, a.Value); c != 0 {
			return c
		}
		return a.Key.Compare(b.Key)
	})
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// GroupAll aggregates every record that satisfies the whole filter set.
type GroupAll[T, V any] struct {
	store   *Store[T]
	reducer Reducer[T, V]
	isLazy  bool
	dirty   bool
	value   V
	count   int
}

// NewGroupAll builds a zero-dimension group over store. WithGroupKey is ignored.
func NewGroupAll[T, V any](store *Store[T], reducer Reducer[T, V], opts ...GroupOption) *GroupAll[T, V] {
	var o groupOptions
	for _, opt := range opts {
		opt(&o)
	}
	g := &GroupAll[T, V]{store: store, reducer: reducer, isLazy: o.lazy}
	g.recompute()
	store.register(g)
	return g
}

func (g *GroupAll[T, V]) dimension() int { return noDimension }
func (g *GroupAll[T, V]) lazy() bool     { return g.isLazy }
func (g *GroupAll[T, V]) invalidate()    { g.dirty = true }

func (g *GroupAll[T, V]) fold(added, removed *roaring.Bitmap) {
	added.Iterate(func(id uint32) bool {
		g.value = g.reducer.Add(g.value, g.store.records[id])
		g.count++
		return true
	})
	removed.Iterate(func(id uint32) bool {
		g.count--
		if g.count == 0 {
			g.value = g.reducer.Init()
		} else {
			g.value = g.reducer.Remove(g.value, g.store.records[id])
		}
		return true
	})
}

func (g *GroupAll[T, V]) recompute() {
	g.value = g.reducer.Init()
	g.count = 0
	g.store.acceptedExcept(noDimension, noDimension).Iterate(func(id uint32) bool {
		g.value = g.reducer.Add(g.value, g.store.records[id])
		g.count++
		return true
	})
	g.dirty = false
}

// Value returns the aggregate over the globally visible records.
func (g *GroupAll[T, V]) Value() V {
	if g.dirty {
		g.recompute()
	}
	return g.value
}

// State reports whether the next read needs a recompute.
func (g *GroupAll[T, V]) State() State {
	if g.dirty {
		return Dirty
	}
	return Clean
}
