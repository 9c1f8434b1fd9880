package crossfilter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// Filter selects the records a Dimension accepts. A nil Filter accepts every
// record. Filters are evaluated against the dimension's sorted index, so
// applying the same filter twice yields the same accepted set.
type Filter interface {
	accept(ix *index) (*roaring.Bitmap, error)
	String() string
}

// All returns the "no constraint" filter.
func All() Filter { return nil }

// Exact accepts records whose key equals key.
func Exact(key Key) Filter { return exactFilter{key: key} }

// In accepts records whose key equals any of keys. Used by multi-select menus.
func In(keys ...Key) Filter { return inFilter{keys: keys} }

// Range accepts records with lo <= key < hi.
func Range(lo, hi Key) Filter { return rangeFilter{lo: lo, hi: hi} }

// Func accepts records whose key satisfies pred.
func Func(name string, pred func(Key) bool) Filter { return funcFilter{name: name, pred: pred} }

type exactFilter struct{ key Key }

func (f exactFilter) accept(ix *index) (*roaring.Bitmap, error) {
	if f.key.IsZero() {
		return nil, &InvalidFilterError{Reason: "empty key"}
	}
	bm := roaring.New()
	ix.addEqual(bm, f.key)
	return bm, nil
}

func (f exactFilter) String() string { return "exact(" + f.key.String() + ")" }

type inFilter struct{ keys []Key }

func (f inFilter) accept(ix *index) (*roaring.Bitmap, error) {
	if len(f.keys) == 0 {
		return nil, &InvalidFilterError{Reason: "no keys selected"}
	}
	bm := roaring.New()
	for _, k := range f.keys {
		if k.IsZero() {
			return nil, &InvalidFilterError{Reason: "empty key"}
		}
		ix.addEqual(bm, k)
	}
	return bm, nil
}

func (f inFilter) String() string {
	parts := make([]string, len(f.keys))
	for i, k := range f.keys {
		parts[i] = "[" + k.String() + "]"
	}
	return "in(" + strings.Join(parts, " ") + ")"
}

type rangeFilter struct{ lo, hi Key }

func (f rangeFilter) accept(ix *index) (*roaring.Bitmap, error) {
	if f.lo.IsZero() || f.hi.IsZero() {
		return nil, &InvalidFilterError{Reason: "range bounds must be set"}
	}
	if f.lo.Compare(f.hi) > 0 {
		return nil, &InvalidFilterError{Reason: fmt.Sprintf("range min %q is greater than max %q", f.lo, f.hi)}
	}
	bm := roaring.New()
	from := ix.lowerBound(f.lo)
	to := ix.lowerBound(f.hi)
	bm.AddMany(ix.ids[from:to])
	return bm, nil
}

func (f rangeFilter) String() string { return "range(" + f.lo.String() + " .. " + f.hi.String() + ")" }

type funcFilter struct {
	name string
	pred func(Key) bool
}

func (f funcFilter) accept(ix *index) (*roaring.Bitmap, error) {
	if f.pred == nil {
		return nil, &InvalidFilterError{Reason: "nil predicate"}
	}
	bm := roaring.New()
	for i, k := range ix.keys {
		if f.pred(k) {
			bm.Add(ix.ids[i])
		}
	}
	return bm, nil
}

func (f funcFilter) String() string { return "func(" + f.name + ")" }

// index is a dimension's records sorted by (key, record id).
type index struct {
	ids  []uint32
	keys []Key
}

func (ix *index) lowerBound(k Key) int {
	return sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i].Compare(k) >= 0 })
}

func (ix *index) upperBound(k Key) int {
	return sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i].Compare(k) > 0 })
}

func (ix *index) addEqual(bm *roaring.Bitmap, k Key) {
	from, to := ix.lowerBound(k), ix.upperBound(k)
	if from < to {
		bm.AddMany(ix.ids[from:to])
	}
}
