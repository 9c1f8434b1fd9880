package crossfilter

import (
	"errors"

	"github.com/RoaringBitmap/roaring"
)

// Dimension is a keyed view over a Store with one attached filter.
type Dimension[T any] struct {
	store  *Store[T]
	pos    int
	name   string
	keyOf  []Key
	sorted index
}

// Name returns the name the dimension was created with.
func (d *Dimension[T]) Name() string { return d.name }

// KeyOf returns the key the dimension extracted for record id.
func (d *Dimension[T]) KeyOf(id int) Key { return d.keyOf[id] }

// CurrentFilter returns the active filter, nil when the dimension is unfiltered.
func (d *Dimension[T]) CurrentFilter() Filter { return d.store.dims[d.pos].filter }

// Filter replaces the dimension's filter. A nil filter clears it. On error the
// filter set is left exactly as it was.
func (d *Dimension[T]) Filter(f Filter) error {
	if f == nil {
		d.store.applyFilter(d.pos, nil, nil)
		return nil
	}
	next, err := f.accept(&d.sorted)
	if err != nil {
		var ife *InvalidFilterError
		if errors.As(err, &ife) && ife.Dimension == "" {
			ife.Dimension = d.name
		}
		return err
	}
	d.store.applyFilter(d.pos, f, next)
	return nil
}

// FilterAll clears the dimension's filter.
func (d *Dimension[T]) FilterAll() {
	d.store.applyFilter(d.pos, nil, nil)
}

// Keys returns the distinct keys of the dimension in ascending order.
func (d *Dimension[T]) Keys() []Key {
	var out []Key
	for i, k := range d.sorted.keys {
		if i == 0 || !k.Equal(d.sorted.keys[i-1]) {
			out = append(out, k)
		}
	}
	return out
}

// Top returns up to n records with the largest keys among the records that
// satisfy every filter except this dimension's own. Records sharing a key are
// returned in load order.
func (d *Dimension[T]) Top(n int) []T {
	return d.collect(d.pickDesc(n, d.store.acceptedExcept(d.pos, noDimension)))
}

// Bottom is Top with the smallest keys first.
func (d *Dimension[T]) Bottom(n int) []T {
	return d.collect(d.pickAsc(n, d.store.acceptedExcept(d.pos, noDimension)))
}

// TopVisible is Top restricted to the globally visible records, this
// dimension's own filter included. Data tables read rows through it.
func (d *Dimension[T]) TopVisible(n int) []T {
	return d.collect(d.pickDesc(n, d.store.acceptedExcept(noDimension, noDimension)))
}

// BottomVisible is Bottom restricted to the globally visible records.
func (d *Dimension[T]) BottomVisible(n int) []T {
	return d.collect(d.pickAsc(n, d.store.acceptedExcept(noDimension, noDimension)))
}

// GroupSum groups the dimension by key and sums value over each group.
func (d *Dimension[T]) GroupSum(value func(T) float64, opts ...GroupOption) *Group[T, float64] {
	return NewGroup(d, Sum(value), opts...)
}

// GroupCount groups the dimension by key and counts records per group.
func (d *Dimension[T]) GroupCount(opts ...GroupOption) *Group[T, int] {
	return NewGroup(d, Count[T](), opts...)
}

func (d *Dimension[T]) collect(ids []uint32) []T {
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = d.store.records[id]
	}
	return out
}

func (d *Dimension[T]) pickAsc(n int, mask *roaring.Bitmap) []uint32 {
	if n <= 0 {
		return nil
	}
	out := make([]uint32, 0, min(n, len(d.sorted.ids)))
	for _, id := range d.sorted.ids {
		if len(out) == n {
			break
		}
		if mask.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// pickDesc walks runs of equal keys from the top of the index. Inside a run
// ids are ascending, so the run is read forwards.
func (d *Dimension[T]) pickDesc(n int, mask *roaring.Bitmap) []uint32 {
	if n <= 0 {
		return nil
	}
	ix := &d.sorted
	out := make([]uint32, 0, min(n, len(ix.ids)))
	end := len(ix.ids)
	for end > 0 && len(out) < n {
		start := end - 1
		for start > 0 && ix.keys[start-1].Equal(ix.keys[end-1]) {
			start--
		}
		for _, id := range ix.ids[start:end] {
			if len(out) == n {
				break
			}
			if mask.Contains(id) {
				out = append(out, id)
			}
		}
		end = start
	}
	return out
}
