// Package crossfilter implements a faceted filtering and aggregation engine
// over an immutable slice of records.
//
// A Store holds the records. Dimensions extract a Key from each record and
// carry one filter each; the conjunction of all dimension filters is the
// store's filter set. Groups aggregate a dimension's records by key over every
// filter except the group's own dimension filter, which is what lets a chart
// keep showing its full distribution while every other chart narrows.
//
// The engine is synchronous and not safe for concurrent use. Callers that share
// a Store between goroutines must serialise access.
package crossfilter

import (
	"fmt"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring"
)

// noDimension is the dimension index of a GroupAll.
const noDimension = -1

// Store owns the records and the filter set shared by its dimensions.
type Store[T any] struct {
	records  []T
	universe *roaring.Bitmap

	dims      []*dimState
	byName    map[string]int
	observers []observer
	listeners []subscription
	nextSub   int
}

type subscription struct {
	id int
	fn func(ChangeEvent)
}

type dimState struct {
	name     string
	filter   Filter
	accepted *roaring.Bitmap
}

// observer is anything that aggregates over the filter set: Groups and GroupAlls.
type observer interface {
	dimension() int
	lazy() bool
	invalidate()
	fold(added, removed *roaring.Bitmap)
	recompute()
}

// Load validates records and builds a Store over a private copy of them.
// validate may be nil. The first failing record aborts the load.
func Load[T any](records []T, validate func(T) error) (*Store[T], error) {
	if uint64(len(records)) > math.MaxUint32 {
		return nil, &MalformedDataError{Index: math.MaxUint32, Err: fmt.Errorf("too many records: %d", len(records))}
	}
	if validate != nil {
		for i, r := range records {
			if err := validate(r); err != nil {
				return nil, &MalformedDataError{Index: i, Err: err}
			}
		}
	}
	universe := roaring.New()
	universe.AddRange(0, uint64(len(records)))
	return &Store[T]{
		records:  slices.Clone(records),
		universe: universe,
		byName:   make(map[string]int),
	}, nil
}

// Size returns the total number of records.
func (s *Store[T]) Size() int { return len(s.records) }

// FilteredSize returns the number of records that satisfy every filter.
func (s *Store[T]) FilteredSize() int {
	return int(s.acceptedExcept(noDimension, noDimension).GetCardinality())
}

// Filtered returns the records that satisfy every filter, in load order.
func (s *Store[T]) Filtered() []T {
	bm := s.acceptedExcept(noDimension, noDimension)
	out := make([]T, 0, bm.GetCardinality())
	bm.Iterate(func(id uint32) bool {
		out = append(out, s.records[id])
		return true
	})
	return out
}

// Record returns the record with the given load-order id.
func (s *Store[T]) Record(id int) T { return s.records[id] }

// Dimension creates a named dimension over keyFn. Every record must map to
// exactly one key; keyFn is called once per record here and never again.
func (s *Store[T]) Dimension(name string, keyFn func(T) Key) (*Dimension[T], error) {
	if _, ok := s.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDimension, name)
	}
	keys := make([]Key, len(s.records))
	for i, r := range s.records {
		keys[i] = keyFn(r)
	}
	ids := make([]uint32, len(s.records))
	for i := range ids {
		ids[i] = uint32(i)
	}
	slices.SortStableFunc(ids, func(a, b uint32) int { return keys[a].Compare(keys[b]) })
	sorted := make([]Key, len(ids))
	for i, id := range ids {
		sorted[i] = keys[id]
	}

	pos := len(s.dims)
	s.dims = append(s.dims, &dimState{name: name, accepted: s.universe.Clone()})
	s.byName[name] = pos
	return &Dimension[T]{
		store:  s,
		pos:    pos,
		name:   name,
		keyOf:  keys,
		sorted: index{ids: ids, keys: sorted},
	}, nil
}

// FilterAll clears the filter of every dimension.
func (s *Store[T]) FilterAll() {
	for pos := range s.dims {
		s.applyFilter(pos, nil, nil)
	}
}

// Subscribe registers fn to run after every filter change. It returns a
// function that removes the subscription.
func (s *Store[T]) Subscribe(fn func(ChangeEvent)) (unsubscribe func()) {
	id := s.nextSub
	s.nextSub++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	return func() {
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
	}
}

func (s *Store[T]) register(o observer) { s.observers = append(s.observers, o) }

// acceptedExcept intersects the accepted sets of every dimension except skipA
// and skipB.
func (s *Store[T]) acceptedExcept(skipA, skipB int) *roaring.Bitmap {
	var sets []*roaring.Bitmap
	for pos, d := range s.dims {
		if pos == skipA || pos == skipB {
			continue
		}
		sets = append(sets, d.accepted)
	}
	switch len(sets) {
	case 0:
		return s.universe.Clone()
	case 1:
		return sets[0].Clone()
	default:
		return roaring.FastAnd(sets...)
	}
}

// unfilteredExcept reports whether every dimension other than skip accepts
// every record.
func (s *Store[T]) unfilteredExcept(skip int) bool {
	n := s.universe.GetCardinality()
	for pos, d := range s.dims {
		if pos != skip && d.accepted.GetCardinality() != n {
			return false
		}
	}
	return true
}

// applyFilter swaps dimension pos's accepted set for next (nil = every record)
// and folds the difference into every observer not attached to pos. An
// observer that is left with no active filter recomputes instead, so clearing
// every filter restores exactly the values computed at load.
func (s *Store[T]) applyFilter(pos int, f Filter, next *roaring.Bitmap) {
	if next == nil {
		next = s.universe.Clone()
	}
	d := s.dims[pos]
	prev := d.accepted
	added := roaring.AndNot(next, prev)
	removed := roaring.AndNot(prev, next)
	d.filter = f
	d.accepted = next

	if !added.IsEmpty() || !removed.IsEmpty() {
		masks := make(map[int]*roaring.Bitmap)
		unfiltered := make(map[int]bool)
		for _, o := range s.observers {
			own := o.dimension()
			if own == pos {
				continue
			}
			if o.lazy() {
				o.invalidate()
				continue
			}
			open, ok := unfiltered[own]
			if !ok {
				open = s.unfilteredExcept(own)
				unfiltered[own] = open
			}
			if open {
				o.recompute()
				continue
			}
			mask, ok := masks[own]
			if !ok {
				mask = s.acceptedExcept(own, pos)
				masks[own] = mask
			}
			o.fold(roaring.And(added, mask), roaring.And(removed, mask))
		}
	}

	ev := ChangeEvent{
		Dimension: d.name,
		Filter:    f,
		Added:     int(added.GetCardinality()),
		Removed:   int(removed.GetCardinality()),
		Selected:  s.FilteredSize(),
		Total:     len(s.records),
	}
	for _, sub := range s.listeners {
		sub.fn(ev)
	}
}
