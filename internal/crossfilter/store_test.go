package crossfilter

import (
	"errors"
	"testing"
)

type deptRecord struct {
	dept   string
	budget float64
}

func TestLoadRejectsMalformedRecord(t *testing.T) {
	errNegative := errors.New("negative budget")
	records := []deptRecord{{"A", 1}, {"B", -1}, {"C", -2}}
	_, err := Load(records, func(r deptRecord) error {
		if r.budget < 0 {
			return errNegative
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var mde *MalformedDataError
	if !errors.As(err, &mde) || mde.Index != 1 {
		t.Fatalf("expected MalformedDataError at index 1, got %v", err)
	}
	if !errors.Is(err, ErrMalformedData) || !errors.Is(err, errNegative) {
		t.Fatalf("expected error to wrap both sentinels, got %v", err)
	}
}

func TestLoadCopiesRecords(t *testing.T) {
	records := []deptRecord{{"A", 1}}
	s, err := Load(records, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	records[0].budget = 99
	if got := s.Record(0).budget; got != 1 {
		t.Fatalf("store observed caller mutation: budget=%v", got)
	}
}

func TestDuplicateDimension(t *testing.T) {
	s, _ := Load([]deptRecord{{"A", 1}}, nil)
	if _, err := s.Dimension("dept", byDept); err != nil {
		t.Fatalf("first dimension: %v", err)
	}
	if _, err := s.Dimension("dept", byDept); !errors.Is(err, ErrDuplicateDimension) {
		t.Fatalf("expected ErrDuplicateDimension, got %v", err)
	}
}

func byDept(r deptRecord) Key { return String(r.dept) }

func budgetOf(r deptRecord) float64 { return r.budget }

// Three records, two departments: filtering one dimension narrows every other
// dimension's group but not its own.
func TestDepartmentScenario(t *testing.T) {
	s, err := Load([]deptRecord{{"A", 100}, {"A", 50}, {"B", 30}}, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dept, _ := s.Dimension("dept", byDept)
	amount, _ := s.Dimension("amount", func(r deptRecord) Key { return Number(r.budget) })
	byDeptSum := dept.GroupSum(budgetOf)
	byAmountSum := amount.GroupSum(budgetOf)

	got := byDeptSum.All()
	want := []KeyValue[float64]{{String("A"), 150}, {String("B"), 30}}
	assertKeyValues(t, got, want)

	if err := dept.Filter(In(String("A"))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	// own group still shows the unfiltered distribution
	assertKeyValues(t, byDeptSum.All(), want)

	var sum float64
	for _, kv := range byAmountSum.All() {
		sum += kv.Value
	}
	if sum != 150 {
		t.Fatalf("expected other dimension to sum to 150, got %v", sum)
	}
	if v := byAmountSum.Value(Number(30)); v != 0 {
		t.Fatalf("expected B's record to be filtered out, got %v", v)
	}
}

func TestTotalAggregate(t *testing.T) {
	s, _ := Load([]deptRecord{{"A", 100}, {"A", 50}, {"B", 30}, {"C", 7.5}}, nil)
	dept, _ := s.Dimension("dept", byDept)
	total := NewGroupAll(s, Sum(budgetOf))
	count := NewGroupAll(s, Count[deptRecord]())

	if v := total.Value(); v != 187.5 {
		t.Fatalf("unfiltered total = %v, want 187.5", v)
	}
	if err := dept.Filter(In(String("B"), String("C"))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if v := total.Value(); v != 37.5 {
		t.Fatalf("filtered total = %v, want 37.5", v)
	}
	if n := count.Value(); n != 2 || s.FilteredSize() != 2 || s.Size() != 4 {
		t.Fatalf("count=%d filtered=%d size=%d", n, s.FilteredSize(), s.Size())
	}
	if err := dept.Filter(Exact(String("Z"))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if v := total.Value(); v != 0 || s.FilteredSize() != 0 {
		t.Fatalf("expected empty selection, total=%v filtered=%d", v, s.FilteredSize())
	}
	s.FilterAll()
	if v := total.Value(); v != 187.5 {
		t.Fatalf("total after FilterAll = %v, want 187.5", v)
	}
}

func TestInvalidFilterLeavesStateUnchanged(t *testing.T) {
	s, _ := Load([]deptRecord{{"A", 1}, {"B", 2}, {"C", 3}}, nil)
	dept, _ := s.Dimension("dept", byDept)
	amount, _ := s.Dimension("amount", func(r deptRecord) Key { return Number(r.budget) })
	g := dept.GroupSum(budgetOf)

	if err := amount.Filter(Range(Number(2), Number(4))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	before := g.All()
	prev := amount.CurrentFilter().String()

	cases := []struct {
		name string
		f    Filter
	}{
		{"min greater than max", Range(Number(5), Number(1))},
		{"unset bound", Range(Key{}, Number(1))},
		{"no keys", In()},
		{"nil predicate", Func("none", nil)},
	}
	for _, tc := range cases {
		err := amount.Filter(tc.f)
		var ife *InvalidFilterError
		if !errors.As(err, &ife) {
			t.Fatalf("%s: expected InvalidFilterError, got %v", tc.name, err)
		}
		if ife.Dimension != "amount" || !errors.Is(err, ErrInvalidFilter) {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if amount.CurrentFilter().String() != prev {
			t.Fatalf("%s: filter replaced on error", tc.name)
		}
		assertKeyValues(t, g.All(), before)
		if s.FilteredSize() != 2 {
			t.Fatalf("%s: filtered size changed to %d", tc.name, s.FilteredSize())
		}
	}
}

func TestRangeIsHalfOpen(t *testing.T) {
	s, _ := Load([]deptRecord{{"A", 1}, {"B", 2}, {"C", 3}, {"D", 4}}, nil)
	amount, _ := s.Dimension("amount", func(r deptRecord) Key { return Number(r.budget) })
	if err := amount.Filter(Range(Number(2), Number(4))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	got := s.Filtered()
	if len(got) != 2 || got[0].dept != "B" || got[1].dept != "C" {
		t.Fatalf("unexpected selection %+v", got)
	}
	if err := amount.Filter(Range(Number(3), Number(3))); err != nil {
		t.Fatalf("empty range should be valid: %v", err)
	}
	if s.FilteredSize() != 0 {
		t.Fatalf("expected empty range to select nothing, got %d", s.FilteredSize())
	}
}

func TestTopBottomTieBreak(t *testing.T) {
	records := []deptRecord{{"A", 2}, {"B", 1}, {"C", 2}, {"D", 3}, {"E", 1}}
	s, _ := Load(records, nil)
	amount, _ := s.Dimension("amount", func(r deptRecord) Key { return Number(r.budget) })
	dept, _ := s.Dimension("dept", byDept)

	cases := []struct {
		name string
		got  []deptRecord
		want string
	}{
		{"top", amount.Top(3), "DAC"},
		{"bottom", amount.Bottom(3), "BEA"},
		{"top all", amount.Top(10), "DACBE"},
		{"zero", amount.Top(0), ""},
	}
	for _, tc := range cases {
		if got := depts(tc.got); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}

	// own filter is ignored, other filters apply
	if err := amount.Filter(Exact(Number(1))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got := depts(amount.Top(2)); got != "DA" {
		t.Fatalf("top ignoring own filter: got %q", got)
	}
	if got := depts(amount.TopVisible(5)); got != "BE" {
		t.Fatalf("top visible: got %q", got)
	}
	if err := dept.Filter(In(String("A"), String("B"))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if got := depts(amount.Top(5)); got != "AB" {
		t.Fatalf("top with other filter: got %q", got)
	}
	if got := depts(amount.BottomVisible(5)); got != "B" {
		t.Fatalf("bottom visible: got %q", got)
	}
}

func depts(rs []deptRecord) string {
	var out string
	for _, r := range rs {
		out += r.dept
	}
	return out
}

func TestSubscribe(t *testing.T) {
	s, _ := Load([]deptRecord{{"A", 1}, {"B", 2}, {"A", 3}}, nil)
	dept, _ := s.Dimension("dept", byDept)
	total := NewGroupAll(s, Sum(budgetOf))

	var events []ChangeEvent
	var seenTotal float64
	unsubscribe := s.Subscribe(func(ev ChangeEvent) {
		events = append(events, ev)
		seenTotal = total.Value()
	})

	if err := dept.Filter(Exact(String("A"))); err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Dimension != "dept" || ev.Removed != 1 || ev.Added != 0 || ev.Selected != 2 || ev.Total != 3 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if seenTotal != 4 {
		t.Fatalf("listener read stale total %v", seenTotal)
	}

	_ = dept.Filter(Range(Number(1), Number(0)))
	if len(events) != 1 {
		t.Fatal("rejected filter must not notify")
	}

	dept.FilterAll()
	if len(events) != 2 || !events[1].AllSelected() || events[1].Filter != nil {
		t.Fatalf("unexpected events %+v", events)
	}

	unsubscribe()
	s.FilterAll()
	if len(events) != 2 {
		t.Fatalf("expected no events after unsubscribe, got %d", len(events))
	}
}

func assertKeyValues(t *testing.T, got, want []KeyValue[float64]) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d groups %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if !got[i].Key.Equal(want[i].Key) || got[i].Value != want[i].Value {
			t.Fatalf("group %d: got %s=%v, want %s=%v", i, got[i].Key, got[i].Value, want[i].Key, want[i].Value)
		}
	}
}
