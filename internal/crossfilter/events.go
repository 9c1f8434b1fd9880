package crossfilter

// ChangeEvent describes one applied filter change. It is delivered to
// subscribers after every group has been updated or invalidated, so reading
// any group from a handler observes the new filter set.
type ChangeEvent struct {
	Dimension string
	// Filter is the new filter, nil when the dimension was cleared.
	Filter Filter
	// Added and Removed count records entering and leaving the dimension's
	// accepted set.
	Added   int
	Removed int
	// Selected is the number of globally visible records after the change.
	Selected int
	Total    int
}

// AllSelected reports whether no filter currently excludes any record.
func (e ChangeEvent) AllSelected() bool { return e.Selected == e.Total }
