package dashboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetboard/internal/crossfilter"
)

// Session is one user's dashboard: a Board guarded by a mutex so each
// interaction, including every group update and change hook it triggers,
// completes before the next one starts.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu    sync.Mutex
	board *Board
}

// SessionOption configures NewSession.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	groupOpts []crossfilter.GroupOption
	hooks     []func(sessionID string, ev crossfilter.ChangeEvent)
}

// WithLazyGroups makes every group of the session recompute on read.
func WithLazyGroups() SessionOption {
	return func(o *sessionOptions) {
		o.groupOpts = append(o.groupOpts, crossfilter.WithLazyRecompute())
	}
}

// WithChangeHook runs fn after every applied filter change of the session.
// fn runs with the session locked and must not call back into it.
func WithChangeHook(fn func(sessionID string, ev crossfilter.ChangeEvent)) SessionOption {
	return func(o *sessionOptions) { o.hooks = append(o.hooks, fn) }
}

// NewSession creates a session with a fresh filter set over ds.
func NewSession(ds *Dataset, opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}
	board, err := NewBoard(ds, o.groupOpts...)
	if err != nil {
		return nil, fmt.Errorf("build board: %w", err)
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		board:     board,
	}
	for _, hook := range o.hooks {
		board.Subscribe(func(ev crossfilter.ChangeEvent) { hook(s.ID, ev) })
	}
	return s, nil
}

// Select applies sel to the named dimension.
func (s *Session) Select(dimension string, sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Select(dimension, sel)
}

// Clear removes one dimension's filter.
func (s *Session) Clear(dimension string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clear(dimension)
}

// Reset clears every filter.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board.Reset()
}

// Snapshot renders the whole dashboard.
func (s *Session) Snapshot(tableSize int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Snapshot(tableSize)
}

// View returns the active selections together with the snapshot they
// produce, read under one lock.
func (s *Session) View(tableSize int) (map[string]Selection, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Selections(), s.board.Snapshot(tableSize)
}

// FilterState returns the active selections and the counter they produce,
// read under one lock.
func (s *Session) FilterState() (map[string]Selection, Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Selections(), s.board.Counter()
}

// Table renders only the data table.
func (s *Session) Table(size int) Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Table(size)
}

// SelectMenu renders one dimension's select menu.
func (s *Session) SelectMenu(dimension string) (SelectMenu, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.SelectMenu(dimension)
}

// Dataset returns the dataset the session was created over.
func (s *Session) Dataset() *Dataset { return s.board.Dataset() }
