package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetboard/internal/cache"
	"budgetboard/internal/crossfilter"
	"budgetboard/internal/dashboard"
	"budgetboard/internal/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	TTL        time.Duration
	Max        int
	LazyGroups bool
}

// FilterEventSink receives every applied filter change. Enqueue must not block.
type FilterEventSink interface {
	Enqueue(sessionID string, ev crossfilter.ChangeEvent)
}

// SessionService creates and looks up dashboard sessions. Sessions idle for
// longer than the TTL, or pushed out by the size limit, are dropped.
type SessionService struct {
	datasets *DatasetService
	sessions *cache.LRUCache[*dashboard.Session]
	opts     []dashboard.SessionOption
}

func NewSessionService(datasets *DatasetService, cfg SessionConfig, sink FilterEventSink) *SessionService {
	s := &SessionService{
		datasets: datasets,
		sessions: cache.NewLRUCache[*dashboard.Session](cfg.Max, cfg.TTL, cache.WithSlidingExpiration()),
	}
	s.sessions.OnEvict(func(id string, _ *dashboard.Session) {
		slog.Debug("Session expired", "session_id", id)
		metrics.SetActiveSessions(s.sessions.Size())
	})

	if cfg.LazyGroups {
		s.opts = append(s.opts, dashboard.WithLazyGroups())
	}
	s.opts = append(s.opts, dashboard.WithChangeHook(func(id string, ev crossfilter.ChangeEvent) {
		result := "applied"
		if ev.Filter == nil {
			result = "cleared"
		}
		slog.Debug("Filter changed",
			"session_id", id,
			"dimension", ev.Dimension,
			"result", result,
			"selected", ev.Selected)
		if sink != nil {
			sink.Enqueue(id, ev)
		}
	}))
	return s
}

// Create opens a session over the current dataset.
func (s *SessionService) Create(ctx context.Context) (*dashboard.Session, error) {
	ds, err := s.datasets.Current()
	if err != nil {
		return nil, err
	}
	sess, err := dashboard.NewSession(ds, s.opts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.sessions.Set(sess.ID, sess)
	metrics.SetActiveSessions(s.sessions.Size())

	slog.InfoContext(ctx, "Session created",
		"session_id", sess.ID,
		"records", ds.Len())
	return sess, nil
}

// Get returns a live session and extends its lifetime.
func (s *SessionService) Get(id string) (*dashboard.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete closes a session.
func (s *SessionService) Delete(id string) error {
	if _, ok := s.sessions.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.sessions.Delete(id)
	metrics.SetActiveSessions(s.sessions.Size())
	return nil
}

// Count returns the number of live sessions.
func (s *SessionService) Count() int { return s.sessions.Size() }

// Cleaner exposes the session store to a cache.Manager.
func (s *SessionService) Cleaner() cache.Cleaner { return s.sessions }
