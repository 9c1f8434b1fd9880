package http

import (
	"errors"
	"net/http"
	"time"

	"budgetboard/internal/dashboard"
	"budgetboard/internal/log"
	"budgetboard/internal/metrics"
)

// sessionResponse is the body of every call that changes or renders a whole
// session.
type sessionResponse struct {
	ID        string                         `json:"id"`
	CreatedAt time.Time                      `json:"created_at"`
	Filters   map[string]dashboard.Selection `json:"filters"`
	Snapshot  dashboard.Snapshot             `json:"snapshot"`
}

func (s *Server) sessionBody(sess *dashboard.Session, tableSize int) sessionResponse {
	filters, snap := sess.View(tableSize)
	return sessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Filters:   filters,
		Snapshot:  snap,
	}
}

// session looks up the {id} path value, writing the error response itself
// when the session is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request, operation string) (*dashboard.Session, bool) {
	sess, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err, operation)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err, log.OpCreate)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/sessions/"+sess.ID).
		Body(s.sessionBody(sess, s.tableSize)).
		Write(w)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	size, err := ParseTableSize(r.URL.Query(), s.tableSize, s.maxTableSize)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sess, ok := s.session(w, r, log.OpRead)
	if !ok {
		return
	}
	NewJSONResponse().Body(s.sessionBody(sess, size)).Write(w)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleGetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r, log.OpRead)
	if !ok {
		return
	}
	filters, counter := sess.FilterState()
	NewJSONResponse().Body(map[string]any{
		"filters": filters,
		"counter": counter,
	}).Write(w)
}

// handleSetFilter replaces one dimension's filter. A rejected selection
// leaves the session unchanged.
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r, log.OpFilter)
	if !ok {
		return
	}
	dimension := r.PathValue("dimension")
	sel, err := DecodeSelection(w, r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	start := time.Now()
	err = sess.Select(dimension, sel)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveFilter(filterLabel(dimension, err), "invalid", elapsed)
		s.writeError(w, r, err, log.OpFilter)
		return
	}
	metrics.ObserveFilter(dimension, "applied", elapsed)

	body := s.sessionBody(sess, s.tableSize)
	s.events.LogFilterApplied(r.Context(), log.OpFilter, sess.ID, dimension, sel.String(),
		body.Snapshot.Counter.Selected, body.Snapshot.Counter.Total)
	NewJSONResponse().Body(body).Write(w)
}

func (s *Server) handleClearFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r, log.OpClear)
	if !ok {
		return
	}
	dimension := r.PathValue("dimension")

	start := time.Now()
	err := sess.Clear(dimension)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveFilter(filterLabel(dimension, err), "invalid", elapsed)
		s.writeError(w, r, err, log.OpClear)
		return
	}
	metrics.ObserveFilter(dimension, "cleared", elapsed)

	body := s.sessionBody(sess, s.tableSize)
	s.events.LogFilterApplied(r.Context(), log.OpClear, sess.ID, dimension, "",
		body.Snapshot.Counter.Selected, body.Snapshot.Counter.Total)
	NewJSONResponse().Body(body).Write(w)
}

// handleResetFilters clears every dimension.
func (s *Server) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r, log.OpReset)
	if !ok {
		return
	}

	start := time.Now()
	sess.Reset()
	metrics.ObserveFilter("all", "cleared", time.Since(start))

	body := s.sessionBody(sess, s.tableSize)
	s.events.LogFilterApplied(r.Context(), log.OpReset, sess.ID, "", "",
		body.Snapshot.Counter.Selected, body.Snapshot.Counter.Total)
	NewJSONResponse().Body(body).Write(w)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	size, err := ParseTableSize(r.URL.Query(), s.tableSize, s.maxTableSize)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sess, ok := s.session(w, r, log.OpRead)
	if !ok {
		return
	}
	NewJSONResponse().Body(sess.Table(size)).Write(w)
}

func (s *Server) handleSelectMenu(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r, log.OpRead)
	if !ok {
		return
	}
	menu, err := sess.SelectMenu(r.PathValue("dimension"))
	if err != nil {
		s.writeError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().Body(menu).Write(w)
}

// filterLabel keeps user-supplied dimension names out of metric labels.
func filterLabel(dimension string, err error) string {
	if errors.Is(err, dashboard.ErrUnknownDimension) {
		return "unknown"
	}
	return dimension
}
