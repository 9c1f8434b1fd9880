package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budgetboard/internal/core"
	"budgetboard/internal/dashboard"
	"budgetboard/internal/services"
	"budgetboard/internal/sheets/memory"
)

func testRecords() []core.Expenditure {
	return []core.Expenditure{
		{Department: "Health", Branch: "Public Health", Program: "Immunization", FundType: "Operating", BudgetYear: "2017", Budget: 100},
		{Department: "Health", Branch: "Hospitals", Program: "Emergency", FundType: "Capital", BudgetYear: "2018", Budget: 300},
		{Department: "Parks", Branch: "Forestry", Program: "Tree Planting", FundType: "Operating", BudgetYear: "2017", Budget: 200},
		{Department: "Parks", Branch: "Recreation", Program: "Pools", FundType: "Capital", BudgetYear: "2016", Budget: 100},
		{Department: "Justice", Branch: "Courts", Program: "Legal Aid", FundType: "Operating", BudgetYear: "2018", Budget: 300},
	}
}

// newTestServer builds a server over the test records. load=false leaves the
// dataset service empty.
func newTestServer(t *testing.T, load bool, opts Options) (*Server, *services.DatasetService) {
	t.Helper()
	datasets := services.NewDatasetService(memory.New(testRecords()), "test")
	if load {
		if _, err := datasets.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	}
	sessions := services.NewSessionService(datasets, services.SessionConfig{TTL: time.Minute, Max: 10}, nil)
	srv := NewServer(":0", datasets, sessions, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, datasets
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

type sessionBody struct {
	ID       string                     `json:"id"`
	Filters  map[string]json.RawMessage `json:"filters"`
	Snapshot struct {
		Counter dashboard.Counter     `json:"counter"`
		Total   dashboard.TotalBudget `json:"total"`
		Table   dashboard.Table       `json:"table"`
	} `json:"snapshot"`
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) sessionBody {
	t.Helper()
	var body sessionBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode session: %v (%s)", err, rr.Body.String())
	}
	return body
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v (%s)", err, rr.Body.String())
	}
	return body.Error
}

func TestHealthAndReadiness(t *testing.T) {
	srv, datasets := newTestServer(t, false, Options{})

	if rr := do(t, srv, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable || rr.Header().Get("Retry-After") == "" {
		t.Fatalf("readyz before load status=%d", rr.Code)
	}
	if got := decodeError(t, rr).Code; got != CodeNotReady {
		t.Fatalf("readyz code=%s", got)
	}

	// sessions cannot be opened before the first load
	if rr := do(t, srv, http.MethodPost, "/api/sessions", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("create before load status=%d", rr.Code)
	}

	if _, err := datasets.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	rr = do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz after load status=%d", rr.Code)
	}
	var ready struct {
		Status  string `json:"status"`
		Records int    `json:"records"`
		Source  string `json:"source"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &ready); err != nil {
		t.Fatalf("decode readyz: %v", err)
	}
	if ready.Status != "ready" || ready.Records != 5 || ready.Source != "test" {
		t.Fatalf("readyz body = %+v", ready)
	}
}

func TestDimensions(t *testing.T) {
	srv, _ := newTestServer(t, true, Options{})
	rr := do(t, srv, http.MethodGet, "/api/dimensions", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var body struct {
		Dimensions []dashboard.DimensionInfo `json:"dimensions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Dimensions) != len(core.DimensionNames) {
		t.Fatalf("dimensions = %+v", body.Dimensions)
	}
	arity := map[string]int{}
	for _, d := range body.Dimensions {
		arity[d.Name] = d.Arity
	}
	if arity[core.DimFundTypeYear] != 2 || arity[core.DimDepartment] != 1 {
		t.Fatalf("arity = %v", arity)
	}
}

func TestSessionLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, true, Options{})

	rr := do(t, srv, http.MethodPost, "/api/sessions", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeSession(t, rr)
	if created.ID == "" || rr.Header().Get("Location") != "/api/sessions/"+created.ID {
		t.Fatalf("create id=%q location=%q", created.ID, rr.Header().Get("Location"))
	}
	if created.Snapshot.Counter.Selected != 5 || created.Snapshot.Total.Value != 1000 {
		t.Fatalf("initial snapshot = %+v", created.Snapshot)
	}
	base := "/api/sessions/" + created.ID

	rr = do(t, srv, http.MethodPut, base+"/filters/department", `{"keys":["Health"]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("filter status=%d body=%s", rr.Code, rr.Body.String())
	}
	filtered := decodeSession(t, rr)
	if filtered.Snapshot.Counter.Selected != 2 || filtered.Snapshot.Total.Value != 400 {
		t.Fatalf("filtered snapshot = %+v", filtered.Snapshot)
	}
	if got := string(filtered.Filters["department"]); !strings.Contains(got, "Health") {
		t.Fatalf("filters = %v", filtered.Filters)
	}

	rr = do(t, srv, http.MethodPut, base+"/filters/fund_type_year", `{"keys":[["Capital","2018"]]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("tuple filter status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeSession(t, rr).Snapshot.Counter.Selected; got != 1 {
		t.Fatalf("selected after tuple filter = %d", got)
	}

	rr = do(t, srv, http.MethodGet, base+"/table?size=1", "")
	var table dashboard.Table
	if err := json.Unmarshal(rr.Body.Bytes(), &table); err != nil || rr.Code != http.StatusOK {
		t.Fatalf("table status=%d err=%v", rr.Code, err)
	}
	if len(table.Rows) != 1 || table.Rows[0][0] != "Health" || table.Rows[0][5] != "$300" {
		t.Fatalf("table = %+v", table)
	}

	rr = do(t, srv, http.MethodGet, base+"/selects/fund_type", "")
	var menu dashboard.SelectMenu
	if err := json.Unmarshal(rr.Body.Bytes(), &menu); err != nil || rr.Code != http.StatusOK {
		t.Fatalf("select menu status=%d err=%v", rr.Code, err)
	}
	if len(menu.Options) != 2 || menu.Options[0].Title != "Capital: $300" {
		t.Fatalf("fund type menu = %+v", menu.Options)
	}

	rr = do(t, srv, http.MethodDelete, base+"/filters/fund_type_year", "")
	if got := decodeSession(t, rr).Snapshot.Counter.Selected; rr.Code != http.StatusOK || got != 2 {
		t.Fatalf("clear status=%d selected=%d", rr.Code, got)
	}

	rr = do(t, srv, http.MethodGet, base+"/filters", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"department"`) {
		t.Fatalf("filters status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodDelete, base+"/filters", "")
	reset := decodeSession(t, rr)
	if rr.Code != http.StatusOK || reset.Snapshot.Counter.Selected != 5 || len(reset.Filters) != 0 {
		t.Fatalf("reset status=%d body=%s", rr.Code, rr.Body.String())
	}

	if rr := do(t, srv, http.MethodDelete, base, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = do(t, srv, http.MethodGet, base, "")
	if rr.Code != http.StatusNotFound || decodeError(t, rr).Code != CodeNotFound {
		t.Fatalf("get after delete status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestFilterErrors(t *testing.T) {
	srv, _ := newTestServer(t, true, Options{})
	created := decodeSession(t, do(t, srv, http.MethodPost, "/api/sessions", ""))
	base := "/api/sessions/" + created.ID

	if rr := do(t, srv, http.MethodPut, base+"/filters/department", `{"keys":["Parks"]}`); rr.Code != http.StatusOK {
		t.Fatalf("filter status=%d", rr.Code)
	}

	tests := []struct {
		name      string
		method    string
		path      string
		body      string
		status    int
		code      string
		dimension string
	}{
		{"malformed body", http.MethodPut, base + "/filters/department", `{"keys":`, http.StatusBadRequest, CodeBadRequest, ""},
		{"unknown field", http.MethodPut, base + "/filters/department", `{"key":["Health"]}`, http.StatusBadRequest, CodeBadRequest, ""},
		{"range with one bound", http.MethodPut, base + "/filters/budget_year", `{"range":["2018"]}`, http.StatusUnprocessableEntity, CodeInvalidFilter, "budget_year"},
		{"keys and range", http.MethodPut, base + "/filters/budget_year", `{"keys":["2018"],"range":["2016","2018"]}`, http.StatusUnprocessableEntity, CodeInvalidFilter, "budget_year"},
		{"tuple arity", http.MethodPut, base + "/filters/branch_program", `{"keys":["Courts"]}`, http.StatusUnprocessableEntity, CodeInvalidFilter, "branch_program"},
		{"unknown dimension", http.MethodPut, base + "/filters/nope", `{"keys":["x"]}`, http.StatusNotFound, CodeUnknownDimension, ""},
		{"clear unknown dimension", http.MethodDelete, base + "/filters/nope", "", http.StatusNotFound, CodeUnknownDimension, ""},
		{"unknown session", http.MethodPut, "/api/sessions/missing/filters/department", `{"keys":["Health"]}`, http.StatusNotFound, CodeNotFound, ""},
		{"select menu unknown dimension", http.MethodGet, base + "/selects/nope", "", http.StatusNotFound, CodeUnknownDimension, ""},
		{"table size not a number", http.MethodGet, base + "/table?size=abc", "", http.StatusBadRequest, CodeBadRequest, ""},
		{"table size too large", http.MethodGet, base + "/table?size=5000", "", http.StatusBadRequest, CodeBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			detail := decodeError(t, rr)
			if detail.Code != tt.code || detail.Dimension != tt.dimension {
				t.Fatalf("error = %+v", detail)
			}
		})
	}

	// rejected filters left the Parks selection in place
	rr := do(t, srv, http.MethodGet, base, "")
	if got := decodeSession(t, rr).Snapshot.Counter.Selected; got != 2 {
		t.Fatalf("selected after rejected filters = %d, want 2", got)
	}
}

func TestWrongContentType(t *testing.T) {
	srv, _ := newTestServer(t, true, Options{})
	created := decodeSession(t, do(t, srv, http.MethodPost, "/api/sessions", ""))

	req := httptest.NewRequest(http.MethodPut, "/api/sessions/"+created.ID+"/filters/department", strings.NewReader("department=Health"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, _ := newTestServer(t, true, Options{RequestsPerMinute: 1})

	first := do(t, srv, http.MethodPost, "/api/sessions", "")
	if first.Code != http.StatusCreated {
		t.Fatalf("first create status=%d", first.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/sessions", "")
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second create status=%d retry=%q", rr.Code, rr.Header().Get("Retry-After"))
	}
	if got := decodeError(t, rr).Code; got != CodeRateLimited {
		t.Fatalf("code=%s", got)
	}

	// reads are not limited
	id := decodeSession(t, first).ID
	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/sessions/"+id, ""); rr.Code != http.StatusOK {
			t.Fatalf("read %d status=%d", i, rr.Code)
		}
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t, true, Options{AllowedOrigins: []string{"https://budget.example.org"}})

	req := httptest.NewRequest(http.MethodGet, "/api/dimensions", nil)
	req.Header.Set("X-Request-ID", "client-req-1")
	req.Header.Set("Origin", "https://budget.example.org")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") != "client-req-1" {
		t.Errorf("X-Request-ID = %q", rr.Header().Get("X-Request-ID"))
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", rr.Header().Get("X-Content-Type-Options"))
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://budget.example.org" {
		t.Errorf("Access-Control-Allow-Origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	rr = do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "budgetboard_http_requests_total") {
		t.Fatalf("metrics status=%d", rr.Code)
	}
}
