package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/king0079z/Tender-Tracker-60/internal/connection"
	"github.com/king0079z/Tender-Tracker-60/internal/database"
	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
	"github.com/king0079z/Tender-Tracker-60/internal/schema"
)

// fakeBackend returns canned reports and execution results.
type fakeBackend struct {
	report  protocol.HealthReport
	panics  bool
	result  *protocol.QueryResult
	err     error
	lastReq protocol.QueryRequest
	calls   atomic.Int32
}

func (b *fakeBackend) HealthReport(ctx context.Context) protocol.HealthReport {
	if b.panics {
		panic("report exploded")
	}
	return b.report
}

func (b *fakeBackend) Execute(ctx context.Context, text string, params []any) (*protocol.QueryResult, error) {
	b.calls.Add(1)
	b.lastReq = protocol.QueryRequest{Text: text, Params: params}
	return b.result, b.err
}

func (b *fakeBackend) Stats() connection.ManagerStats {
	return connection.ManagerStats{State: connection.StateConnected, Queries: 42}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(cfg Config, b Backend) http.Handler {
	return New(cfg, b, testLogger()).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		report     protocol.HealthReport
		wantStatus int
	}{
		{
			name:       "connected",
			report:     protocol.HealthReport{Status: protocol.StatusHealthy, Database: protocol.DatabaseConnected, Bootstrapped: true},
			wantStatus: http.StatusOK,
		},
		{
			name:       "disconnected",
			report:     protocol.HealthReport{Status: protocol.StatusError, Database: protocol.DatabaseDisconnected},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "probe error",
			report:     protocol.HealthReport{Status: protocol.StatusError, Database: protocol.DatabaseError, DatabaseError: "connection reset by peer"},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			// Status code follows the database state only.
			name:       "bootstrap failed",
			report:     protocol.HealthReport{Status: protocol.StatusError, Database: protocol.DatabaseConnected, DatabaseError: "bootstrap database: permission denied"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(DefaultConfig(), &fakeBackend{report: tt.report})

			for _, path := range []string{protocol.HealthPath, protocol.LegacyHealthPath} {
				rec := do(t, h, http.MethodGet, path, "")
				if rec.Code != tt.wantStatus {
					t.Errorf("%s status = %d, want %d", path, rec.Code, tt.wantStatus)
				}
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				got := decode[protocol.HealthReport](t, rec)
				if got.Status != tt.report.Status || got.Database != tt.report.Database || got.DatabaseError != tt.report.DatabaseError {
					t.Errorf("%s report = %+v, want %+v", path, got, tt.report)
				}
			}
		})
	}
}

func TestHealth_Panic(t *testing.T) {
	h := newTestServer(DefaultConfig(), &fakeBackend{panics: true})

	rec := do(t, h, http.MethodGet, protocol.HealthPath, "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	got := decode[protocol.HealthFailure](t, rec)
	if got.Status != protocol.StatusError || got.Error != "report exploded" {
		t.Errorf("failure = %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestQuery_Success(t *testing.T) {
	b := &fakeBackend{result: &protocol.QueryResult{
		Rows:     []map[string]any{{"company_name": "Deloitte"}},
		RowCount: 1,
		Fields:   []protocol.Field{{Name: "company_name", DataType: 25}},
	}}
	h := newTestServer(DefaultConfig(), b)

	for _, path := range []string{protocol.QueryPath, protocol.LegacyQueryPath} {
		rec := do(t, h, http.MethodPost, path, `{"text":"SELECT company_name FROM timelines WHERE company_id = $1","params":["7"]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200: %s", path, rec.Code, rec.Body.String())
		}
		got := decode[protocol.QueryResult](t, rec)
		if got.RowCount != 1 || got.Rows[0]["company_name"] != "Deloitte" {
			t.Errorf("%s result = %+v", path, got)
		}
	}

	if b.lastReq.Text != "SELECT company_name FROM timelines WHERE company_id = $1" {
		t.Errorf("Text = %q", b.lastReq.Text)
	}
	if len(b.lastReq.Params) != 1 || b.lastReq.Params[0] != "7" {
		t.Errorf("Params = %v", b.lastReq.Params)
	}
}

func TestQuery_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"invalid json", `{"text":`, "invalid request body"},
		{"missing text", `{"params":[1]}`, "Query text is required"},
		{"blank text", `{"text":"   "}`, "Query text is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{}
			h := newTestServer(DefaultConfig(), b)

			rec := do(t, h, http.MethodPost, protocol.QueryPath, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			got := decode[protocol.ErrorResponse](t, rec)
			if !got.Error || got.Message != tt.wantMsg {
				t.Errorf("response = %+v, want message %q", got, tt.wantMsg)
			}
			if b.calls.Load() != 0 {
				t.Error("backend should not be called")
			}
		})
	}
}

func TestQuery_BodyTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	h := newTestServer(cfg, &fakeBackend{})

	rec := do(t, h, http.MethodPost, protocol.QueryPath, `{"text":"SELECT * FROM timelines"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQuery_Errors(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:     "42P01",
		Message:  `relation "vendors" does not exist`,
		Position: 15,
	}

	tests := []struct {
		name       string
		err        error
		dev        bool
		wantStatus int
		wantMsg    string
		wantCode   string
		wantDetail string
	}{
		{
			name:       "not connected",
			err:        fmt.Errorf("%w: %w", connection.ErrNotConnected, errors.New("dial tcp: connection refused")),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Database not connected",
		},
		{
			name:       "not initialized",
			err:        fmt.Errorf("%w: %w", connection.ErrNotInitialized, &connection.BootstrapError{Err: errors.New("permission denied")}),
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Database not initialized",
		},
		{
			name:       "connection lost",
			err:        &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"},
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    "Database connection lost",
			wantCode:   "57P01",
		},
		{
			name:       "statement error in production",
			err:        pgErr,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    pgErr.Error(),
			wantCode:   "42P01",
		},
		{
			name:       "statement error in development",
			err:        pgErr,
			dev:        true,
			wantStatus: http.StatusInternalServerError,
			wantMsg:    pgErr.Error(),
			wantCode:   "42P01",
			wantDetail: database.ErrorDetail(pgErr),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Development = tt.dev
			h := newTestServer(cfg, &fakeBackend{err: tt.err})

			rec := do(t, h, http.MethodPost, protocol.QueryPath, `{"text":"SELECT * FROM vendors"}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			got := decode[protocol.ErrorResponse](t, rec)
			if !got.Error {
				t.Error("error flag not set")
			}
			if got.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMsg)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if !tt.dev && got.Detail != "" {
				t.Errorf("Detail = %q, want none in production", got.Detail)
			}
			if tt.wantDetail != "" && got.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", got.Detail, tt.wantDetail)
			}
		})
	}
}

func TestRouting(t *testing.T) {
	h := newTestServer(DefaultConfig(), &fakeBackend{})

	t.Run("wrong method", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, protocol.QueryPath, "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", rec.Code)
		}
	})

	t.Run("unknown api path", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/api/vendors", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		got := decode[protocol.ErrorResponse](t, rec)
		if got.Message != "Not found" {
			t.Errorf("Message = %q", got.Message)
		}
	})

	t.Run("stats", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, protocol.StatsPath, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		got := decode[connection.ManagerStats](t, rec)
		if got.Queries != 42 || got.State != connection.StateConnected {
			t.Errorf("stats = %+v", got)
		}
	})
}

func TestCORS(t *testing.T) {
	t.Run("production has no CORS headers", func(t *testing.T) {
		h := newTestServer(DefaultConfig(), &fakeBackend{report: protocol.HealthReport{Database: protocol.DatabaseConnected}})
		rec := do(t, h, http.MethodGet, protocol.HealthPath, "")
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want none", got)
		}
	})

	t.Run("development preflight", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Development = true
		b := &fakeBackend{}
		h := newTestServer(cfg, b)

		rec := do(t, h, http.MethodOptions, protocol.QueryPath, "")
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
		}
		if b.calls.Load() != 0 {
			t.Error("preflight should not reach the backend")
		}
	})
}

func TestRequestID(t *testing.T) {
	h := newTestServer(DefaultConfig(), &fakeBackend{})

	rec := do(t, h, http.MethodGet, protocol.StatsPath, "")
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated request id = %q, want a uuid", id)
	}

	req := httptest.NewRequest(http.MethodGet, protocol.StatsPath, nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if id := rec.Header().Get(RequestIDHeader); id != "abc-123" {
		t.Errorf("request id = %q, want caller's abc-123", id)
	}
}

func TestStatic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>tracker</html>"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.StaticDir = dir
	h := newTestServer(cfg, &fakeBackend{})

	tests := []struct {
		path string
		want string
	}{
		{"/", "<html>tracker</html>"},
		{"/assets/app.js", "console.log(1)"},
		{"/vendors/7/timeline", "<html>tracker</html>"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}

	// The API keeps its JSON 404 with static serving on.
	rec := do(t, h, http.MethodGet, "/api/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("/api/missing status = %d, want 404", rec.Code)
	}
}

// TestServer_SQLiteBackend drives the handlers through a real manager and
// an in-memory database.
func TestServer_SQLiteBackend(t *testing.T) {
	dial := func(ctx context.Context) (database.Conn, error) {
		return database.OpenSQLite(ctx, "sqlite::memory:")
	}
	cfg := connection.DefaultManagerConfig()
	cfg.Retry = connection.FixedRetry(0, 0)
	mgr := connection.NewManager(cfg, dial, schema.New(testLogger()), testLogger())
	defer mgr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	h := newTestServer(DefaultConfig(), mgr)

	rec := do(t, h, http.MethodGet, protocol.HealthPath, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	report := decode[protocol.HealthReport](t, rec)
	if !report.Healthy() || !report.Bootstrapped {
		t.Errorf("report = %+v, want healthy and bootstrapped", report)
	}

	rec = do(t, h, http.MethodPost, protocol.QueryPath,
		`{"text":"SELECT company_name FROM timelines WHERE company_id = ?","params":["24"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	result := decode[protocol.QueryResult](t, rec)
	if len(result.Rows) != 1 || result.Rows[0]["company_name"] != "Whyfive" {
		t.Errorf("rows = %+v", result.Rows)
	}

	rec = do(t, h, http.MethodPost, protocol.QueryPath, `{"text":"SELECT * FROM no_such_table"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("bad statement status = %d, want 500", rec.Code)
	}
	if mgr.State() != connection.StateConnected {
		t.Errorf("State() = %q after statement error, want connected", mgr.State())
	}
}
