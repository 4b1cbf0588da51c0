package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://tracker.example.com/")

		if c.baseURL != "http://tracker.example.com" {
			t.Errorf("baseURL = %q, want %q", c.baseURL, "http://tracker.example.com")
		}
		if c.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 30*time.Second)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with timeout option", func(t *testing.T) {
		c := NewClient("http://tracker.example.com", WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("with logger option", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		c := NewClient("http://tracker.example.com", WithLogger(logger))
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})

	t.Run("nil logger keeps default", func(t *testing.T) {
		c := NewClient("http://tracker.example.com", WithLogger(nil))
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with custom HTTP client", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := NewClient("http://tracker.example.com", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not set")
		}
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusInternalServerError, false},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := &APIError{StatusCode: tt.status, Message: "boom"}
			if got := err.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}

	err := &APIError{StatusCode: 500, Message: "relation \"x\" does not exist"}
	want := `tracker api error 500: relation "x" does not exist`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestHealth(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != protocol.HealthPath {
				t.Errorf("path = %q, want %q", r.URL.Path, protocol.HealthPath)
			}
			if r.Method != http.MethodGet {
				t.Errorf("method = %q, want GET", r.Method)
			}
			if ua := r.UserAgent(); !strings.HasPrefix(ua, "tender-tracker/") {
				t.Errorf("User-Agent = %q", ua)
			}
			json.NewEncoder(w).Encode(protocol.HealthReport{
				Status:       protocol.StatusHealthy,
				Database:     protocol.DatabaseConnected,
				Bootstrapped: true,
			})
		}))
		defer server.Close()

		report, err := NewClient(server.URL).Health(context.Background())
		if err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		if !report.Healthy() {
			t.Errorf("report = %+v, want healthy", report)
		}
	})

	t.Run("503 still carries report", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(protocol.HealthReport{
				Status:        protocol.StatusError,
				Database:      protocol.DatabaseError,
				DatabaseError: "connection refused",
			})
		}))
		defer server.Close()

		report, err := NewClient(server.URL).Health(context.Background())
		if err != nil {
			t.Fatalf("Health failed: %v", err)
		}
		if report.Healthy() {
			t.Error("report should not be healthy")
		}
		if report.DatabaseError != "connection refused" {
			t.Errorf("DatabaseError = %q, want %q", report.DatabaseError, "connection refused")
		}
	})

	t.Run("503 from proxy", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("<html>Service Unavailable</html>"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Health(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if !apiErr.IsRetryable() {
			t.Error("proxy 503 should be retryable")
		}
	})

	t.Run("500 health failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(protocol.HealthFailure{Status: "error", Error: "report panicked"})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Health(context.Background())
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if apiErr.Message != "report panicked" {
			t.Errorf("Message = %q, want %q", apiErr.Message, "report panicked")
		}
	})

	t.Run("server unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := NewClient(url).Health(context.Background())
		var transportErr *TransportError
		if !errors.As(err, &transportErr) {
			t.Fatalf("expected *TransportError, got %T: %v", err, err)
		}
		if transportErr.URL != url+protocol.HealthPath {
			t.Errorf("URL = %q, want %q", transportErr.URL, url+protocol.HealthPath)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewClient(server.URL).Health(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context.DeadlineExceeded, got %v", err)
		}
	})
}

func TestQuery(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != protocol.QueryPath {
				t.Errorf("path = %q, want %q", r.URL.Path, protocol.QueryPath)
			}
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var req protocol.QueryRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.Text != "SELECT * FROM timelines WHERE company_id = $1" {
				t.Errorf("Text = %q", req.Text)
			}
			if len(req.Params) != 1 || req.Params[0] != "7" {
				t.Errorf("Params = %v, want [7]", req.Params)
			}

			json.NewEncoder(w).Encode(protocol.QueryResult{
				Rows:     []map[string]any{{"company_id": "7", "company_name": "Deloitte"}},
				RowCount: 1,
				Fields:   []protocol.Field{{Name: "company_id", DataType: 25}},
			})
		}))
		defer server.Close()

		result, err := NewClient(server.URL).Query(context.Background(),
			"SELECT * FROM timelines WHERE company_id = $1", []any{"7"})
		if err != nil {
			t.Fatalf("Query failed: %v", err)
		}
		if result.RowCount != 1 {
			t.Errorf("RowCount = %d, want 1", result.RowCount)
		}
		if result.Rows[0]["company_name"] != "Deloitte" {
			t.Errorf("company_name = %v, want Deloitte", result.Rows[0]["company_name"])
		}
		if len(result.Fields) != 1 || result.Fields[0].DataType != 25 {
			t.Errorf("Fields = %+v", result.Fields)
		}
	})

	t.Run("statement error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(protocol.ErrorResponse{
				Error:   true,
				Message: `relation "vendors" does not exist`,
				Code:    "42P01",
				Detail:  "position 15",
			})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Query(context.Background(), "SELECT * FROM vendors", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if apiErr.StatusCode != 500 || apiErr.Code != "42P01" || apiErr.Detail != "position 15" {
			t.Errorf("apiErr = %+v", apiErr)
		}
		if apiErr.IsRetryable() {
			t.Error("statement error should not be retryable")
		}
	})

	t.Run("not connected", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: true, Message: "Database not connected"})
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Query(context.Background(), "SELECT 1", nil)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T: %v", err, err)
		}
		if !apiErr.IsRetryable() {
			t.Error("503 should be retryable")
		}
		if apiErr.Message != "Database not connected" {
			t.Errorf("Message = %q", apiErr.Message)
		}
		if n := atomic.LoadInt32(&calls); n != 1 {
			t.Errorf("calls = %d, want 1 (client does not retry)", n)
		}
	})

	t.Run("malformed success body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).Query(context.Background(), "SELECT 1", nil)
		if err == nil {
			t.Fatal("expected error for malformed body")
		}
		var apiErr *APIError
		var transportErr *TransportError
		if errors.As(err, &apiErr) || errors.As(err, &transportErr) {
			t.Errorf("decode failure should be neither APIError nor TransportError: %v", err)
		}
	})
}

func TestNewAPIError_PlainBody(t *testing.T) {
	err := newAPIError(http.StatusBadGateway, []byte("bad gateway"))
	if err.Message != "Bad Gateway" {
		t.Errorf("Message = %q, want %q", err.Message, "Bad Gateway")
	}
	if string(err.Body) != "bad gateway" {
		t.Errorf("Body = %q", err.Body)
	}
}
