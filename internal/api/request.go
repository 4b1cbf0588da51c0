package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/king0079z/Tender-Tracker-60/internal/protocol"
	"github.com/king0079z/Tender-Tracker-60/internal/version"
)

// APIError represents a completed request the server answered with a
// non-success status.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Detail     string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tracker api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the status means the server or a proxy in front
// of it could not reach its backend. Other statuses are application errors.
func (e *APIError) IsRetryable() bool {
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// TransportError means no response arrived: DNS failure, refused or reset
// connection, timeout, or a body that could not be read.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// doRequest performs an HTTP request and returns the status and body of any
// response that arrived, whatever its status.
func (c *Client) doRequest(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	fullURL := c.baseURL + path

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: method, URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Op: "read " + method, URL: fullURL, Err: err}
	}

	c.logger.Debug("request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return resp.StatusCode, body, nil
}

// newAPIError builds an APIError from a failure body, accepting both the
// query error shape and the health failure shape.
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
		Body:       body,
	}

	var decoded struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Detail  string `json:"detail"`
		Error   any    `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return apiErr
	}

	switch {
	case decoded.Message != "":
		apiErr.Message = decoded.Message
	default:
		if s, ok := decoded.Error.(string); ok && s != "" {
			apiErr.Message = s
		}
	}
	apiErr.Code = decoded.Code
	apiErr.Detail = decoded.Detail

	return apiErr
}

// Health fetches the server's health report. Both 200 and 503 carry a
// report; the caller decides what it means.
func (c *Client) Health(ctx context.Context) (*protocol.HealthReport, error) {
	status, body, err := c.doRequest(ctx, http.MethodGet, protocol.HealthPath, nil)
	if err != nil {
		return nil, err
	}

	if status == http.StatusOK || status == http.StatusServiceUnavailable {
		var report protocol.HealthReport
		err := json.Unmarshal(body, &report)
		if err == nil {
			return &report, nil
		}
		if status == http.StatusOK {
			return nil, fmt.Errorf("unmarshal health report: %w", err)
		}
	}

	return nil, newAPIError(status, body)
}

// Query executes a statement on the server.
func (c *Client) Query(ctx context.Context, text string, params []any) (*protocol.QueryResult, error) {
	req := protocol.QueryRequest{Text: text, Params: params}

	status, body, err := c.doRequest(ctx, http.MethodPost, protocol.QueryPath, req)
	if err != nil {
		return nil, err
	}

	if status < 200 || status >= 300 {
		return nil, newAPIError(status, body)
	}

	var result protocol.QueryResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal query result: %w", err)
	}

	return &result, nil
}
