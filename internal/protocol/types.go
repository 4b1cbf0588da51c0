package protocol

import "time"

// Endpoint paths.
const (
	HealthPath       = "/api/health"
	LegacyHealthPath = "/health"
	QueryPath        = "/api/query"
	LegacyQueryPath  = "/query"
	StatsPath        = "/debug/stats"
)

// Overall report status.
const (
	StatusHealthy = "healthy"
	StatusError   = "error"
)

// DatabaseState is the server's view of its database link as published in a
// HealthReport.
type DatabaseState string

const (
	DatabaseConnected    DatabaseState = "connected"
	DatabaseDisconnected DatabaseState = "disconnected"
	DatabaseError        DatabaseState = "error"
)

// HealthReport is the body of a health probe response. The server answers
// 200 when Database is connected and 503 otherwise.
type HealthReport struct {
	Status        string        `json:"status"`
	Uptime        float64       `json:"uptime"` // seconds since process start
	Timestamp     time.Time     `json:"timestamp"`
	Database      DatabaseState `json:"database"`
	DatabaseError string        `json:"databaseError,omitempty"`
	Bootstrapped  bool          `json:"bootstrapped"`
	InstanceID    string        `json:"instanceId,omitempty"`
	Environment   Environment   `json:"environment"`
}

// Healthy reports whether the report describes a usable server: the overall
// status is healthy and the database is connected.
func (r HealthReport) Healthy() bool {
	return r.Status == StatusHealthy && r.Database == DatabaseConnected
}

// Environment describes how the server process was configured.
type Environment struct {
	Mode                string `json:"mode"`
	HasConnectionString bool   `json:"hasConnectionString"`
}

// HealthFailure is returned with a 500 when composing a report fails.
type HealthFailure struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryRequest is the body of a statement execution request.
type QueryRequest struct {
	Text   string `json:"text"`
	Params []any  `json:"params,omitempty"`
}

// QueryResult is the body of a successful statement execution.
type QueryResult struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int64            `json:"rowCount"`
	Fields   []Field          `json:"fields,omitempty"`
}

// Field describes a result column. DataType is the PostgreSQL type OID, zero
// when the backend has none.
type Field struct {
	Name     string `json:"name"`
	DataType uint32 `json:"dataType"`
	TypeName string `json:"typeName,omitempty"`
}

// ErrorResponse is the body of a failed statement execution. Detail is only
// populated outside production.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
