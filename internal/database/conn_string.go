package database

import (
	"net/url"
	"regexp"
	"strings"
)

// keyValuePassword matches password settings in libpq key/value and ADO.NET
// style connection strings.
var keyValuePassword = regexp.MustCompile(`(?i)\b(password|pwd)\s*=\s*('[^']*'|[^;\s]+)`)

// IsSQLiteURL reports whether the connection string names a SQLite database.
func IsSQLiteURL(connStr string) bool {
	lower := strings.ToLower(strings.TrimSpace(connStr))
	return strings.HasPrefix(lower, "sqlite:") || strings.HasPrefix(lower, "file:") || lower == ":memory:"
}

// Redact masks the password in a connection string so it can be logged.
func Redact(connStr string) string {
	if strings.Contains(connStr, "://") {
		if u, err := url.Parse(connStr); err == nil {
			q := u.Query()
			if q.Has("password") {
				q.Set("password", "xxxxx")
				u.RawQuery = q.Encode()
			}
			return u.Redacted()
		}
	}
	return keyValuePassword.ReplaceAllString(connStr, "${1}=xxxxx")
}

// Host returns the host named by a connection string, or "" when none can be
// found.
func Host(connStr string) string {
	if IsSQLiteURL(connStr) {
		return ""
	}
	if strings.Contains(connStr, "://") {
		if u, err := url.Parse(connStr); err == nil {
			return u.Hostname()
		}
		return ""
	}
	for _, field := range strings.FieldsFunc(connStr, func(r rune) bool { return r == ';' || r == ' ' }) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "host", "server":
			host := strings.TrimSpace(value)
			host = strings.TrimPrefix(host, "tcp:")
			if h, _, found := strings.Cut(host, ","); found {
				host = h
			}
			return host
		}
	}
	return ""
}

// sqlitePath strips the URL scheme from a SQLite connection string.
func sqlitePath(connStr string) string {
	s := strings.TrimSpace(connStr)
	switch {
	case strings.HasPrefix(strings.ToLower(s), "sqlite://"):
		return s[len("sqlite://"):]
	case strings.HasPrefix(strings.ToLower(s), "sqlite:"):
		return s[len("sqlite:"):]
	}
	return s
}
