package ddns

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUnauthorized is matched by API errors caused by a missing, invalid or under-privileged token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is matched by API errors caused by sending too many requests.
	ErrRateLimited = errors.New("rate limited")
	// ErrZoneNotFound is returned when no zone managed by the account contains the domain.
	ErrZoneNotFound = errors.New("zone not found")
)

// APIError is a non-success response from a provider API.
type APIError struct {
	StatusCode int
	Message    string
	// Fields holds validation messages keyed by request field, when the API sends them.
	Fields map[string][]string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "; %s: %s", k, strings.Join(e.Fields[k], ", "))
	}
	return b.String()
}

// Is lets errors.Is match an APIError against ErrUnauthorized and ErrRateLimited.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}
