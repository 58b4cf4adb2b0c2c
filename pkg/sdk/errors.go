package sdk

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server"
	KindValidation   Kind = "validation"
	KindHTTP         Kind = "http"
)

// Sentinels for errors.Is. An *APIError matches the sentinel of its Kind.
var (
	ErrNetwork      = errors.New("network unreachable")
	ErrTimeout      = errors.New("request timed out")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
	ErrValidation   = errors.New("validation failed")
)

var kindSentinels = map[Kind]error{
	KindNetwork:      ErrNetwork,
	KindTimeout:      ErrTimeout,
	KindUnauthorized: ErrUnauthorized,
	KindForbidden:    ErrForbidden,
	KindNotFound:     ErrNotFound,
	KindRateLimited:  ErrRateLimited,
	KindServer:       ErrServer,
	KindValidation:   ErrValidation,
}

// APIError is returned by Client.Execute for every failed call.
type APIError struct {
	Kind    Kind
	Status  int    // 0 when no response was received
	Message string // server-supplied message when available
	Code    string // domain status code from the body, e.g. PENDING
	Method  string
	Path    string
	Body    map[string]any // decoded error body, nil if not JSON
	Err     error          // underlying transport error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches the sentinel error for the error's kind.
func (e *APIError) Is(target error) bool {
	s, ok := kindSentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of an *APIError in err's chain, or "" for other errors.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// StatusOf returns the HTTP status of an *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// classify maps an HTTP status onto a Kind.
func classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= http.StatusInternalServerError:
		return KindServer
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return KindHTTP
	}
}

// errorMessage picks the most specific message from an error body:
// a string "error", then "error.message", then "message".
func errorMessage(body map[string]any) string {
	if body == nil {
		return ""
	}
	switch v := body["error"].(type) {
	case string:
		if v != "" {
			return v
		}
	case map[string]any:
		if m, ok := v["message"].(string); ok && m != "" {
			return m
		}
	}
	if m, ok := body["message"].(string); ok {
		return m
	}
	return ""
}
