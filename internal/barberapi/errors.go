package barberapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Kind classifies API failures into the categories screens react to.
type Kind string

const (
	KindAuthenticationFailed Kind = "authentication_failed"
	KindValidationFailed     Kind = "validation_failed"
	KindNetworkUnavailable   Kind = "network_unavailable"
	KindNotFound             Kind = "not_found"
	KindLimitExceeded        Kind = "limit_exceeded"
	KindUnauthorized         Kind = "unauthorized"
	KindServer               Kind = "server"
)

var (
	// ErrAuthenticationFailed is returned for rejected credentials.
	ErrAuthenticationFailed = errors.New("barberapi: authentication failed")

	// ErrValidationFailed carries field-level errors from the backend or local checks.
	ErrValidationFailed = errors.New("barberapi: validation failed")

	// ErrNetworkUnavailable means no HTTP response was received.
	ErrNetworkUnavailable = errors.New("barberapi: network unavailable")

	// ErrNotFound is returned for unknown shops, plans or appointments.
	ErrNotFound = errors.New("barberapi: not found")

	// ErrLimitExceeded signals a plan or booking limit enforced by the backend.
	ErrLimitExceeded = errors.New("barberapi: limit exceeded")

	// ErrUnauthorized is a 401 outside the login endpoint. The session layer
	// reacts to it with a forced sign-out.
	ErrUnauthorized = errors.New("barberapi: unauthorized")

	// ErrServer covers any other non-2xx response.
	ErrServer = errors.New("barberapi: server error")

	// ErrMalformedResponse is returned when a 2xx body cannot be used.
	ErrMalformedResponse = errors.New("barberapi: malformed response")
)

var kindSentinels = map[Kind]error{
	KindAuthenticationFailed: ErrAuthenticationFailed,
	KindValidationFailed:     ErrValidationFailed,
	KindNetworkUnavailable:   ErrNetworkUnavailable,
	KindNotFound:             ErrNotFound,
	KindLimitExceeded:        ErrLimitExceeded,
	KindUnauthorized:         ErrUnauthorized,
	KindServer:               ErrServer,
}

// APIError is the error type returned by every Client operation that reached
// (or failed to reach) the backend.
type APIError struct {
	Kind      Kind
	Operation string
	Status    int
	// Message is the backend-provided, user-displayable message, if any.
	Message string
	// Fields holds field-keyed validation messages.
	Fields map[string][]string
	cause  error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("barberapi")
	if e.Operation != "" {
		b.WriteString(": ")
		b.WriteString(e.Operation)
	}
	b.WriteString(": ")
	b.WriteString(string(e.Kind))
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the transport cause.
func (e *APIError) Unwrap() []error {
	out := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		out = append(out, s)
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

// NewValidationError builds a ValidationFailed error from local checks.
func NewValidationError(fields map[string][]string) *APIError {
	return &APIError{
		Kind:    KindValidationFailed,
		Message: firstFieldMessage(fields),
		Fields:  fields,
	}
}

// KindOf returns the classification of err, or "" when err is not an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// UserMessage returns the backend message carried by err, or fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return fallback
}

type errorEnvelope struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

// classify maps a non-2xx response to an APIError.
func classify(operation, path string, status int, body []byte) *APIError {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	msg := strings.TrimSpace(firstNonEmpty(env.Message, env.Error))
	if msg == "" {
		msg = firstFieldMessage(env.Errors)
	}

	e := &APIError{Operation: operation, Status: status, Message: msg, Fields: env.Errors}
	login := path == loginPath

	switch {
	case login && (status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity || status == http.StatusBadRequest):
		e.Kind = KindAuthenticationFailed
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusTooManyRequests || (status >= 400 && status < 500 && mentionsLimit(msg)):
		e.Kind = KindLimitExceeded
	case status == http.StatusUnprocessableEntity || status == http.StatusBadRequest:
		e.Kind = KindValidationFailed
	default:
		e.Kind = KindServer
	}
	return e
}

func mentionsLimit(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "limit")
}

func firstFieldMessage(fields map[string][]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(fields[k]) > 0 && fields[k][0] != "" {
			return fields[k][0]
		}
	}
	return ""
}
