package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrUnknown      = errors.New("unexpected server response")
)

// Kind classifies a failed API call.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindBadRequest
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindBadRequest:
		return "bad_request"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// APIError is the only error type returned by HTTPClient calls. Detail
// carries the server's human-readable reason when one was sent.
type APIError struct {
	Kind   Kind
	Status int
	Detail string
	Err    error
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Kind == KindNetwork:
		return "Server is currently unavailable. Please try again later."
	case e.Status != 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets callers match an APIError against the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrBadRequest:
		return e.Kind == KindBadRequest
	case ErrUnavailable:
		return e.Kind == KindNetwork
	case ErrUnknown:
		return e.Kind == KindUnknown
	}
	return false
}

// KindOf reports the Kind of err, KindUnknown when err is not an APIError.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// mapError converts a transport failure into a network APIError.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}
	return &APIError{Kind: KindNetwork, Err: err}
}

// mapStatus builds an APIError from a non-2xx response.
func mapStatus(status int, body []byte) *APIError {
	e := &APIError{Status: status, Detail: parseDetail(body)}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindUnauthorized
	case status == http.StatusServiceUnavailable ||
		status == http.StatusBadGateway ||
		status == http.StatusGatewayTimeout:
		e.Kind = KindNetwork
	case status >= 400 && status < 500:
		e.Kind = KindBadRequest
	default:
		e.Kind = KindUnknown
	}
	return e
}

// parseDetail extracts FastAPI's {"detail": ...}. Validation errors carry a
// list of objects with a "msg" field.
func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(payload.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(payload.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
