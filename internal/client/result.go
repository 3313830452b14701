package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Outcome classifies how an API call ended.
type Outcome int

const (
	// Ok is any 2xx response.
	Ok Outcome = iota
	// Failed is a non-2xx response, including 401.
	Failed
	// Unreachable means no response was obtained.
	Unreachable
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case Failed:
		return "failed"
	default:
		return "unreachable"
	}
}

// Result is the uniform outcome of an API operation.
type Result struct {
	Op      Operation
	Outcome Outcome
	Status  int
	Message string
	Body    []byte
	Cause   error
}

// OK reports whether the server answered 2xx.
func (r Result) OK() bool { return r.Outcome == Ok }

// Err converts a non-Ok result into an *APIError or *NetworkError.
func (r Result) Err() error {
	switch r.Outcome {
	case Ok:
		return nil
	case Failed:
		return &APIError{Op: r.Op, Status: r.Status, Message: r.Message}
	default:
		return &NetworkError{Op: r.Op, Err: r.Cause}
	}
}

// decode parses an Ok body into v. A body that does not fit turns the result
// into a failure.
func (r Result) decode(v any) Result {
	if r.Outcome != Ok {
		return r
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		r.Outcome = Failed
		r.Message = "malformed response"
		r.Cause = err
	}
	return r
}

var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response carrying the server's message.
type APIError struct {
	Op      Operation
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.Status, e.Message)
}

// IsAuth reports whether the server rejected the credentials.
func (e *APIError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.IsAuth()
}

// NetworkError means the request could not complete.
type NetworkError struct {
	Op  Operation
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
