package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrorType classifies a failed request.
type ErrorType string

const (
	ErrorUnauthorized    ErrorType = "unauthorized"
	ErrorClient          ErrorType = "clientError"
	ErrorServer          ErrorType = "serverError"
	ErrorResponseMissing ErrorType = "responseMissing"
	ErrorUnknown         ErrorType = "unknown"
)

// maxReasonSize limits how much of an error body is kept as the reason.
const maxReasonSize = 4096

// Error is returned by every Client operation that fails.
type Error struct {
	Type ErrorType
	// Status is the HTTP status code, or 0 when no response was received.
	Status int
	// Reason is the response body.
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Reason != "" {
		b.WriteString(": " + e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Type == t
}

// responseError builds the error for an unexpected response.
func responseError(resp *http.Response) *Error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonSize))

	e := &Error{
		Status: resp.StatusCode,
		Reason: strings.TrimSpace(string(body)),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusMethodNotAllowed:
		e.Type = ErrorUnauthorized
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		e.Type = ErrorClient
	case resp.StatusCode >= 500:
		e.Type = ErrorServer
	default:
		e.Type = ErrorUnknown
		e.Err = fmt.Errorf("unexpected status %q", resp.Status)
	}
	return e
}
