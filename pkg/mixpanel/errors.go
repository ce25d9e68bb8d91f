package mixpanel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMethodPath is returned when a method path is empty or has an empty segment.
var ErrInvalidMethodPath = errors.New("invalid method path")

// TransportError is returned when the GET could not complete or the server answered with a
// non-2xx status. Body holds the response body when one was received.
type TransportError struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mixpanel transport: GET %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("mixpanel transport: GET %s: status %d: %s", e.URL, e.StatusCode, bodySnippet(e.Body))
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when the response body is not valid JSON. Body is the raw body.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("mixpanel decode: invalid JSON response (%d bytes): %v", len(e.Body), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// InvalidParameterError is returned before any network call when a parameter value is
// neither a scalar nor a sequence of scalars.
type InvalidParameterError struct {
	Key   string
	Value any
	Err   error
}

func (e *InvalidParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mixpanel: parameter %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("mixpanel: parameter %q has unsupported type %T", e.Key, e.Value)
}

func (e *InvalidParameterError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var target *TransportError
	return errors.As(err, &target)
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// IsInvalidParameterError reports whether err is or wraps an *InvalidParameterError.
func IsInvalidParameterError(err error) bool {
	var target *InvalidParameterError
	return errors.As(err, &target)
}

func bodySnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
