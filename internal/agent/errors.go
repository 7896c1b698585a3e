package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorKind classifies an agent call failure
type ErrorKind string

const (
	ErrTimeout         ErrorKind = "timeout"
	ErrMalformedOutput ErrorKind = "malformed_output"
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrTransport       ErrorKind = "transport"
)

// Error is a failed agent call. All kinds are retryable within the run's
// retry budget; exhausting the budget fails the run.
type Error struct {
	Kind ErrorKind
	Op   string // draft, refine, verify, resolve
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsAgentError extracts an *Error from an error chain
func IsAgentError(err error) (*Error, bool) {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr, true
	}
	return nil, false
}

// classify wraps a raw chat-client error into a kinded agent error.
// Deadline expiry maps to timeout, HTTP 429 and provider throttle
// messages to rate_limited, everything else to transport.
func classify(op string, err error) *Error {
	kind := ErrTransport

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case isRateLimited(err):
		kind = ErrRateLimited
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "overloaded")
}
