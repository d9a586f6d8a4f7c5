package llm

import (
	"fmt"
)

// ExhaustedRetriesMessage is the user-facing text of ExhaustedRetriesError.
const ExhaustedRetriesMessage = "all API call attempts failed. Please check your internet connection and try again."

// TransportError is a network, TLS or timeout failure of a single attempt.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIStatusError is a non-200 response from the chat completions endpoint.
type APIStatusError struct {
	StatusCode int
	Body       string
}

func (e *APIStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("non-200 status: %d", e.StatusCode)
	}
	return fmt.Sprintf("non-200 status: %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError means a 200 response whose envelope has no usable text.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ExhaustedRetriesError is returned after every attempt, including the final fallback, failed.
// Last holds the error of the last attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedRetriesError) Error() string { return ExhaustedRetriesMessage }

func (e *ExhaustedRetriesError) Unwrap() error { return e.Last }
