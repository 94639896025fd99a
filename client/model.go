package client

import (
	"context"
	"errors"
	"fmt"
)

// defaultMaxBodySize caps how much of a response body is buffered for
// the callback. Larger bodies fail with ErrBodyTooLarge.
const defaultMaxBodySize = 32 << 20 // 32MB

var (
	// ErrBodyTooLarge is reported when a response body exceeds the configured maximum.
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrClosed is reported for calls started after Close.
	ErrClosed = errors.New("transport closed")
	// ErrPanic is reported when the exchange panicked.
	ErrPanic = errors.New("PANIC")
)

// Outcome is what a transport reports for one call. A zero StatusCode
// means no response was received. Body is nil when the response had none.
type Outcome struct {
	StatusCode int
	Body       []byte
	Err        error
}

// workFn performs one exchange under ctx.
type workFn func(ctx context.Context) Outcome

// BodyError wraps a failure that happened after the status line arrived.
type BodyError struct {
	StatusCode int
	Err        error
}

func (e *BodyError) Error() string {
	return fmt.Sprintf("reading body of %d response: %v", e.StatusCode, e.Err)
}

func (e *BodyError) Unwrap() error {
	return e.Err
}
