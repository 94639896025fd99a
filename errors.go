package beam

import (
	"errors"
	"fmt"
)

var (
	// ErrBadInput means a Request could not be turned into a transport call.
	ErrBadInput = errors.New("bad input")
	// ErrNoData means a 2xx response arrived with an empty body.
	ErrNoData = errors.New("no data")
	// ErrMissingStatus means the transport reported no usable status code.
	ErrMissingStatus = errors.New("missing status code")
	// ErrParse is wrapped by the error carried in a JSON whose body did not parse.
	ErrParse = errors.New("parsing json body")
	// ErrUnexpectedStatusCode is the sentinel error wrapped by [UnexpectedStatusError].
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	// ErrAuthFailure is joined with [ErrUnexpectedStatusCode] when the server
	// responds with 401 Unauthorized or 403 Forbidden.
	ErrAuthFailure = errors.New("auth failure")
)

// ServiceError ties a sentinel error to the Request that produced it.
type ServiceError struct {
	Err     error
	Detail  string
	Request Request
}

func (e *ServiceError) Error() string {
	var path string
	if e.Request != nil {
		path = e.Request.Path()
	}

	if e.Detail == "" {
		return fmt.Sprintf("%v: path[%s]", e.Err, path)
	}

	return fmt.Sprintf("%v: path[%s]: %s", e.Err, path, e.Detail)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func badInput(r Request, format string, args ...any) *ServiceError {
	return &ServiceError{
		Err:     ErrBadInput,
		Detail:  fmt.Sprintf(format, args...),
		Request: r,
	}
}

// UnexpectedStatusError is carried by an ErrorResponse when the server
// answered with a non-2xx status and the transport reported no error.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("%v: %d, body: %s", e.Err, e.StatusCode, e.Body)
}

func (e *UnexpectedStatusError) Unwrap() error {
	return e.Err
}
