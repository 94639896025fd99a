package beam

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/adamwoolhether/beam/client"
)

// maxErrBodySize caps the amount of response body copied into an
// UnexpectedStatusError.
const maxErrBodySize = 4 << 10 // 4KB

// Response is the result of one call. It is exactly one of JSONResponse,
// DataResponse or ErrorResponse; switch on the type to consume it.
type Response interface {
	Status() Status

	response()
}

// JSONResponse is a 2xx response to a DataJSON request. The body may
// still have failed to parse: check JSON.Err.
type JSONResponse struct {
	Code Status
	JSON JSON
}

// DataResponse is a 2xx response to a DataRaw request.
type DataResponse struct {
	Code Status
	Data []byte
}

// ErrorResponse is any call that did not produce a usable 2xx body.
type ErrorResponse struct {
	Code Status
	Err  error
}

func (r JSONResponse) Status() Status  { return r.Code }
func (r DataResponse) Status() Status  { return r.Code }
func (r ErrorResponse) Status() Status { return r.Code }

func (JSONResponse) response()  {}
func (DataResponse) response()  {}
func (ErrorResponse) response() {}

// JSON is a parsed body, or the error that parsing it produced.
type JSON struct {
	raw   []byte
	value any
	err   error
}

// ParseJSON parses data as a single JSON value. With useNumber, numbers
// are kept as json.Number instead of float64.
func ParseJSON(data []byte, useNumber bool) JSON {
	d := json.NewDecoder(bytes.NewReader(data))
	if useNumber {
		d.UseNumber()
	}

	j := JSON{raw: data}

	var v any
	if err := d.Decode(&v); err != nil {
		j.err = fmt.Errorf("%w: %w", ErrParse, err)
		return j
	}

	if _, err := d.Token(); !errors.Is(err, io.EOF) {
		j.err = fmt.Errorf("%w: trailing data after top-level value", ErrParse)
		return j
	}

	j.value = v
	return j
}

// Value is the decoded value: map[string]any, []any, string, float64
// (or json.Number), bool or nil.
func (j JSON) Value() any { return j.value }

// Err is the parse error, wrapping ErrParse, or nil.
func (j JSON) Err() error { return j.err }

// Raw returns the body bytes as received.
func (j JSON) Raw() []byte { return j.raw }

// Decode unmarshals the body into dest, which must be a pointer.
func (j JSON) Decode(dest any) error {
	if j.err != nil {
		return j.err
	}

	if err := json.Unmarshal(j.raw, dest); err != nil {
		return fmt.Errorf("decoding body: %w", err)
	}

	return nil
}

// NewResponse classifies a transport outcome for the request r.
func NewResponse(out client.Outcome, r Request) Response {
	return newResponse(out, r, false)
}

func newResponse(out client.Outcome, r Request, useNumber bool) Response {
	status := StatusFromCode(out.StatusCode)
	if status == StatusUnknown {
		return ErrorResponse{Code: StatusUnknown, Err: missingStatus(out)}
	}

	if !status.IsSuccess() {
		if out.Err != nil {
			return ErrorResponse{Code: status, Err: out.Err}
		}
		return ErrorResponse{Code: status, Err: unexpectedStatus(out)}
	}

	if out.Err != nil {
		return ErrorResponse{Code: status, Err: out.Err}
	}

	if len(out.Body) == 0 {
		return ErrorResponse{Code: status, Err: &ServiceError{Err: ErrNoData, Request: r}}
	}

	switch r.DataType() {
	case DataRaw:
		return DataResponse{Code: status, Data: out.Body}
	default:
		return JSONResponse{Code: status, JSON: ParseJSON(out.Body, useNumber)}
	}
}

func missingStatus(out client.Outcome) error {
	switch {
	case out.Err != nil:
		return fmt.Errorf("%w: %w", ErrMissingStatus, out.Err)
	case out.StatusCode != 0:
		return fmt.Errorf("%w: unrecognized code %d", ErrMissingStatus, out.StatusCode)
	default:
		return ErrMissingStatus
	}
}

func unexpectedStatus(out client.Outcome) error {
	body := out.Body
	if len(body) > maxErrBodySize {
		body = body[:maxErrBodySize]
	}

	err := ErrUnexpectedStatusCode
	if out.StatusCode == http.StatusUnauthorized || out.StatusCode == http.StatusForbidden {
		err = fmt.Errorf("%w: %w", ErrAuthFailure, ErrUnexpectedStatusCode)
	}

	return &UnexpectedStatusError{
		StatusCode: out.StatusCode,
		Body:       string(body),
		Err:        err,
	}
}
