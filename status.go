package beam

import (
	"fmt"
	"net/http"
)

// Status is an HTTP status code. The zero value, StatusUnknown, means
// no status was received.
type Status int

// StatusUnknown is the sentinel for a missing or unrecognized status code.
const StatusUnknown Status = 0

// Informational.
const (
	StatusContinue           Status = 100
	StatusSwitchingProtocols Status = 101
	StatusProcessing         Status = 102
)

// Success.
const (
	StatusOK                          Status = 200
	StatusCreated                     Status = 201
	StatusAccepted                    Status = 202
	StatusNonAuthoritativeInformation Status = 203
	StatusNoContent                   Status = 204
	StatusResetContent                Status = 205
	StatusPartialContent              Status = 206
	StatusMultiStatus                 Status = 207
	StatusAlreadyReported             Status = 208
	StatusIMUsed                      Status = 226
)

// Redirection.
const (
	StatusMultipleChoices   Status = 300
	StatusMovedPermanently  Status = 301
	StatusFound             Status = 302
	StatusSeeOther          Status = 303
	StatusNotModified       Status = 304
	StatusUseProxy          Status = 305
	StatusSwitchProxy       Status = 306
	StatusTemporaryRedirect Status = 307
	StatusPermanentRedirect Status = 308
)

// Client errors.
const (
	StatusBadRequest                  Status = 400
	StatusUnauthorized                Status = 401
	StatusPaymentRequired             Status = 402
	StatusForbidden                   Status = 403
	StatusNotFound                    Status = 404
	StatusMethodNotAllowed            Status = 405
	StatusNotAcceptable               Status = 406
	StatusProxyAuthenticationRequired Status = 407
	StatusRequestTimeout              Status = 408
	StatusConflict                    Status = 409
	StatusGone                        Status = 410
	StatusLengthRequired              Status = 411
	StatusPreconditionFailed          Status = 412
	StatusPayloadTooLarge             Status = 413
	StatusURITooLong                  Status = 414
	StatusUnsupportedMediaType        Status = 415
	StatusRangeNotSatisfiable         Status = 416
	StatusExpectationFailed           Status = 417
	StatusImATeapot                   Status = 418
	StatusMisdirectedRequest          Status = 421
	StatusUnprocessableEntity         Status = 422
	StatusLocked                      Status = 423
	StatusFailedDependency            Status = 424
	StatusUpgradeRequired             Status = 426
	StatusPreconditionRequired        Status = 428
	StatusTooManyRequests             Status = 429
	StatusRequestHeaderFieldsTooLarge Status = 431
	StatusUnavailableForLegalReasons  Status = 451
)

// Server errors.
const (
	StatusInternalServerError           Status = 500
	StatusNotImplemented                Status = 501
	StatusBadGateway                    Status = 502
	StatusServiceUnavailable            Status = 503
	StatusGatewayTimeout                Status = 504
	StatusHTTPVersionNotSupported       Status = 505
	StatusVariantAlsoNegotiates         Status = 506
	StatusInsufficientStorage           Status = 507
	StatusLoopDetected                  Status = 508
	StatusNotExtended                   Status = 510
	StatusNetworkAuthenticationRequired Status = 511
)

var recognized = func() map[Status]struct{} {
	m := make(map[Status]struct{})
	add := func(from, to Status) {
		for s := from; s <= to; s++ {
			m[s] = struct{}{}
		}
	}

	add(StatusContinue, StatusProcessing)
	add(StatusOK, StatusAlreadyReported)
	add(StatusIMUsed, StatusIMUsed)
	add(StatusMultipleChoices, StatusPermanentRedirect)
	add(StatusBadRequest, StatusImATeapot)
	add(StatusMisdirectedRequest, StatusFailedDependency)
	add(StatusUpgradeRequired, StatusUpgradeRequired)
	add(StatusPreconditionRequired, StatusTooManyRequests)
	add(StatusRequestHeaderFieldsTooLarge, StatusRequestHeaderFieldsTooLarge)
	add(StatusUnavailableForLegalReasons, StatusUnavailableForLegalReasons)
	add(StatusInternalServerError, StatusLoopDetected)
	add(StatusNotExtended, StatusNetworkAuthenticationRequired)

	return m
}()

// StatusFromCode returns the Status for code, or StatusUnknown when code
// is not an assigned status code.
func StatusFromCode(code int) Status {
	s := Status(code)
	if _, ok := recognized[s]; !ok {
		return StatusUnknown
	}

	return s
}

// Code returns the numeric status code.
func (s Status) Code() int { return int(s) }

// IsSuccess reports whether the status is in the 2xx range.
func (s Status) IsSuccess() bool { return s >= 200 && s < 300 }

func (s Status) String() string {
	if s == StatusUnknown {
		return "unknown"
	}

	if text := http.StatusText(int(s)); text != "" {
		return fmt.Sprintf("%d %s", int(s), text)
	}

	return fmt.Sprintf("%d", int(s))
}
