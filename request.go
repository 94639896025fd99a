package beam

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"
)

// DefaultTimeout applies to requests that do not declare their own.
const DefaultTimeout = 10 * time.Second

// Method is the HTTP method of a Request.
type Method string

const (
	MethodGet    Method = http.MethodGet
	MethodPost   Method = http.MethodPost
	MethodPut    Method = http.MethodPut
	MethodDelete Method = http.MethodDelete
)

// DataType is the kind of payload a Request expects back.
type DataType int

const (
	// DataJSON parses the body into a JSON value.
	DataJSON DataType = iota
	// DataRaw hands back the body bytes untouched.
	DataRaw
)

func (d DataType) String() string {
	switch d {
	case DataJSON:
		return "JSON"
	case DataRaw:
		return "Data"
	default:
		return fmt.Sprintf("DataType(%d)", int(d))
	}
}

// Parameters selects where a Request's key/value pairs are encoded.
// It is either BodyParameters or URLParameters.
type Parameters interface {
	Values() map[string]any

	parameters()
}

// BodyParameters are serialized as a JSON object in the request body.
type BodyParameters map[string]any

// URLParameters are appended to the URL as query parameters.
type URLParameters map[string]any

func (p BodyParameters) Values() map[string]any { return p }
func (BodyParameters) parameters()              {}

func (p URLParameters) Values() map[string]any { return p }
func (URLParameters) parameters()              {}

// Request describes a single API call. Implementations usually embed
// Defaults and provide only Path and Method.
type Request interface {
	// Version is an optional path segment inserted between the base URL
	// and Path. An empty string means no version.
	Version() string
	Path() string
	Method() Method
	DataType() DataType
	// Parameters returns nil when the request has none.
	Parameters() Parameters
	Authentication() Authentication
	// Headers returns nil when the request adds none.
	Headers() map[string]string
	Timeout() time.Duration
}

// Defaults supplies the optional Request members. Embed it:
//
//	type listUsers struct{ beam.Defaults }
//
//	func (listUsers) Path() string        { return "users" }
//	func (listUsers) Method() beam.Method { return beam.MethodGet }
type Defaults struct{}

func (Defaults) Version() string                { return "" }
func (Defaults) DataType() DataType             { return DataJSON }
func (Defaults) Parameters() Parameters         { return nil }
func (Defaults) Authentication() Authentication { return NoAuth{} }
func (Defaults) Headers() map[string]string     { return nil }
func (Defaults) Timeout() time.Duration         { return DefaultTimeout }

// Endpoint is a Request built from plain fields. Zero values fall back
// to the same defaults as Defaults.
type Endpoint struct {
	APIVersion   string
	URLPath      string
	HTTPMethod   Method
	Expect       DataType
	Params       Parameters
	Auth         Authentication
	HeaderMap    map[string]string
	TimeoutAfter time.Duration
}

func (e Endpoint) Version() string        { return e.APIVersion }
func (e Endpoint) Path() string           { return e.URLPath }
func (e Endpoint) DataType() DataType     { return e.Expect }
func (e Endpoint) Parameters() Parameters { return e.Params }

func (e Endpoint) Headers() map[string]string { return e.HeaderMap }

func (e Endpoint) Method() Method {
	if e.HTTPMethod == "" {
		return MethodGet
	}

	return e.HTTPMethod
}

func (e Endpoint) Authentication() Authentication {
	if e.Auth == nil {
		return NoAuth{}
	}

	return e.Auth
}

func (e Endpoint) Timeout() time.Duration {
	if e.TimeoutAfter <= 0 {
		return DefaultTimeout
	}

	return e.TimeoutAfter
}

// AllHeaders merges the environment's default headers with the request's
// own. The request wins when both declare the same key. Keys are compared
// exactly as written.
func AllHeaders(env Environment, r Request) map[string]string {
	all := maps.Clone(env.Headers)
	if all == nil {
		all = make(map[string]string)
	}

	maps.Copy(all, r.Headers())

	return all
}

// Describe renders a human readable summary of r for logs.
func Describe(env Environment, r Request) string {
	headers := AllHeaders(env, r)

	hdrs := make([]string, 0, len(headers))
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		hdrs = append(hdrs, fmt.Sprintf("%s: %s", k, headers[k]))
	}

	params := "none"
	if p := r.Parameters(); p != nil {
		params = describeParameters(p)
	}

	auth := r.Authentication()
	if auth == nil {
		auth = NoAuth{}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Headers = [%s]\n", strings.Join(hdrs, ", "))
	fmt.Fprintf(&b, "Method = %s\n", r.Method())
	fmt.Fprintf(&b, "Data Type = %s\n", r.DataType())
	fmt.Fprintf(&b, "Path = %s\n", r.Path())
	fmt.Fprintf(&b, "Parameters = %s\n", params)
	fmt.Fprintf(&b, "Authorization = %s", auth)

	return b.String()
}

func describeParameters(p Parameters) string {
	var kind string
	switch p.(type) {
	case BodyParameters:
		kind = "body"
	case URLParameters:
		kind = "url"
	}

	values := p.Values()
	pairs := make([]string, 0, len(values))
	for _, k := range slices.Sorted(maps.Keys(values)) {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, values[k]))
	}

	return fmt.Sprintf("%s(%s)", kind, strings.Join(pairs, ", "))
}
