package beam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/adamwoolhether/beam/client"
)

// Callback receives the Response of one call. It may run on any goroutine.
type Callback func(Response)

// Transport performs one HTTP exchange asynchronously and reports the
// outcome to fn exactly once.
type Transport interface {
	Start(req *http.Request, timeout time.Duration, fn func(client.Outcome)) Canceler
}

// Service turns Requests into calls under one Environment.
type Service interface {
	Environment() Environment
	// Execute starts r and returns a Token for it. cb fires exactly once.
	// When r cannot be turned into a call, cb fires before Execute
	// returns and the Token is nil.
	Execute(ctx context.Context, r Request, cb Callback) *Token
}

// DefaultService is the Service used by most callers. It is safe for
// concurrent use.
type DefaultService struct {
	env             Environment
	transport       Transport
	logger          *slog.Logger
	tracer          trace.Tracer
	useJSONNumber   bool
	requestIDHeader string
}

// NewDefaultService validates env and builds a service over a
// [client.Client] unless a transport option is given.
func NewDefaultService(env Environment, optFns ...Option) (*DefaultService, error) {
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("validating environment[%s]: %w", env.Name, err)
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying service option: %w", err)
		}
	}

	svc := &DefaultService{
		env:             env.clone(),
		transport:       opts.transport,
		logger:          slog.Default(),
		tracer:          opts.tracer,
		useJSONNumber:   opts.useJSONNumber,
		requestIDHeader: defaultRequestIDHeader,
	}

	if opts.logger != nil {
		svc.logger = opts.logger
	}

	if svc.tracer == nil {
		svc.tracer = noop.NewTracerProvider().Tracer("no-op tracer")
	}

	if opts.requestIDHeader != nil {
		svc.requestIDHeader = *opts.requestIDHeader
	}

	if svc.transport == nil {
		clientOpts := slices.Concat([]client.Option{client.WithLogger(svc.logger)}, opts.clientOpts)
		c, err := client.Build(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("building client: %w", err)
		}
		svc.transport = callTransport{c}
	}

	return svc, nil
}

// Environment returns a copy of the service's environment.
func (s *DefaultService) Environment() Environment {
	return s.env.clone()
}

// Execute starts r. See [Service].
func (s *DefaultService) Execute(ctx context.Context, r Request, cb Callback) *Token {
	ctx, span := s.tracer.Start(ctx, "beam.execute",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("beam.environment", s.env.Name),
			attribute.String("http.request.method", string(r.Method())),
			attribute.String("url.path", r.Path()),
		),
	)

	req, err := s.PrepareRequest(ctx, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preparing request")
		span.End()

		s.logger.Error("preparing request", "environment", s.env.Name, "path", r.Path(), "error", err)
		cb(ErrorResponse{Code: StatusUnknown, Err: err})
		return nil
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	var requestID string
	if s.requestIDHeader != "" {
		requestID = req.Header.Get(s.requestIDHeader)
	}

	s.logger.Debug("request started", "environment", s.env.Name, "method", req.Method, "url", req.URL.String(), "request_id", requestID)
	s.logger.Debug("request description", "request_id", requestID, "describe", Describe(s.env, r))

	done := make(chan struct{})
	var once sync.Once

	start := time.Now()
	call := s.transport.Start(req, r.Timeout(), func(out client.Outcome) {
		defer once.Do(func() { close(done) })

		resp := newResponse(out, r, s.useJSONNumber)

		span.SetAttributes(attribute.Int("http.response.status_code", out.StatusCode))
		if er, ok := resp.(ErrorResponse); ok {
			span.RecordError(er.Err)
			span.SetStatus(codes.Error, er.Err.Error())
		}
		span.End()

		s.logger.Info("request completed", "environment", s.env.Name, "method", req.Method, "path", req.URL.Path, "request_id", requestID, "statusCode", out.StatusCode, "since", time.Since(start).String())

		cb(resp)
	})

	return newToken(call, done)
}

// Wait blocks until every call started by the service has delivered its
// callback. Transports that cannot be awaited return immediately.
func (s *DefaultService) Wait() {
	if w, ok := s.transport.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// Close stops accepting calls and waits for the running ones, when the
// transport supports it.
func (s *DefaultService) Close() {
	if c, ok := s.transport.(interface{ Close() }); ok {
		c.Close()
	}
}

// PrepareRequest builds the *http.Request for r: the URL is
// BaseURL + "/" + [version + "/"] + path, parameters go into the JSON body
// or the query string, and headers merge cache directives, environment
// headers and request headers, in increasing precedence. Failures wrap
// ErrBadInput.
func (s *DefaultService) PrepareRequest(ctx context.Context, r Request) (*http.Request, error) {
	rawURL := s.fullPath(r)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, badInput(r, "parsing url[%s]: %v", rawURL, err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, badInput(r, "url[%s] is not absolute", rawURL)
	}

	var body io.Reader
	switch p := r.Parameters().(type) {
	case nil:
	case BodyParameters:
		values, err := stringValues(r, p)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(values)
		if err != nil {
			return nil, badInput(r, "encoding request payload: %v", err)
		}
		body = bytes.NewReader(payload)

	case URLParameters:
		values, err := stringValues(r, p)
		if err != nil {
			return nil, err
		}

		query, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return nil, badInput(r, "parsing query[%s]: %v", u.RawQuery, err)
		}
		for k, v := range values {
			query.Add(k, v)
		}
		u.RawQuery = query.Encode()

	default:
		return nil, badInput(r, "unsupported parameters %T", p)
	}

	req, err := http.NewRequestWithContext(ctx, string(r.Method()), u.String(), body)
	if err != nil {
		return nil, badInput(r, "instantiating request: %v", err)
	}

	s.applyHeaders(req, r)

	return req, nil
}

func (s *DefaultService) fullPath(r Request) string {
	fullPath := s.env.BaseURL + "/"
	if v := r.Version(); v != "" {
		fullPath += v + "/"
	}

	return fullPath + r.Path()
}

// applyHeaders writes the merged headers in key order, then fills in
// whatever they left unset: auth, cache directives and the request id.
func (s *DefaultService) applyHeaders(req *http.Request, r Request) {
	merged := AllHeaders(s.env, r)
	for _, k := range slices.Sorted(maps.Keys(merged)) {
		req.Header.Add(k, merged[k])
	}

	setDefault := func(key, value string) {
		if value == "" || len(req.Header.Values(key)) > 0 {
			return
		}
		req.Header.Set(key, value)
	}

	if auth := r.Authentication(); auth != nil {
		setDefault("Authorization", auth.Header())
	}

	directives := s.env.CachePolicy.directives()
	for _, k := range slices.Sorted(maps.Keys(directives)) {
		setDefault(k, directives[k])
	}

	if s.requestIDHeader != "" {
		setDefault(s.requestIDHeader, uuid.NewString())
	}
}

// stringValues requires every parameter value to be a string.
func stringValues(r Request, params map[string]any) (map[string]string, error) {
	values := make(map[string]string, len(params))
	for k, v := range params {
		s, ok := v.(string)
		if !ok {
			return nil, badInput(r, "parameter[%s] is %T, expected string", k, v)
		}
		values[k] = s
	}

	return values, nil
}
