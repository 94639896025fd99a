package beam

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/beam/client"
)

// defaultRequestIDHeader carries a generated id on every call unless the
// request already sets it.
const defaultRequestIDHeader = "X-Request-ID"

// Option is a functional option for configuring a [DefaultService].
type Option func(*options) error
type options struct {
	transport       Transport
	clientOpts      []client.Option
	logger          *slog.Logger
	tracer          trace.Tracer
	useJSONNumber   bool
	requestIDHeader *string
}

// WithTransport runs calls on t instead of a [client.Client].
func WithTransport(t Transport) Option {
	return func(opts *options) error {
		if t == nil {
			return errors.New("transport must not be nil")
		}
		opts.transport = t
		return nil
	}
}

// WithHTTPClient runs calls on an already built [client.Client].
func WithHTTPClient(c *client.Client) Option {
	return func(opts *options) error {
		if c == nil {
			return errors.New("client must not be nil")
		}
		opts.transport = callTransport{c}
		return nil
	}
}

// WithResty runs calls on a [client.Resty].
func WithResty(r *client.Resty) Option {
	return func(opts *options) error {
		if r == nil {
			return errors.New("resty transport must not be nil")
		}
		opts.transport = callTransport{r}
		return nil
	}
}

// WithClientOptions configures the [client.Client] the service builds
// when no transport is given.
func WithClientOptions(clientOpts ...client.Option) Option {
	return func(opts *options) error {
		opts.clientOpts = append(opts.clientOpts, clientOpts...)
		return nil
	}
}

// WithLogger injects a custom [slog.Logger].
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		opts.logger = logger
		return nil
	}
}

// WithTracer records a client span per call with tracer.
func WithTracer(tracer trace.Tracer) Option {
	return func(opts *options) error {
		if tracer == nil {
			return errors.New("tracer must not be nil")
		}
		opts.tracer = tracer
		return nil
	}
}

// WithJSONNumber keeps JSON numbers as [json.Number], preserving precision.
func WithJSONNumber() Option {
	return func(opts *options) error {
		opts.useJSONNumber = true
		return nil
	}
}

// WithRequestIDHeader changes the header that carries the generated request id.
func WithRequestIDHeader(name string) Option {
	return func(opts *options) error {
		if name == "" {
			return errors.New("request id header must not be empty")
		}
		opts.requestIDHeader = &name
		return nil
	}
}

// WithoutRequestID stops the service from generating request ids.
func WithoutRequestID() Option {
	return func(opts *options) error {
		none := ""
		opts.requestIDHeader = &none
		return nil
	}
}

// callStarter is satisfied by [client.Client] and [client.Resty].
type callStarter interface {
	Start(req *http.Request, timeout time.Duration, fn func(client.Outcome)) *client.Call
	Wait()
	Close()
}

// callTransport adapts a callStarter to Transport.
type callTransport struct {
	s callStarter
}

func (t callTransport) Start(req *http.Request, timeout time.Duration, fn func(client.Outcome)) Canceler {
	return t.s.Start(req, timeout, fn)
}

func (t callTransport) Wait()  { t.s.Wait() }
func (t callTransport) Close() { t.s.Close() }
