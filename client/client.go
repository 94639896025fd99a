// Package client is the transport behind a beam Service: it performs
// one HTTP exchange per call on its own goroutine and reports the
// outcome to a callback.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/adamwoolhether/beam/client/metrics"
	"github.com/adamwoolhether/beam/client/throttle"
)

// Client wraps the std-lib *http.Client.
// It sets a default *http.Client and *http.Transport, which
// can be customized via optional funcs.
type Client struct {
	c           *http.Client
	logger      *slog.Logger
	maxBodySize int64
	calls       inflight
}

func Build(optFns ...Option) (*Client, error) {
	client := &Client{
		c:           &http.Client{},
		logger:      slog.Default(),
		maxBodySize: defaultMaxBodySize,
	}

	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return nil, fmt.Errorf("applying client option: %w", err)
		}
	}

	if opts.client != nil {
		client.c = opts.client
	}

	if opts.logger != nil {
		client.logger = opts.logger
	}

	if opts.timeout != nil {
		client.c.Timeout = *opts.timeout
	}

	if opts.maxBodySize != nil {
		client.maxBodySize = *opts.maxBodySize
	}

	if opts.noFollowRedirects {
		client.c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case opts.client != nil && opts.client.Transport != nil:
		transport = opts.client.Transport
	default:
		transport = http.DefaultTransport
	}
	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}
	if opts.registerer != nil {
		rt, err := metrics.NewRoundTripper(opts.registerer, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring metrics: %w", err)
		}
		transport = rt
	}
	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, func() *slog.Logger { return client.logger }, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}
	client.c.Transport = transport

	return client, nil
}

// Start performs req on a new goroutine and passes the outcome to fn
// exactly once. timeout bounds the whole exchange, body included; zero
// means no bound beyond req's own context. Cancelling the returned Call
// aborts the exchange.
func (c *Client) Start(req *http.Request, timeout time.Duration, fn func(Outcome)) *Call {
	return c.calls.start(req.Context(), timeout, func(ctx context.Context) Outcome {
		return c.exec(req.WithContext(ctx))
	}, fn)
}

// Wait blocks until every started call has delivered its outcome.
func (c *Client) Wait() {
	c.calls.wait()
}

// Close rejects new calls and waits for the running ones. Calls started
// after Close report ErrClosed.
func (c *Client) Close() {
	c.calls.close()
	c.c.CloseIdleConnections()
}

// exec runs the request and buffers the body, always draining and closing it.
func (c *Client) exec(req *http.Request) Outcome {
	resp, err := c.c.Do(req)
	if err != nil {
		return Outcome{Err: fmt.Errorf("exec http do: %w", err)}
	}

	defer func() {
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			c.logger.Debug("failed to discard unused body", "error", err)
		}
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	r, err := decodedBody(resp)
	if err != nil {
		return Outcome{
			StatusCode: resp.StatusCode,
			Err:        &BodyError{StatusCode: resp.StatusCode, Err: err},
		}
	}
	defer func() {
		if err := r.Close(); err != nil {
			c.logger.Debug("failed to close decoded body", "error", err)
		}
	}()

	body, err := readBody(r, c.maxBodySize)
	if err != nil {
		return Outcome{
			StatusCode: resp.StatusCode,
			Err:        &BodyError{StatusCode: resp.StatusCode, Err: err},
		}
	}

	return Outcome{
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}

// decodedBody undoes a gzip Content-Encoding the transport left in place.
// net/http only decompresses when it set Accept-Encoding itself.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	if resp.Uncompressed || !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return io.NopCloser(resp.Body), nil
	}

	zr, err := gzip.NewReader(resp.Body)
	switch {
	case errors.Is(err, io.EOF):
		return io.NopCloser(http.NoBody), nil
	case err != nil:
		return nil, fmt.Errorf("reading gzip header: %w", err)
	}

	return zr, nil
}

// readBody reads at most limit bytes; a limit <= 0 reads everything.
// An empty body is returned as nil.
func readBody(r io.Reader, limit int64) ([]byte, error) {
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if limit > 0 && int64(len(b)) > limit {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, limit)
	}

	if len(b) == 0 {
		return nil, nil
	}

	return b, nil
}

// IsCancelled reports whether err came from a cancelled or timed out call.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
