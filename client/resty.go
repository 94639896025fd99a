package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Resty performs calls through a [resty.Client]. It honours the same
// contract as [Client]: one goroutine per call, one outcome per call.
type Resty struct {
	rc          *resty.Client
	logger      *slog.Logger
	maxBodySize int64
	calls       inflight
}

// RestyOption configures a [Resty].
type RestyOption func(*Resty)

// WithRestyMaxBodySize caps the buffered response body. Zero or less
// disables the cap.
func WithRestyMaxBodySize(n int64) RestyOption {
	return func(r *Resty) {
		r.maxBodySize = n
	}
}

// NewResty wraps rc. A nil rc uses resty.New(); a nil logger uses
// slog.Default().
func NewResty(rc *resty.Client, logger *slog.Logger, optFns ...RestyOption) *Resty {
	if rc == nil {
		rc = resty.New()
	}

	if logger == nil {
		logger = slog.Default()
	}

	r := &Resty{
		rc:          rc,
		logger:      logger,
		maxBodySize: defaultMaxBodySize,
	}
	for _, opt := range optFns {
		opt(r)
	}

	return r
}

// Start performs req through resty on a new goroutine and passes the
// outcome to fn exactly once.
func (r *Resty) Start(req *http.Request, timeout time.Duration, fn func(Outcome)) *Call {
	return r.calls.start(req.Context(), timeout, func(ctx context.Context) Outcome {
		return r.exec(ctx, req)
	}, fn)
}

// Wait blocks until every started call has delivered its outcome.
func (r *Resty) Wait() {
	r.calls.wait()
}

// Close rejects new calls and waits for the running ones.
func (r *Resty) Close() {
	r.calls.close()
}

func (r *Resty) exec(ctx context.Context, req *http.Request) Outcome {
	rr := r.rc.R().
		SetContext(ctx).
		SetHeaderMultiValues(req.Header)

	if req.Body != nil && req.Body != http.NoBody {
		payload, err := io.ReadAll(req.Body)
		if err != nil {
			return Outcome{Err: fmt.Errorf("reading request payload: %w", err)}
		}
		if err := req.Body.Close(); err != nil {
			r.logger.Debug("failed to close request body", "error", err)
		}
		rr.SetBody(payload)
	}

	resp, err := rr.Execute(req.Method, req.URL.String())
	if err != nil {
		return Outcome{Err: fmt.Errorf("exec resty: %w", err)}
	}

	body := resp.Body()
	if r.maxBodySize > 0 && int64(len(body)) > r.maxBodySize {
		return Outcome{
			StatusCode: resp.StatusCode(),
			Err:        &BodyError{StatusCode: resp.StatusCode(), Err: fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, r.maxBodySize)},
		}
	}

	if len(body) == 0 {
		body = nil
	}

	return Outcome{
		StatusCode: resp.StatusCode(),
		Body:       body,
	}
}
