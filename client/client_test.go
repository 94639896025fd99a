package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/adamwoolhether/beam/client"
	"github.com/adamwoolhether/beam/client/throttle"
)

// transport is satisfied by both client.Client and client.Resty.
type transport interface {
	Start(req *http.Request, timeout time.Duration, fn func(client.Outcome)) *client.Call
}

// do starts req on c and blocks until its outcome arrives.
func do(t *testing.T, c transport, req *http.Request, timeout time.Duration) client.Outcome {
	t.Helper()

	ch := make(chan client.Outcome, 1)
	c.Start(req, timeout, func(out client.Outcome) {
		ch <- out
	})

	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for outcome")
		return client.Outcome{}
	}
}

func newRequest(t *testing.T, method, url string) *http.Request {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	return req
}

func TestClient_Start(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/empty":
			w.WriteHeader(http.StatusNoContent)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not here"))
		default:
			_, _ = w.Write([]byte(`{"body":"hello"}`))
		}
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	testCases := map[string]struct {
		path string
		exp  client.Outcome
	}{
		"withBody": {
			path: "/",
			exp:  client.Outcome{StatusCode: http.StatusOK, Body: []byte(`{"body":"hello"}`)},
		},
		"emptyBodyIsNil": {
			path: "/empty",
			exp:  client.Outcome{StatusCode: http.StatusNoContent},
		},
		"non2xxKeepsBody": {
			path: "/missing",
			exp:  client.Outcome{StatusCode: http.StatusNotFound, Body: []byte("not here")},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			out := do(t, c, newRequest(t, http.MethodGet, ts.URL+tc.path), time.Second)

			if out.Err != nil {
				t.Fatalf("expected no error, got: %v", out.Err)
			}
			if diff := cmp.Diff(tc.exp.StatusCode, out.StatusCode); diff != "" {
				t.Errorf("status mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.exp.Body, out.Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_StartTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	out := do(t, c, newRequest(t, http.MethodGet, url), time.Second)
	if out.Err == nil {
		t.Fatal("expected error for closed server")
	}
	if out.StatusCode != 0 {
		t.Errorf("expected no status code, got %d", out.StatusCode)
	}
	if out.Body != nil {
		t.Errorf("expected nil body, got %q", out.Body)
	}
}

func TestClient_StartTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	out := do(t, c, newRequest(t, http.MethodGet, ts.URL), 20*time.Millisecond)
	if !errors.Is(out.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got: %v", out.Err)
	}
	if !client.IsCancelled(out.Err) {
		t.Error("expected IsCancelled to report true")
	}
}

func TestClient_Cancel(t *testing.T) {
	started := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var calls atomic.Int32
	ch := make(chan client.Outcome, 1)
	call := c.Start(newRequest(t, http.MethodGet, ts.URL), 0, func(out client.Outcome) {
		calls.Add(1)
		ch <- out
	})

	<-started
	call.Cancel()

	out := <-ch
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("expected context canceled, got: %v", out.Err)
	}

	<-call.Done()
	call.Cancel()
	c.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly one callback, got %d", n)
	}
}

func TestClient_CancelAfterCompletion(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("done"))
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var out client.Outcome
	call := c.Start(newRequest(t, http.MethodGet, ts.URL), time.Second, func(o client.Outcome) {
		out = o
	})
	<-call.Done()

	call.Cancel()

	if diff := cmp.Diff("done", string(out.Body)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_WaitAndClose(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build()
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	var completed atomic.Int32
	for range 5 {
		c.Start(newRequest(t, http.MethodGet, ts.URL), time.Second, func(client.Outcome) {
			completed.Add(1)
		})
	}

	c.Close()
	if n := completed.Load(); n != 5 {
		t.Errorf("expected 5 completed calls after Close, got %d", n)
	}

	out := do(t, c, newRequest(t, http.MethodGet, ts.URL), time.Second)
	if !errors.Is(out.Err, client.ErrClosed) {
		t.Errorf("expected ErrClosed, got: %v", out.Err)
	}
}

func TestClient_WithMaxBodySize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer ts.Close()

	c, err := client.Build(client.WithMaxBodySize(16))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	out := do(t, c, newRequest(t, http.MethodGet, ts.URL), time.Second)
	if !errors.Is(out.Err, client.ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got: %v", out.Err)
	}

	var be *client.BodyError
	if !errors.As(out.Err, &be) {
		t.Fatalf("expected *client.BodyError, got %T", out.Err)
	}
	if be.StatusCode != http.StatusOK || out.StatusCode != http.StatusOK {
		t.Errorf("expected status 200 to be kept, got %d / %d", be.StatusCode, out.StatusCode)
	}
}

func TestClient_GzipBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			_, _ = w.Write([]byte(r.URL.Query().Get("body")))
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		if r.URL.Query().Get("body") == "" {
			return
		}

		zw := gzip.NewWriter(w)
		_, _ = zw.Write([]byte(r.URL.Query().Get("body")))
		_ = zw.Close()
	}))
	defer ts.Close()

	testCases := map[string]struct {
		body     string
		encoding string
		limit    int64
		exp      []byte
		expErr   error
	}{
		"explicitAcceptEncoding": {
			body:     `{"ok":true}`,
			encoding: "gzip",
			exp:      []byte(`{"ok":true}`),
		},
		"transportNegotiated": {
			body: `{"ok":true}`,
			exp:  []byte(`{"ok":true}`),
		},
		"emptyEncodedBody": {
			encoding: "gzip",
		},
		"limitAppliesToDecodedBody": {
			body:     strings.Repeat("x", 64),
			encoding: "gzip",
			limit:    40,
			expErr:   client.ErrBodyTooLarge,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var opts []client.Option
			if tc.limit > 0 {
				opts = append(opts, client.WithMaxBodySize(tc.limit))
			}

			c, err := client.Build(opts...)
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			req := newRequest(t, http.MethodGet, ts.URL+"?body="+url.QueryEscape(tc.body))
			if tc.encoding != "" {
				req.Header.Set("Accept-Encoding", tc.encoding)
			}

			out := do(t, c, req, time.Second)
			if !errors.Is(out.Err, tc.expErr) {
				t.Fatalf("expected error %v, got: %v", tc.expErr, out.Err)
			}
			if out.StatusCode != http.StatusOK {
				t.Errorf("expected status 200, got %d", out.StatusCode)
			}
			if diff := cmp.Diff(tc.exp, out.Body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	expectedUA := "TestUserAgent/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build(client.WithUserAgent(expectedUA))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if out := do(t, c, newRequest(t, http.MethodGet, ts.URL), time.Second); out.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d (%v)", out.StatusCode, out.Err)
	}
}

func TestClient_FullChainComposition(t *testing.T) {
	expectedUA := "FullChain/1.0"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != expectedUA {
			t.Errorf("expected User-Agent %q, got %q", expectedUA, ua)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	var transportCalled atomic.Bool
	custom := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		transportCalled.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})

	// All options in various orders should produce the same result.
	orders := [][]client.Option{
		{client.WithTransport(custom), client.WithUserAgent(expectedUA), client.WithThrottle(100, 10)},
		{client.WithThrottle(100, 10), client.WithTransport(custom), client.WithUserAgent(expectedUA)},
		{client.WithUserAgent(expectedUA), client.WithThrottle(100, 10), client.WithTransport(custom)},
	}

	for i, opts := range orders {
		transportCalled.Store(false)

		c, err := client.Build(opts...)
		if err != nil {
			t.Fatalf("order %d: failed to create client: %v", i, err)
		}

		if out := do(t, c, newRequest(t, http.MethodGet, ts.URL), time.Second); out.StatusCode != http.StatusOK {
			t.Errorf("order %d: expected 200, got %d (%v)", i, out.StatusCode, out.Err)
		}
		if !transportCalled.Load() {
			t.Errorf("order %d: custom transport was not called", i)
		}
	}
}

func TestClient_WithClientAndWithTransport(t *testing.T) {
	// WithTransport must always win over the provided client's transport.
	var providedCalled, explicitCalled atomic.Bool
	providedTransport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		providedCalled.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})
	explicitTransport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		explicitCalled.Store(true)
		return http.DefaultTransport.RoundTrip(r)
	})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build(
		client.WithClient(&http.Client{Transport: providedTransport}),
		client.WithTransport(explicitTransport),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	do(t, c, newRequest(t, http.MethodGet, ts.URL), time.Second)

	if providedCalled.Load() {
		t.Error("provided client's transport should not have been called")
	}
	if !explicitCalled.Load() {
		t.Error("WithTransport's transport should have been called")
	}
}

func TestClient_WithNoFollowRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, "/target", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c, err := client.Build(client.WithNoFollowRedirects())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	// With no-follow, we should get the redirect status, not follow it.
	if out := do(t, c, newRequest(t, http.MethodGet, ts.URL+"/redirect"), time.Second); out.StatusCode != http.StatusFound {
		t.Errorf("expected 302 response without following, got %d (%v)", out.StatusCode, out.Err)
	}
}

func TestClient_OptionValidation(t *testing.T) {
	testCases := map[string]struct {
		opt client.Option
		err error
	}{
		"nilClient":    {opt: client.WithClient(nil)},
		"nilTransport": {opt: client.WithTransport(nil)},
		"negTimeout":   {opt: client.WithTimeout(-1)},
		"nilLogger":    {opt: client.WithLogger(nil)},
		"nilMetrics":   {opt: client.WithMetrics(nil)},
		"zeroRPS":      {opt: client.WithThrottle(0, 10), err: throttle.ErrMustNotBeZero},
		"zeroBurst":    {opt: client.WithThrottle(10, 0), err: throttle.ErrMustNotBeZero},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := client.Build(tc.opt)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.err != nil && !errors.Is(err, tc.err) {
				t.Errorf("expected %v, got: %v", tc.err, err)
			}
		})
	}
}

// roundTripFunc adapts a function into an http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
