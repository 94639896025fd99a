package client_test

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/adamwoolhether/beam/client"
)

func TestResty_Start(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Trace"); got != "abc" {
			t.Errorf("expected X-Trace %q, got %q", "abc", got)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading body: %v", err)
		}

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(r.Method + ":" + string(body)))
	}))
	defer ts.Close()

	rc := client.NewResty(resty.New(), nil)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.URL, bytes.NewReader([]byte(`{"a":"b"}`)))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("X-Trace", "abc")

	out := do(t, rc, req, time.Second)
	if out.Err != nil {
		t.Fatalf("expected no error, got: %v", out.Err)
	}

	exp := client.Outcome{StatusCode: http.StatusCreated, Body: []byte(`POST:{"a":"b"}`)}
	if diff := cmp.Diff(exp.StatusCode, out.StatusCode); diff != "" {
		t.Errorf("status mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(exp.Body, out.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestResty_EmptyBodyIsNil(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	rc := client.NewResty(nil, nil)

	out := do(t, rc, newRequest(t, http.MethodGet, ts.URL), time.Second)
	if out.Err != nil {
		t.Fatalf("expected no error, got: %v", out.Err)
	}
	if out.Body != nil {
		t.Errorf("expected nil body, got %q", out.Body)
	}
}

func TestResty_BodyTooLarge(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer ts.Close()

	rc := client.NewResty(nil, nil, client.WithRestyMaxBodySize(16))

	out := do(t, rc, newRequest(t, http.MethodGet, ts.URL), time.Second)
	if !errors.Is(out.Err, client.ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got: %v", out.Err)
	}
}

func TestResty_Close(t *testing.T) {
	rc := client.NewResty(nil, nil)
	rc.Close()

	out := do(t, rc, newRequest(t, http.MethodGet, "http://127.0.0.1:1"), time.Second)
	if !errors.Is(out.Err, client.ErrClosed) {
		t.Errorf("expected ErrClosed, got: %v", out.Err)
	}
}
