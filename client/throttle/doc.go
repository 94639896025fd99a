// Package throttle limits the rate of outbound HTTP calls with a
// token-bucket [http.RoundTripper] built on [golang.org/x/time/rate].
//
// # Usage
//
// Wrap the base transport with [NewRoundTripper]:
//
//	rt, err := throttle.NewRoundTripper(
//		throttle.Config{RPS: 10, Burst: 5},
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//	httpClient := &http.Client{Transport: rt}
//
// A call that finds the bucket empty waits for a token, or fails once
// its context ends. Most callers enable it through client.WithThrottle.
package throttle
