// Package client provides the transports a beam Service runs on.
//
// # Building a Client
//
// Use [Build] to create a [Client] over [net/http] with functional options:
//
//	c, err := client.Build(
//		client.WithTimeout(30 * time.Second),
//		client.WithThrottle(10, 5),
//		client.WithMetrics(prometheus.DefaultRegisterer),
//	)
//
// # Starting Calls
//
// [Client.Start] performs one request on its own goroutine and reports an
// [Outcome] to a callback exactly once:
//
//	call := c.Start(req, 10*time.Second, func(out client.Outcome) {
//		// out.StatusCode == 0 means no response arrived.
//	})
//	call.Cancel() // best effort; a no-op once the call completed
//
// [Client.Wait] blocks until every started call has reported, and
// [Client.Close] additionally rejects new calls with [ErrClosed].
//
// # Resty
//
// [Resty] offers the same Start/Wait/Close contract on top of
// github.com/go-resty/resty/v2 for callers that already configure a
// resty client (proxies, TLS, middleware).
package client
