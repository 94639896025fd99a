// Package beam is a small asynchronous HTTP API client. An Environment
// names a base URL and default headers; a Request describes one endpoint;
// a Service turns Requests into calls and delivers exactly one Response
// per call to a callback.
//
//	env, err := beam.NewEnvironment("prod", "https://api.example.com",
//		beam.WithHeaderConfig(beam.DetectHeaderConfig()))
//	svc, err := beam.New(env)
//
//	tok := svc.Execute(ctx, beam.Endpoint{URLPath: "users"}, func(r beam.Response) {
//		switch r := r.(type) {
//		case beam.JSONResponse:
//		case beam.DataResponse:
//		case beam.ErrorResponse:
//		}
//	})
//	defer tok.Cancel()
package beam

import "context"

// New is shorthand for NewDefaultService.
func New(env Environment, optFns ...Option) (*DefaultService, error) {
	return NewDefaultService(env, optFns...)
}

// Await executes r on s and blocks until its Response arrives. When ctx
// ends first the call is cancelled, and Await still returns the Response
// the cancelled call produces.
func Await(ctx context.Context, s Service, r Request) Response {
	ch := make(chan Response, 1)
	tok := s.Execute(ctx, r, func(resp Response) {
		ch <- resp
	})

	select {
	case resp := <-ch:
		return resp
	case <-ctx.Done():
		tok.Cancel()
		return <-ch
	}
}
