package beam

import "context"

// Task binds a Request to the Service that runs it. Task types usually
// wrap NetworkTask and add typed helpers around the callback.
type Task interface {
	Request() Request
	Run(ctx context.Context, s Service, cb Callback) *Token
}

// NetworkTask runs one Request on whatever Service it is given.
type NetworkTask struct {
	req Request
}

// NewTask returns a Task for r.
func NewTask(r Request) *NetworkTask {
	return &NetworkTask{req: r}
}

func (t *NetworkTask) Request() Request { return t.req }

// Run executes the task's request on s. The Token is nil when the request
// failed before any call was started; cb has already fired in that case.
func (t *NetworkTask) Run(ctx context.Context, s Service, cb Callback) *Token {
	return s.Execute(ctx, t.req, cb)
}
