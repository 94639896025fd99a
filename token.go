package beam

// Canceler aborts an in-flight call. Transports own the call; a Canceler
// is only a view onto it.
type Canceler interface {
	Cancel()
}

// Token is the caller's handle on one in-flight call.
type Token struct {
	handle Canceler
	done   <-chan struct{}
}

func newToken(h Canceler, done <-chan struct{}) *Token {
	return &Token{handle: h, done: done}
}

// Cancel asks the transport to abort the call. It does nothing once the
// call has completed or was already cancelled, and is safe on a nil Token.
// Cancellation races with completion: the callback may still receive the
// finished response.
func (t *Token) Cancel() {
	if t == nil || t.handle == nil {
		return
	}

	t.handle.Cancel()
}

// Done is closed once the call's callback has returned. It is already
// closed for a nil Token, whose callback ran inside Execute.
func (t *Token) Done() <-chan struct{} {
	if t == nil || t.done == nil {
		return closed
	}

	return t.done
}

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
