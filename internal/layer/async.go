package layer

// Async runs a blocking handshake on its own goroutine and exposes it as a
// Pending. Resume never waits: it reports Incomplete until fn has returned.
type Async[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn and returns its handle.
func Go[T any](fn func() (T, error)) *Async[T] {
	a := &Async[T]{done: make(chan struct{})}
	go func() {
		defer close(a.done)
		a.val, a.err = fn()
	}()
	return a
}

// Resume reports the current outcome without blocking.
func (a *Async[T]) Resume() Result[T] {
	select {
	case <-a.done:
	default:
		return Incomplete[T](a)
	}
	if a.err != nil {
		return Fail[T](a.err)
	}
	return Complete(a.val)
}

// Done is closed once the handshake has finished.
func (a *Async[T]) Done() <-chan struct{} {
	return a.done
}

// Abandon hands the outcome to release once fn returns, for a handshake
// that will never be resumed. It does not block.
func (a *Async[T]) Abandon(release func(T)) {
	go func() {
		<-a.done
		if a.err == nil {
			release(a.val)
		}
	}()
}
