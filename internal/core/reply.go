package core

// Reply is the producer side of a one-shot reply channel. The owner sends
// exactly one value on it; the caller that created it receives that value.
type Reply[T any] struct {
	ch chan T
}

// NewReply creates a reply channel and returns its producer and consumer
// sides. Create one per query; never share either side between calls.
func NewReply[T any]() (Reply[T], <-chan T) {
	ch := make(chan T, 1)
	return Reply[T]{ch: ch}, ch
}

// Send delivers v to the waiting caller. It never blocks and reports false
// when the reply was already used or was never initialised.
func (r Reply[T]) Send(v T) bool {
	if r.ch == nil {
		return false
	}
	select {
	case r.ch <- v:
		return true
	default:
		return false
	}
}
