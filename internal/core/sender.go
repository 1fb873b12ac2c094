package core

import (
	"context"
	"errors"
)

// ErrChannelClosed is returned when the owner is no longer draining commands.
var ErrChannelClosed = errors.New("command channel closed")

// Sender is the shared handle callers use to enqueue commands for the owner.
// It is safe for concurrent use; commands sent by one goroutine arrive in the
// order that goroutine sent them.
type Sender struct {
	queue chan<- Command
	done  <-chan struct{}
}

// NewSender returns a handle onto queue. Closing done marks the owner as gone.
func NewSender(queue chan<- Command, done <-chan struct{}) *Sender {
	return &Sender{queue: queue, done: done}
}

// Send enqueues cmd. It blocks while the queue is full.
func (s *Sender) Send(ctx context.Context, cmd Command) error {
	select {
	case <-s.done:
		return ErrChannelClosed
	default:
	}

	select {
	case s.queue <- cmd:
		return nil
	case <-s.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the owner has stopped.
func (s *Sender) Done() <-chan struct{} { return s.done }

// Await blocks until the reply for a sent query arrives. It fails with
// ErrChannelClosed if the owner stops first.
func Await[T any](ctx context.Context, s *Sender, rx <-chan T) (T, error) {
	select {
	case v := <-rx:
		return v, nil
	case <-s.done:
		// The owner may have answered right before stopping.
		select {
		case v := <-rx:
			return v, nil
		default:
		}
		var zero T
		return zero, ErrChannelClosed
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Query sends the command built around a fresh reply and waits for the answer.
func Query[T any](ctx context.Context, s *Sender, build func(Reply[T]) Message) (T, error) {
	reply, rx := NewReply[T]()
	if err := s.Send(ctx, NewCommand(build(reply))); err != nil {
		var zero T
		return zero, err
	}
	return Await(ctx, s, rx)
}
