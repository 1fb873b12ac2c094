package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestSenderPreservesPerSenderOrder(t *testing.T) {
	queue := make(CommandChannel, 64)
	done := make(chan struct{})
	s := NewSender(queue, done)

	for i := uint64(0); i < 10; i++ {
		rate := i
		if err := s.Send(context.Background(), NewCommand(SetChargeRate{Rate: &rate})); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for i := uint64(0); i < 10; i++ {
		cmd := <-queue
		msg, ok := cmd.Message.(SetChargeRate)
		if !ok {
			t.Fatalf("expected SetChargeRate, got %T", cmd.Message)
		}
		if *msg.Rate != i {
			t.Fatalf("expected rate %d, got %d", i, *msg.Rate)
		}
		if cmd.ID == "" {
			t.Fatal("expected command id")
		}
		if cmd.Domain() != DomainBattery {
			t.Fatalf("expected battery domain, got %q", cmd.Domain())
		}
	}
}

func TestSenderClosed(t *testing.T) {
	queue := make(CommandChannel)
	done := make(chan struct{})
	s := NewSender(queue, done)
	close(done)

	err := s.Send(context.Background(), NewCommand(SetChargeMode{}))
	if !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
}

func TestSenderContextCancel(t *testing.T) {
	queue := make(CommandChannel)
	s := NewSender(queue, make(chan struct{}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Send(ctx, NewCommand(SetChargeMode{})); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReplySendOnce(t *testing.T) {
	reply, rx := NewReply[int]()
	if !reply.Send(1) {
		t.Fatal("expected first send to succeed")
	}
	if reply.Send(2) {
		t.Fatal("expected second send to be refused")
	}
	if v := <-rx; v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}

	var zero Reply[int]
	if zero.Send(1) {
		t.Fatal("expected zero reply to refuse send")
	}
}

func TestAwaitOwnerStops(t *testing.T) {
	done := make(chan struct{})
	s := NewSender(make(CommandChannel, 1), done)
	_, rx := NewReply[*uint64]()

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(done)
	}()

	if _, err := Await(context.Background(), s, rx); !errors.Is(err, ErrChannelClosed) {
		t.Fatalf("expected ErrChannelClosed, got %v", err)
	}
}

func TestAwaitPrefersDeliveredReply(t *testing.T) {
	done := make(chan struct{})
	s := NewSender(make(CommandChannel, 1), done)
	reply, rx := NewReply[string]()
	reply.Send("ok")
	close(done)

	v, err := Await(context.Background(), s, rx)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if v != "ok" {
		t.Fatalf("expected ok, got %q", v)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	queue := make(CommandChannel)
	s := NewSender(queue, make(chan struct{}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cmd := <-queue
		get := cmd.Message.(GetChargeMode)
		mode := "eco"
		get.Reply.Send(&mode)
	}()

	got, err := Query(context.Background(), s, func(r Reply[*string]) Message {
		return GetChargeMode{Reply: r}
	})
	wg.Wait()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got == nil || *got != "eco" {
		t.Fatalf("expected eco, got %v", got)
	}
}

func TestConcurrentQueriesReceiveOwnReply(t *testing.T) {
	const callers = 100
	queue := make(CommandChannel, callers)
	s := NewSender(queue, make(chan struct{}))

	// answered maps command id to the rate the owner sent for it.
	var answered sync.Map

	go func() {
		pending := make([]Command, 0, callers)
		for len(pending) < callers {
			pending = append(pending, <-queue)
		}
		// Reply in reverse arrival order so answers interleave with waiters.
		for i := len(pending) - 1; i >= 0; i-- {
			cmd := pending[i]
			rate := uint64(1000 + i)
			answered.Store(cmd.ID, rate)
			cmd.Message.(GetChargeRate).Reply.Send(&rate)
		}
	}()

	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply, rx := NewReply[*uint64]()
			cmd := NewCommand(GetChargeRate{Reply: reply})
			if err := s.Send(context.Background(), cmd); err != nil {
				errs <- err
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			got, err := Await(ctx, s, rx)
			if err != nil {
				errs <- err
				return
			}
			want, ok := answered.Load(cmd.ID)
			if !ok {
				errs <- fmt.Errorf("command %s: no answer recorded", cmd.ID)
				return
			}
			if got == nil || *got != want.(uint64) {
				errs <- fmt.Errorf("command %s: expected %d, got %v", cmd.ID, want, got)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}
