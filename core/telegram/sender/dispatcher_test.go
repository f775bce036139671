package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), "send", 1, func(context.Context) error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("refused")}
		}
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not succeed")
	}
	d.Close()
	if calls.Load() != 3 || d.ErrorCount() != 0 {
		t.Fatalf("calls = %d, errors = %d", calls.Load(), d.ErrorCount())
	}
}

func TestDispatcherDoesNotRetryPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	_ = d.Enqueue(context.Background(), "send", 1, func(context.Context) error {
		calls.Add(1)
		return errors.New("chat not found")
	})
	d.Close()
	if calls.Load() != 1 || d.ErrorCount() != 1 {
		t.Fatalf("calls = %d, errors = %d", calls.Load(), d.ErrorCount())
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Enqueue(context.Background(), "send", 1, func(context.Context) error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123456:ABC-def_9/sendMessage": timeout`)
	got := sanitizeErrorMessage(err)
	if got != `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout` {
		t.Fatalf("got %q", got)
	}
}
