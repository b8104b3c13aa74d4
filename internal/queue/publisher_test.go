package queue

import (
	"context"
	"strings"
	"testing"
	"time"
)

type fakeConfirmation struct {
	done  chan struct{}
	acked bool
}

func (f *fakeConfirmation) Done() <-chan struct{} { return f.done }
func (f *fakeConfirmation) Acked() bool           { return f.acked }

func confirmed(acked bool) *fakeConfirmation {
	done := make(chan struct{})
	close(done)
	return &fakeConfirmation{done: done, acked: acked}
}

func TestAwaitConfirm_Acked(t *testing.T) {
	if err := awaitConfirm(context.Background(), confirmed(true), "msg-1"); err != nil {
		t.Fatalf("awaitConfirm() = %v, want nil", err)
	}
}

func TestAwaitConfirm_Nacked(t *testing.T) {
	err := awaitConfirm(context.Background(), confirmed(false), "msg-2")
	if err == nil {
		t.Fatal("awaitConfirm() = nil, want broker nack error")
	}
	if !strings.Contains(err.Error(), "nacked") {
		t.Fatalf("awaitConfirm() = %v, want nack error", err)
	}
	if !strings.Contains(err.Error(), "msg-2") {
		t.Fatalf("awaitConfirm() = %v, want message id in error", err)
	}
}

func TestAwaitConfirm_ContextExpired(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// The broker never answers.
	dc := &fakeConfirmation{done: make(chan struct{})}

	err := awaitConfirm(ctx, dc, "msg-3")
	if err == nil {
		t.Fatal("awaitConfirm() = nil, want timeout error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("awaitConfirm() = %v, want timeout error", err)
	}
}
