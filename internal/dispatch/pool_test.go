package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsTasks(t *testing.T) {
	p := NewPool(2, 8)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if !p.Submit(func() { ran.Add(1) }) {
			t.Fatal("submit rejected with room in queue")
		}
	}

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)

	if got := ran.Load(); got != 5 {
		t.Errorf("ran = %d, want 5", got)
	}
}

func TestSubmitAfterStopAcceptingFails(t *testing.T) {
	p := NewPool(1, 1)
	p.StopAccepting()

	if p.Submit(func() {}) {
		t.Error("submit should fail after StopAccepting")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p.Drain(ctx)
}

func TestSubmitRejectsWhenQueueFull(t *testing.T) {
	p := NewPool(1, 1)

	block := make(chan struct{})
	// Occupy the single worker, then fill the single queue slot.
	p.Submit(func() { <-block })
	p.Submit(func() {})

	rejected := false
	for i := 0; i < 10; i++ {
		if !p.Submit(func() {}) {
			rejected = true
			break
		}
	}
	close(block)

	if !rejected {
		t.Error("expected a rejection with worker blocked and queue full")
	}

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)
}

func TestPanickingTaskDoesNotKillWorker(t *testing.T) {
	p := NewPool(1, 4)

	p.Submit(func() { panic("boom") })

	var ran atomic.Bool
	p.Submit(func() { ran.Store(true) })

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.Drain(ctx)

	if !ran.Load() {
		t.Error("worker died after a panicking task")
	}
}

func TestDrainTimeout(t *testing.T) {
	p := NewPool(1, 1)

	block := make(chan struct{})
	defer close(block)
	p.Submit(func() { <-block })

	p.StopAccepting()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	p.Drain(ctx)
	if time.Since(start) > time.Second {
		t.Error("drain did not respect context deadline")
	}
}
