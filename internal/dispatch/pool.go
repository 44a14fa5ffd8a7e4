package dispatch

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("dispatch")

// Task is one unit of background work, typically a blocking OS control call.
type Task func()

// Pool runs tasks on a fixed set of workers behind a bounded queue, so a
// stalled control operation can never delay the engine tick. Tasks are
// executed with panic recovery; a panicking task is logged and dropped.
type Pool struct {
	queue     chan Task
	accepting atomic.Bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts workers goroutines consuming a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{queue: make(chan Task, queueSize)}
	p.accepting.Store(true)

	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

// Submit enqueues a task. Returns false when the pool is no longer accepting
// or the queue is full; the caller decides how to surface the rejection.
// The WaitGroup is bumped before the enqueue attempt so Drain cannot miss a
// task that is in flight between Submit and a worker picking it up.
func (p *Pool) Submit(task Task) bool {
	if !p.accepting.Load() {
		return false
	}

	p.wg.Add(1)
	select {
	case p.queue <- task:
		return true
	default:
		p.wg.Done()
		log.Warn("dispatch queue full, task rejected")
		return false
	}
}

// StopAccepting rejects all future submissions. Queued tasks still run.
func (p *Pool) StopAccepting() {
	p.accepting.Store(false)
}

// Drain blocks until every queued and in-flight task finishes, or the context
// expires. Call StopAccepting first. After Drain the workers exit.
func (p *Pool) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("dispatch drain timed out")
	}

	p.closeOnce.Do(func() { close(p.queue) })
}

func (p *Pool) work() {
	for task := range p.queue {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatched task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}
