package notifier

import (
	"context"
	"sync"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/errnotify/observability/logger"
	"github.com/rise-and-shine/errnotify/payload"
)

// item is a queued payload or, when flushed is set, a flush marker.
type item struct {
	ctx     context.Context
	p       payload.Payload
	flushed chan struct{}
}

// worker drains a FIFO queue on a single goroutine. Enqueue returns at once
// unless the policy is QueueBlock and the queue is full.
type worker struct {
	send   func(context.Context, payload.Payload)
	policy QueuePolicy
	size   int
	stats  *counters
	log    logger.Logger

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	queue    []item
	pending  int
	closed   bool
	done     chan struct{}
}

func newWorker(send func(context.Context, payload.Payload), cfg QueueConfig, stats *counters, log logger.Logger) *worker {
	w := &worker{
		send:   send,
		policy: cfg.Policy,
		size:   cfg.Size,
		stats:  stats,
		log:    log,
		done:   make(chan struct{}),
	}
	w.notEmpty = sync.NewCond(&w.mu)
	w.notFull = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// enqueue appends p to the queue. It reports false when p was dropped,
// because of the queue policy or because the worker is closed.
func (w *worker) enqueue(ctx context.Context, p payload.Payload) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		w.stats.dropped.Inc(1)
		w.log.Warn("[notifier.worker]: enqueue after close, payload dropped")
		return false
	}

	if w.policy != QueueUnbounded && w.pending >= w.size {
		switch w.policy {
		case QueueDropNewest:
			w.stats.dropped.Inc(1)
			w.log.Warn("[notifier.worker]: queue full, newest payload dropped")
			return false
		case QueueDropOldest:
			w.evictOldest()
			w.stats.dropped.Inc(1)
			w.log.Warn("[notifier.worker]: queue full, oldest payload dropped")
		case QueueBlock:
			if !w.waitForSpace(ctx) {
				w.stats.dropped.Inc(1)
				w.log.Warn("[notifier.worker]: gave up waiting for queue space, payload dropped")
				return false
			}
		}
	}

	w.queue = append(w.queue, item{ctx: ctx, p: p})
	w.pending++
	w.stats.enqueued.Inc(1)
	w.stats.depth.Update(int64(w.pending))
	w.notEmpty.Signal()
	return true
}

// waitForSpace blocks until the queue has room, the worker closes or ctx is
// done. The caller must hold w.mu.
func (w *worker) waitForSpace(ctx context.Context) bool {
	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.notFull.Broadcast()
	})
	defer stop()

	for w.pending >= w.size && !w.closed && ctx.Err() == nil {
		w.notFull.Wait()
	}
	return !w.closed && ctx.Err() == nil
}

// evictOldest removes the first payload, keeping flush markers in place.
// The caller must hold w.mu.
func (w *worker) evictOldest() {
	for i, it := range w.queue {
		if it.flushed == nil {
			w.queue = append(w.queue[:i], w.queue[i+1:]...)
			w.pending--
			return
		}
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.notEmpty.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		it := w.queue[0]
		w.queue[0] = item{}
		w.queue = w.queue[1:]
		if it.flushed == nil {
			w.pending--
			w.stats.depth.Update(int64(w.pending))
			w.notFull.Signal()
		}
		w.mu.Unlock()

		if it.flushed != nil {
			close(it.flushed)
			continue
		}
		w.send(it.ctx, it.p)
	}
}

// flush waits until every payload enqueued before the call has been attempted.
func (w *worker) flush(ctx context.Context) error {
	marker := make(chan struct{})

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return w.wait(ctx)
	}
	w.queue = append(w.queue, item{flushed: marker})
	w.notEmpty.Signal()
	w.mu.Unlock()

	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return errx.Wrap(ctx.Err())
	}
}

// close stops accepting payloads and waits for the queue to drain.
func (w *worker) close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		w.notEmpty.Broadcast()
		w.notFull.Broadcast()
	}
	w.mu.Unlock()

	return w.wait(ctx)
}

func (w *worker) wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return errx.Wrap(ctx.Err())
	}
}
