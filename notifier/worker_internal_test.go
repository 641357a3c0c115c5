package notifier

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rise-and-shine/errnotify/observability/logger"
	"github.com/rise-and-shine/errnotify/payload"
)

// gatedSender blocks every send until release is closed and records the
// API key of each payload, which the tests use as a sequence label.
type gatedSender struct {
	mu      sync.Mutex
	sent    []string
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSender() *gatedSender {
	return &gatedSender{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSender) send(_ context.Context, p payload.Payload) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, p.(*payload.Notification).APIKey)
}

func (g *gatedSender) labels() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.sent...)
}

func label(s string) payload.Payload {
	return &payload.Notification{APIKey: s}
}

func newTestWorker(t *testing.T, send func(context.Context, payload.Payload), cfg QueueConfig) (*worker, *counters) {
	t.Helper()
	stats := newCounters()
	w := newWorker(send, cfg, stats, logger.FromZap(zap.NewNop()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = w.close(ctx)
	})
	return w, stats
}

// fillBehindBlockedHead enqueues "a" and waits until the worker is stuck
// sending it, then enqueues "b" and "c".
func fillBehindBlockedHead(t *testing.T, w *worker, g *gatedSender) {
	t.Helper()
	require.True(t, w.enqueue(context.Background(), label("a")))
	<-g.started
	require.True(t, w.enqueue(context.Background(), label("b")))
	require.True(t, w.enqueue(context.Background(), label("c")))
}

func TestWorkerDropNewest(t *testing.T) {
	g := newGatedSender()
	w, stats := newTestWorker(t, g.send, QueueConfig{Policy: QueueDropNewest, Size: 2})

	fillBehindBlockedHead(t, w, g)
	assert.False(t, w.enqueue(context.Background(), label("d")))

	close(g.release)
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, []string{"a", "b", "c"}, g.labels())
	assert.Equal(t, int64(1), stats.dropped.Count())
}

func TestWorkerDropOldest(t *testing.T) {
	g := newGatedSender()
	w, stats := newTestWorker(t, g.send, QueueConfig{Policy: QueueDropOldest, Size: 2})

	fillBehindBlockedHead(t, w, g)
	assert.True(t, w.enqueue(context.Background(), label("d")))

	close(g.release)
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, []string{"a", "c", "d"}, g.labels())
	assert.Equal(t, int64(1), stats.dropped.Count())
}

func TestWorkerBlock(t *testing.T) {
	g := newGatedSender()
	w, stats := newTestWorker(t, g.send, QueueConfig{Policy: QueueBlock, Size: 2})

	fillBehindBlockedHead(t, w, g)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, w.enqueue(ctx, label("timeout")))
	assert.Equal(t, int64(1), stats.dropped.Count())

	enqueued := make(chan bool)
	go func() {
		enqueued <- w.enqueue(context.Background(), label("d"))
	}()

	select {
	case <-enqueued:
		t.Fatal("enqueue returned while the queue was full")
	case <-time.After(20 * time.Millisecond):
	}

	close(g.release)
	assert.True(t, <-enqueued)
	require.NoError(t, w.flush(context.Background()))

	assert.Equal(t, []string{"a", "b", "c", "d"}, g.labels())
}

func TestWorkerUnboundedIgnoresSize(t *testing.T) {
	g := newGatedSender()
	w, stats := newTestWorker(t, g.send, QueueConfig{Policy: QueueUnbounded, Size: 1})

	fillBehindBlockedHead(t, w, g)
	assert.True(t, w.enqueue(context.Background(), label("d")))
	assert.Equal(t, int64(3), stats.depth.Value())

	close(g.release)
	require.NoError(t, w.flush(context.Background()))
	assert.Equal(t, []string{"a", "b", "c", "d"}, g.labels())
	assert.Zero(t, stats.dropped.Count())
}

func TestWorkerFIFOWithConcurrentProducers(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []int
	)
	send := func(_ context.Context, p payload.Payload) {
		n, _ := strconv.Atoi(p.(*payload.Notification).APIKey)
		mu.Lock()
		sent = append(sent, n)
		mu.Unlock()
	}
	w, _ := newTestWorker(t, send, QueueConfig{Policy: QueueUnbounded, Size: 1})

	var (
		seqMu sync.Mutex
		seq   int
		wg    sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				seqMu.Lock()
				w.enqueue(context.Background(), label(strconv.Itoa(seq)))
				seq++
				seqMu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.NoError(t, w.flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1000)
	for i, n := range sent {
		assert.Equal(t, i, n)
	}
}

func TestWorkerCloseDrainsAndRejects(t *testing.T) {
	g := newGatedSender()
	w, stats := newTestWorker(t, g.send, QueueConfig{Policy: QueueUnbounded, Size: 1})

	fillBehindBlockedHead(t, w, g)

	closed := make(chan error)
	go func() { closed <- w.close(context.Background()) }()

	close(g.release)
	require.NoError(t, <-closed)
	assert.Equal(t, []string{"a", "b", "c"}, g.labels())

	assert.False(t, w.enqueue(context.Background(), label("late")))
	assert.Equal(t, int64(1), stats.dropped.Count())
}

func TestWorkerFlushHonorsContext(t *testing.T) {
	g := newGatedSender()
	w, _ := newTestWorker(t, g.send, QueueConfig{Policy: QueueUnbounded, Size: 1})

	require.True(t, w.enqueue(context.Background(), label("a")))
	<-g.started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, w.flush(ctx))

	close(g.release)
}
