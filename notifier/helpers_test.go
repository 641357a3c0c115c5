package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rise-and-shine/errnotify/diagnostics"
	"github.com/rise-and-shine/errnotify/notifier"
	"github.com/rise-and-shine/errnotify/observability/logger"
	"github.com/rise-and-shine/errnotify/payload"
)

var errTransport = errors.New("connection refused")

// fakeTransport records every delivery attempt. failOn and panicOn hold
// 1-based attempt numbers that fail or panic.
type fakeTransport struct {
	mu       sync.Mutex
	attempts []payload.Payload
	failOn   map[int]bool
	panicOn  map[int]bool
}

func (f *fakeTransport) Deliver(_ context.Context, p payload.Payload) error {
	f.mu.Lock()
	f.attempts = append(f.attempts, p)
	n := len(f.attempts)
	fail, boom := f.failOn[n], f.panicOn[n]
	f.mu.Unlock()

	if boom {
		panic("transport exploded")
	}
	if fail {
		return errTransport
	}
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func (f *fakeTransport) notifications() []*payload.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*payload.Notification
	for _, p := range f.attempts {
		if n, ok := p.(*payload.Notification); ok {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeTransport) metrics() []*payload.Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*payload.Metrics
	for _, p := range f.attempts {
		if m, ok := p.(*payload.Metrics); ok {
			out = append(out, m)
		}
	}
	return out
}

type testEnv struct {
	client    *notifier.Client
	transport *fakeTransport
	logs      *observer.ObservedLogs
}

func (e *testEnv) warnings() int {
	return e.logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

func newTestEnv(t *testing.T, cfg notifier.Config, opts ...notifier.Option) *testEnv {
	t.Helper()

	if cfg.APIKey == "" {
		cfg.APIKey = "test-api-key"
	}

	core, logs := observer.New(zapcore.DebugLevel)
	tr := &fakeTransport{}

	opts = append([]notifier.Option{
		notifier.WithLogger(logger.FromZap(zap.New(core))),
		notifier.WithTransport(tr),
		notifier.WithDiagnostics(diagnostics.Static(&diagnostics.Snapshot{
			Hostname:  "test-host",
			OSName:    "linux",
			GoVersion: "go1.25.1",
		})),
	}, opts...)

	c, err := notifier.New(cfg, opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})

	return &testEnv{client: c, transport: tr, logs: logs}
}

func flush(t *testing.T, c *notifier.Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))
}

// stockError is a domain error used to exercise class-based behavior.
type stockError struct {
	sku string
}

func (e *stockError) Error() string {
	return "out of stock: " + e.sku
}

const stockErrorClass = "github.com/rise-and-shine/errnotify/notifier_test.stockError"
