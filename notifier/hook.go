package notifier

import (
	"context"
	"sync"
	"time"
)

const panicFlushTimeout = 5 * time.Second

//nolint:gochecknoglobals // the panic hook is process-wide by nature
var (
	hookMu     sync.Mutex
	activeHook *Client
)

// InstallPanicHook makes c the client that Recover, RecoverAndRepanic and Go
// report to. The returned restore function reinstates the previously
// installed client, unless another client has been installed since.
func InstallPanicHook(c *Client) (restore func()) {
	hookMu.Lock()
	prev := activeHook
	activeHook = c
	hookMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			hookMu.Lock()
			defer hookMu.Unlock()
			if activeHook == c {
				activeHook = prev
			}
		})
	}
}

// ActivePanicHook returns the installed client or nil.
func ActivePanicHook() *Client {
	hookMu.Lock()
	defer hookMu.Unlock()
	return activeHook
}

// Recover reports a panic to the installed client and swallows it.
// It must be deferred directly:
//
//	defer notifier.Recover(ctx)
func Recover(ctx context.Context) {
	if r := recover(); r != nil {
		reportPanic(ctx, r)
	}
}

// RecoverAndRepanic reports a panic to the installed client, waits for the
// report to be delivered and panics again with the same value.
func RecoverAndRepanic(ctx context.Context) {
	if r := recover(); r != nil {
		reportPanic(ctx, r)
		panic(r)
	}
}

// Go runs fn in a new goroutine guarded by RecoverAndRepanic.
func Go(ctx context.Context, fn func(ctx context.Context)) {
	go func() {
		defer RecoverAndRepanic(ctx)
		fn(ctx)
	}()
}

func reportPanic(ctx context.Context, r any) {
	c := ActivePanicHook()
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.AutoNotify(ctx, panicError(r))

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), panicFlushTimeout)
	defer cancel()
	if err := c.Flush(flushCtx); err != nil {
		c.log.With("error", err.Error()).Warn("[notifier]: flush after panic did not complete")
	}
}
