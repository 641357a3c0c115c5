package notifier

import (
	"github.com/rise-and-shine/errnotify/diagnostics"
	"github.com/rise-and-shine/errnotify/payload"
)

const maxCauseDepth = 32

// NewNotification builds the payload for events without sending it.
// Events with a nil error are skipped.
func (c *Client) NewNotification(events ...*Event) *payload.Notification {
	c.mu.RLock()
	info := c.notifierInfo
	projectPackages := c.projectPackages
	c.mu.RUnlock()

	n := &payload.Notification{
		APIKey:   c.apiKey,
		Notifier: info,
		Events:   make([]payload.Event, 0, len(events)),
	}

	var threads []payload.Thread
	if c.sendThreads.Load() && len(events) > 0 {
		threads = goroutineThreads(projectPackages)
	}

	for _, e := range events {
		if e == nil || e.Err == nil {
			continue
		}
		n.Events = append(n.Events, c.buildEvent(e, projectPackages, threads))
	}
	return n
}

func (c *Client) buildEvent(e *Event, projectPackages []string, threads []payload.Thread) payload.Event {
	ev := payload.Event{
		PayloadVersion: payload.Version,
		Exceptions:     buildExceptions(e, projectPackages),
		Threads:        threads,
		Context:        e.Context,
		Severity:       string(e.Severity.normalize()),
		App:            c.app(e.Diagnostics),
		Device:         c.device(e.Diagnostics),
		MetaData:       c.redact(e.MetaData.Copy()),
	}

	if ev.Context == "" {
		ev.Context = c.context.Value()
	}

	if e.User != nil {
		u := *e.User
		ev.User = &u
	} else if u := c.user.Value(); u != (payload.User{}) {
		ev.User = &u
	}

	if len(ev.MetaData) == 0 {
		ev.MetaData = nil
	}
	return ev
}

// buildExceptions walks the wrapped-error chain, outermost first. The event
// stack belongs to the outermost error; causes carry their own stack when
// they record one.
func buildExceptions(e *Event, projectPackages []string) []payload.Exception {
	out := []payload.Exception{{
		ErrorClass: ErrorClass(e.Err),
		Message:    e.Err.Error(),
		Stacktrace: buildFrames(e.stack, projectPackages),
	}}

	for _, cause := range causes(e.Err) {
		var pcs []uintptr
		if cp, ok := cause.(callersProvider); ok {
			pcs = cp.Callers()
		}
		out = append(out, payload.Exception{
			ErrorClass: ErrorClass(cause),
			Message:    cause.Error(),
			Stacktrace: buildFrames(pcs, projectPackages),
		})
	}
	return out
}

// causes returns the errors wrapped by err in depth-first order. Joined
// errors contribute each of their members.
func causes(err error) []error {
	var out []error
	var walk func(error)
	walk = func(err error) {
		if len(out) >= maxCauseDepth {
			return
		}
		switch x := err.(type) { //nolint:errorlint // walking the chain level by level
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				if inner == nil {
					continue
				}
				out = append(out, inner)
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := x.Unwrap(); inner != nil {
				out = append(out, inner)
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// NewMetrics builds the metrics ping payload without sending it.
func (c *Client) NewMetrics() *payload.Metrics {
	c.mu.RLock()
	info := c.notifierInfo
	c.mu.RUnlock()

	u := c.user.Value()
	u.ID = c.userID()

	return &payload.Metrics{
		APIKey:   c.apiKey,
		Notifier: info,
		User:     u,
		App:      c.app(c.diagnostics),
		Device:   c.device(c.diagnostics),
	}
}

func (c *Client) app(d *diagnostics.Snapshot) payload.App {
	app := payload.App{
		Version:      c.appVersion.Value(),
		ReleaseStage: c.releaseStage.Value(),
	}
	if d != nil {
		app.Name = d.AppName
		if app.Version == "" {
			app.Version = d.AppVersion
		}
	}
	return app
}

func (c *Client) device(d *diagnostics.Snapshot) payload.Device {
	dev := payload.Device{OSVersion: c.osVersion.Value()}
	if d != nil {
		dev.Hostname = d.Hostname
		dev.OSName = d.OSName
		dev.Locale = d.Locale
		dev.RuntimeVersions = map[string]string{"go": d.GoVersion}
	}
	return dev
}
