// Package fibernotify reports panics and internal errors of fiber handlers.
package fibernotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/errnotify/meta"
	"github.com/rise-and-shine/errnotify/notifier"
)

// Notifier is the part of *notifier.Client used by the middleware.
type Notifier interface {
	Notify(ctx context.Context, err error, opts ...notifier.EventOption)
	AutoNotify(ctx context.Context, err error, opts ...notifier.EventOption)
}

// Options configures New.
type Options struct {
	// ReportErrors also reports errors returned by handlers. Only errors of
	// type errx.T_Internal are reported; a *fiber.Error is typed by its status
	// code first, so routing errors such as 404 and 405 are skipped.
	ReportErrors bool
}

// Option modifies Options.
type Option func(*Options)

// WithReportErrors enables reporting of internal handler errors.
func WithReportErrors() Option {
	return func(o *Options) {
		o.ReportErrors = true
	}
}

// New returns a middleware that recovers panics in the rest of the chain,
// reports them through n and turns them into internal errors for the fiber
// error handler. The event context is "METHOD /route/pattern" and the request
// line is attached as the "request" tab.
func New(n Notifier, opts ...Option) fiber.Handler {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	return func(c *fiber.Ctx) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			perr := notifier.NewPanicError(r)
			n.AutoNotify(userContext(c), perr, eventOptions(c)...)

			err = errx.New("panic recovered",
				errx.WithType(errx.T_Internal),
				errx.WithDetails(errx.D{"panic_value": fmt.Sprintf("%v", r)}),
			)
		}()

		err = c.Next()
		if err == nil || !o.ReportErrors {
			return err
		}

		if errorType(err) == errx.T_Internal {
			n.Notify(userContext(c), err, eventOptions(c)...)
		}
		return err
	}
}

// errorType maps a *fiber.Error status to an errx type and falls back to
// the errx type of any other error.
func errorType(err error) errx.Type {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return errx.AsErrorX(err).Type()
	}

	switch {
	case fiberErr.Code == fiber.StatusUnauthorized:
		return errx.T_Authentication
	case fiberErr.Code == fiber.StatusForbidden:
		return errx.T_Forbidden
	case fiberErr.Code == fiber.StatusNotFound:
		return errx.T_NotFound
	case fiberErr.Code == fiber.StatusConflict:
		return errx.T_Conflict
	case fiberErr.Code == fiber.StatusTooManyRequests:
		return errx.T_Throttling
	case fiberErr.Code >= 400 && fiberErr.Code < 500:
		return errx.T_Validation
	default:
		return errx.T_Internal
	}
}

func eventOptions(c *fiber.Ctx) []notifier.EventOption {
	request := map[string]any{
		"method": c.Method(),
		"url":    c.OriginalURL(),
		"ip":     c.IP(),
	}
	if ua := c.Get(fiber.HeaderUserAgent); ua != "" {
		request["user_agent"] = ua
	}
	if actorID := c.Locals(meta.ActorID); actorID != nil {
		request["actor_id"] = fmt.Sprintf("%v", actorID)
	}

	return []notifier.EventOption{
		notifier.WithEventContext(fmt.Sprintf("%s %s", c.Method(), c.Route().Path)),
		notifier.WithMetaData(map[string]map[string]any{"request": request}),
	}
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
