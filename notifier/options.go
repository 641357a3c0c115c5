package notifier

import (
	"github.com/rise-and-shine/errnotify/diagnostics"
	"github.com/rise-and-shine/errnotify/observability/logger"
)

// Options holds the optional collaborators of a Client.
type Options struct {
	Logger      logger.Logger
	Transport   Transport
	Diagnostics diagnostics.Provider
	PanicHook   bool
}

// Option configures New.
type Option func(*Options)

// WithLogger replaces the default logger, logger.Named("errnotify").
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(o *Options) {
		o.Transport = t
	}
}

// WithDiagnostics replaces the default diagnostics provider.
func WithDiagnostics(p diagnostics.Provider) Option {
	return func(o *Options) {
		o.Diagnostics = p
	}
}

// WithPanicHook installs the client as the process-wide panic hook.
// Close restores the previously installed hook.
func WithPanicHook() Option {
	return func(o *Options) {
		o.PanicHook = true
	}
}
