// Package grpcnotify provides gRPC server interceptors that report panics and
// internal errors of handlers.
package grpcnotify

import (
	"context"
	"fmt"

	"github.com/code19m/errx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rise-and-shine/errnotify/notifier"
)

// Notifier is the part of *notifier.Client used by the interceptors.
type Notifier interface {
	Notify(ctx context.Context, err error, opts ...notifier.EventOption)
	AutoNotify(ctx context.Context, err error, opts ...notifier.EventOption)
}

// Options configures the interceptors.
type Options struct {
	// ReportErrors also reports errors returned by handlers whose gRPC code
	// is Internal, Unknown or DataLoss.
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

// UnaryServerInterceptor recovers panics of unary handlers, reports them and
// answers with codes.Internal. The full method name is the event context.
func UnaryServerInterceptor(n Notifier, opts ...Option) grpc.UnaryServerInterceptor {
	o := applyOptions(opts)

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = reportPanic(ctx, n, info.FullMethod, r)
			}
		}()

		resp, err = handler(ctx, req)
		o.reportError(ctx, n, info.FullMethod, err)
		return resp, err
	}
}

// StreamServerInterceptor is the streaming counterpart of UnaryServerInterceptor.
func StreamServerInterceptor(n Notifier, opts ...Option) grpc.StreamServerInterceptor {
	o := applyOptions(opts)

	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		ctx := ss.Context()
		defer func() {
			if r := recover(); r != nil {
				err = reportPanic(ctx, n, info.FullMethod, r)
			}
		}()

		err = handler(srv, ss)
		o.reportError(ctx, n, info.FullMethod, err)
		return err
	}
}

func applyOptions(opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func reportPanic(ctx context.Context, n Notifier, method string, r any) error {
	n.AutoNotify(ctx, notifier.NewPanicError(r), eventOptions(method)...)
	return status.Error(codes.Internal, fmt.Sprintf("panic recovered in %s", method))
}

func (o Options) reportError(ctx context.Context, n Notifier, method string, err error) {
	if err == nil || !o.ReportErrors {
		return
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() { //nolint:exhaustive // only server faults are reported
		case codes.Internal, codes.Unknown, codes.DataLoss:
		default:
			return
		}
	} else if errx.AsErrorX(err).Type() != errx.T_Internal {
		return
	}
	n.Notify(ctx, err, eventOptions(method)...)
}

func eventOptions(method string) []notifier.EventOption {
	return []notifier.EventOption{
		notifier.WithEventContext(method),
		notifier.WithMetaData(map[string]map[string]any{"request": {"grpc_method": method}}),
	}
}
