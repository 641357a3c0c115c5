// Package sentinel delivers error notifications to a Sentinel error-collection
// service over gRPC.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/code19m/errx"
	sentinelpb "github.com/code19m/sentinel/pb"
	"github.com/spf13/cast"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rise-and-shine/errnotify/meta"
	"github.com/rise-and-shine/errnotify/payload"
	"github.com/rise-and-shine/errnotify/transport"
)

const maxFramesInDetails = 20

// Config defines how to reach the Sentinel service.
type Config struct {
	// Host is the hostname or IP address of the Sentinel service.
	Host string `yaml:"host" validate:"required"`

	// Port is the port number of the Sentinel service.
	Port int `yaml:"port" validate:"required"`

	// SendTimeout is the timeout duration for a single SendError call.
	SendTimeout time.Duration `yaml:"send_timeout" default:"3s"`
}

// Transport implements notifier.Transport on top of the Sentinel gRPC API.
// Metrics pings have no Sentinel counterpart and are accepted without a call.
type Transport struct {
	cfg    Config
	client sentinelpb.SentinelServiceClient
	conn   *grpc.ClientConn
}

// New dials the Sentinel service described by cfg.
func New(cfg Config) (*Transport, error) {
	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &Transport{
		cfg:    cfg,
		client: sentinelpb.NewSentinelServiceClient(conn),
		conn:   conn,
	}, nil
}

// NewWithClient wraps an existing Sentinel client. Close is a no-op for the
// returned transport.
func NewWithClient(cfg Config, client sentinelpb.SentinelServiceClient) *Transport {
	return &Transport{cfg: cfg, client: client}
}

// Deliver sends one SendError call per event of a notification.
// All events are attempted; the returned error joins the individual failures.
func (t *Transport) Deliver(ctx context.Context, p payload.Payload) error {
	switch v := p.(type) {
	case *payload.Metrics:
		return nil
	case *payload.Notification:
		var errs []error
		for _, info := range ToErrorInfos(v) {
			if err := t.send(ctx, info); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return errx.Wrap(
				errors.Join(errs...),
				errx.WithCode(transport.CodeDeliveryFailed),
				errx.WithDetails(errx.D{"failed_events": len(errs)}),
			)
		}
		return nil
	default:
		return errx.New(
			"[transport.sentinel]: unsupported payload",
			errx.WithCode(transport.CodeUnsupportedPayload),
			errx.WithDetails(errx.D{"type": fmt.Sprintf("%T", p)}),
		)
	}
}

func (t *Transport) send(ctx context.Context, info *sentinelpb.ErrorInfo) error {
	if t.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), t.cfg.SendTimeout)
		defer cancel()
	}

	_, err := t.client.SendError(ctx, info)
	return errx.Wrap(err)
}

// Close closes the gRPC connection opened by New.
func (t *Transport) Close() error {
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// ToErrorInfos converts every event of n into a Sentinel ErrorInfo.
//
// The code is taken from the errx code recorded in the "error" tab when
// present, otherwise from the error class. Metadata is flattened into
// "tab.key" details.
func ToErrorInfos(n *payload.Notification) []*sentinelpb.ErrorInfo {
	infos := make([]*sentinelpb.ErrorInfo, 0, len(n.Events))
	for i := range n.Events {
		infos = append(infos, toErrorInfo(&n.Events[i]))
	}
	return infos
}

func toErrorInfo(ev *payload.Event) *sentinelpb.ErrorInfo {
	var top payload.Exception
	if len(ev.Exceptions) > 0 {
		top = ev.Exceptions[0]
	}

	details := map[string]string{
		"severity":    ev.Severity,
		"error_class": top.ErrorClass,
	}
	if ev.App.Version != "" {
		details["service_version"] = ev.App.Version
	}
	if ev.App.ReleaseStage != "" {
		details["release_stage"] = ev.App.ReleaseStage
	}
	if ev.Device.Hostname != "" {
		details["hostname"] = ev.Device.Hostname
	}
	if ev.User != nil && ev.User.ID != "" {
		details["user_id"] = ev.User.ID
	}
	if trace := formatStack(top.Stacktrace); trace != "" {
		details["stack_trace"] = trace
	}
	for tab, values := range ev.MetaData {
		for k, v := range values {
			details[tab+"."+k] = stringify(v)
		}
	}

	code := top.ErrorClass
	if c, ok := ev.MetaData["error"]["code"]; ok {
		if s := cast.ToString(c); s != "" {
			code = s
		}
	}

	service := meta.ServiceName()
	if service == "" {
		service = ev.App.Name
	}

	return &sentinelpb.ErrorInfo{
		Code:      code,
		Message:   top.Message,
		Service:   service,
		Operation: operation(ev, top),
		Details:   details,
	}
}

func operation(ev *payload.Event, top payload.Exception) string {
	if ev.Context != "" {
		return ev.Context
	}
	if op := cast.ToString(ev.MetaData["request"][string(meta.Operation)]); op != "" {
		return op
	}
	if len(top.Stacktrace) > 0 {
		return top.Stacktrace[0].Method
	}
	return ""
}

func stringify(v any) string {
	s, err := cast.ToStringE(v)
	if err == nil {
		return s
	}
	if m, ok := v.(map[string]any); ok {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+stringify(m[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprintf("%v", v)
}

func formatStack(frames []payload.Frame) string {
	var b strings.Builder
	for i, f := range frames {
		if i == maxFramesInDetails {
			fmt.Fprintf(&b, "... %d more\n", len(frames)-i)
			break
		}
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Method, f.File, f.LineNumber)
	}
	return b.String()
}
