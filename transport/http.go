// Package transport delivers payloads to a remote error collector.
//
// HTTP posts notifications to the configured endpoint and metrics pings to
// its /metrics path. Sub-packages provide gRPC (sentinel) and Kafka
// alternatives behind the same Deliver contract.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpproxy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rise-and-shine/errnotify/observability/tracing"
	"github.com/rise-and-shine/errnotify/payload"
)

const (
	// DefaultEndpoint is the Bugsnag notify host.
	DefaultEndpoint = "notify.bugsnag.com"

	defaultTimeout = 10 * time.Second
	metricsPath    = "/metrics"
	maxBodyInError = 512
)

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	// Endpoint is host[:port][/path]. A value with an explicit scheme is used as is.
	Endpoint string
	// Insecure switches the scheme from https to http.
	Insecure bool
	// Proxy is an HTTP proxy address such as "user:pass@host:port".
	Proxy string
	// Timeout bounds a single request.
	Timeout time.Duration
}

// HTTP delivers payloads as JSON POST requests using the fiber client.
// Endpoint and scheme may be changed while deliveries are in flight.
type HTTP struct {
	mu  sync.RWMutex
	cfg HTTPConfig
}

// NewHTTP returns an HTTP transport for cfg.
func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &HTTP{cfg: cfg}
}

// SetEndpoint changes the endpoint used by subsequent deliveries.
func (t *HTTP) SetEndpoint(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Endpoint = endpoint
}

// SetInsecure toggles plain http for subsequent deliveries.
func (t *HTTP) SetInsecure(insecure bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Insecure = insecure
}

// SetProxy changes the proxy used by subsequent deliveries.
func (t *HTTP) SetProxy(proxy string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg.Proxy = proxy
}

func (t *HTTP) config() HTTPConfig {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// URL returns the address a payload of kind k is posted to.
func (t *HTTP) URL(k payload.Kind) string {
	return buildURL(t.config(), k)
}

func buildURL(cfg HTTPConfig, k payload.Kind) string {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if !strings.Contains(base, "://") {
		scheme := "https://"
		if cfg.Insecure {
			scheme = "http://"
		}
		base = scheme + base
	}
	if k == payload.KindMetrics {
		return base + metricsPath
	}
	return base
}

// Deliver posts p and returns an error for transport failures and non-2xx responses.
func (t *HTTP) Deliver(ctx context.Context, p payload.Payload) (err error) {
	var apiKey string
	switch v := p.(type) {
	case *payload.Notification:
		apiKey = v.APIKey
	case *payload.Metrics:
		apiKey = v.APIKey
	default:
		return errx.New(
			"[transport.http]: unsupported payload",
			errx.WithCode(CodeUnsupportedPayload),
			errx.WithDetails(errx.D{"type": fmt.Sprintf("%T", p)}),
		)
	}

	cfg := t.config()
	url := buildURL(cfg, p.Kind())

	ctx, span := tracing.StartSpan(ctx, "errnotify.http.deliver",
		attribute.String("errnotify.payload.kind", p.Kind().String()),
		attribute.String("url.full", url),
	)
	defer func() { tracing.EndSpan(span, err) }()

	a := fiber.Post(url)
	a.JSON(p)
	a.Set("Bugsnag-Api-Key", apiKey)
	a.Set("Bugsnag-Payload-Version", payload.Version)
	a.Set("Bugsnag-Sent-At", time.Now().UTC().Format(time.RFC3339))

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		a.Set(k, v)
	}

	a.Timeout(timeout(ctx, cfg.Timeout))
	if cfg.Proxy != "" && a.HostClient != nil {
		a.HostClient.Dial = fasthttpproxy.FasthttpHTTPDialer(cfg.Proxy)
	}

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return errx.Wrap(
			errors.Join(errs...),
			errx.WithCode(CodeDeliveryFailed),
			errx.WithDetails(errx.D{"url": url}),
		)
	}

	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		if len(body) > maxBodyInError {
			body = body[:maxBodyInError]
		}
		return errx.New(
			"[transport.http]: unexpected response status",
			errx.WithCode(CodeUnexpectedStatus),
			errx.WithDetails(errx.D{"url": url, "status": code, "body": string(body)}),
		)
	}

	return nil
}

// timeout shortens d to the context deadline when that comes first.
func timeout(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < d {
			return max(until, time.Millisecond)
		}
	}
	return d
}
