package transport_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/errnotify/payload"
	"github.com/rise-and-shine/errnotify/transport"
)

type recorded struct {
	path   string
	apiKey string
	body   map[string]any
}

type collector struct {
	mu       sync.Mutex
	requests []recorded
	status   int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	c.mu.Lock()
	c.requests = append(c.requests, recorded{path: r.URL.Path, apiKey: r.Header.Get("Bugsnag-Api-Key"), body: body})
	status := c.status
	c.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("nope"))
}

func newCollector(t *testing.T, status int) (*collector, *httptest.Server) {
	t.Helper()
	c := &collector{status: status}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return c, srv
}

func TestHTTPDeliverNotification(t *testing.T) {
	c, srv := newCollector(t, http.StatusOK)
	tr := transport.NewHTTP(transport.HTTPConfig{Endpoint: srv.URL})

	err := tr.Deliver(context.Background(), &payload.Notification{
		APIKey: "key",
		Events: []payload.Event{{PayloadVersion: payload.Version, Severity: "error"}},
	})
	require.NoError(t, err)

	require.Len(t, c.requests, 1)
	assert.Equal(t, "/", c.requests[0].path)
	assert.Equal(t, "key", c.requests[0].apiKey)
	assert.Equal(t, "key", c.requests[0].body["apiKey"])
	assert.Len(t, c.requests[0].body["events"], 1)
}

func TestHTTPDeliverMetricsPath(t *testing.T) {
	c, srv := newCollector(t, http.StatusAccepted)

	// scheme comes from Insecure when the endpoint has none
	tr := transport.NewHTTP(transport.HTTPConfig{
		Endpoint: strings.TrimPrefix(srv.URL, "http://"),
		Insecure: true,
	})

	err := tr.Deliver(context.Background(), &payload.Metrics{APIKey: "key", User: payload.User{ID: "u"}})
	require.NoError(t, err)

	require.Len(t, c.requests, 1)
	assert.Equal(t, "/metrics", c.requests[0].path)
}

func TestHTTPDeliverUnexpectedStatus(t *testing.T) {
	_, srv := newCollector(t, http.StatusBadRequest)
	tr := transport.NewHTTP(transport.HTTPConfig{Endpoint: srv.URL})

	err := tr.Deliver(context.Background(), &payload.Notification{APIKey: "key"})
	require.Error(t, err)

	e := errx.AsErrorX(err)
	assert.Equal(t, transport.CodeUnexpectedStatus, e.Code())
	assert.Equal(t, http.StatusBadRequest, e.Details()["status"])
}

func TestHTTPDeliverUnreachable(t *testing.T) {
	tr := transport.NewHTTP(transport.HTTPConfig{Endpoint: "http://127.0.0.1:1", Timeout: time.Second})

	err := tr.Deliver(context.Background(), &payload.Notification{APIKey: "key"})
	require.Error(t, err)
	assert.Equal(t, transport.CodeDeliveryFailed, errx.AsErrorX(err).Code())
}

type bogusPayload struct{}

func (bogusPayload) Kind() payload.Kind { return payload.Kind(99) }

func TestHTTPDeliverUnsupported(t *testing.T) {
	tr := transport.NewHTTP(transport.HTTPConfig{})

	err := tr.Deliver(context.Background(), bogusPayload{})
	require.Error(t, err)
	assert.Equal(t, transport.CodeUnsupportedPayload, errx.AsErrorX(err).Code())
}

func TestHTTPURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  transport.HTTPConfig
		kind payload.Kind
		want string
	}{
		{name: "default endpoint", cfg: transport.HTTPConfig{}, kind: payload.KindNotification, want: "https://notify.bugsnag.com"},
		{name: "insecure metrics", cfg: transport.HTTPConfig{Endpoint: "collector:9000/", Insecure: true}, kind: payload.KindMetrics, want: "http://collector:9000/metrics"},
		{name: "explicit scheme", cfg: transport.HTTPConfig{Endpoint: "https://x.io/base", Insecure: true}, kind: payload.KindNotification, want: "https://x.io/base"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, transport.NewHTTP(tt.cfg).URL(tt.kind))
		})
	}
}

func TestHTTPSetters(t *testing.T) {
	tr := transport.NewHTTP(transport.HTTPConfig{Endpoint: "a.io"})
	tr.SetEndpoint("b.io")
	tr.SetInsecure(true)
	assert.Equal(t, "http://b.io", tr.URL(payload.KindNotification))
}
