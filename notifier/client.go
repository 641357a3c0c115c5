// Package notifier captures errors and recovered panics, decides whether they
// should be reported and delivers them to an error collector.
//
// A report goes through these steps:
//
//	Notify -> release stage gate -> ignore classes -> BeforeNotify chain -> deliver
//
// Delivery is asynchronous by default: payloads are queued and sent one at a
// time by a single worker goroutine. Nothing after New returns an error to the
// caller; failures are logged at warn level and the report is dropped.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/code19m/errx"
	"github.com/google/uuid"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/samber/lo"

	"github.com/rise-and-shine/errnotify/diagnostics"
	"github.com/rise-and-shine/errnotify/mask"
	"github.com/rise-and-shine/errnotify/observability/logger"
	"github.com/rise-and-shine/errnotify/payload"
	"github.com/rise-and-shine/errnotify/transport"
)

// Transport delivers a payload to a collector.
type Transport interface {
	Deliver(ctx context.Context, p payload.Payload) error
}

type endpointSetter interface {
	SetEndpoint(endpoint string)
}

type insecureSetter interface {
	SetInsecure(insecure bool)
}

type proxySetter interface {
	SetProxy(proxy string)
}

// Client is the entry point of the notifier. It is safe for concurrent use.
type Client struct {
	apiKey string

	releaseStage *Locked[string]
	context      *Locked[string]
	appVersion   *Locked[string]
	osVersion    *Locked[string]
	user         *Locked[payload.User]

	mu                  sync.RWMutex
	notifyReleaseStages []string
	ignoreClasses       []string
	beforeNotify        []BeforeNotify
	filters             []string
	projectPackages     []string
	notifierInfo        payload.Notifier
	endpoint            string
	insecure            bool
	proxy               string

	asynchronous atomic.Bool
	autoNotify   atomic.Bool
	sendThreads  atomic.Bool

	metaData    *MetaData
	diagnostics *diagnostics.Snapshot
	transport   Transport
	log         logger.Logger
	sendTimeout time.Duration
	stats       *counters
	worker      *worker

	userIDOnce      sync.Once
	generatedUserID string

	restoreHook func()
	closeOnce   sync.Once
}

// New validates cfg and returns a ready client with its delivery worker
// running. A missing API key fails with code MISSING_API_KEY, any other
// invalid setting with INVALID_CONFIG.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.prepare(); err != nil {
		return nil, err
	}

	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logger.Named("errnotify")
	}
	if o.Diagnostics == nil {
		o.Diagnostics = diagnostics.NewProvider()
	}
	if o.Transport == nil {
		o.Transport = transport.NewHTTP(transport.HTTPConfig{
			Endpoint: cfg.Endpoint,
			Insecure: cfg.Insecure,
			Proxy:    cfg.Proxy,
			Timeout:  cfg.SendTimeout,
		})
	}

	c := &Client{
		apiKey:              cfg.APIKey,
		releaseStage:        NewLocked(cfg.ReleaseStage),
		context:             NewLocked(cfg.Context),
		appVersion:          NewLocked(cfg.AppVersion),
		osVersion:           NewLocked(cfg.OSVersion),
		user:                NewLocked(payload.User{}),
		notifyReleaseStages: lo.Compact(cfg.NotifyReleaseStages),
		ignoreClasses:       lo.Compact(cfg.IgnoreClasses),
		filters:             lo.Compact(cfg.Filters),
		projectPackages:     lo.Compact(cfg.ProjectPackages),
		notifierInfo: payload.Notifier{
			Name:    cfg.NotifierName,
			Version: cfg.NotifierVersion,
			URL:     cfg.NotifierURL,
		},
		endpoint:    cfg.Endpoint,
		insecure:    cfg.Insecure,
		proxy:       cfg.Proxy,
		metaData:    NewMetaData(nil),
		diagnostics: o.Diagnostics.Capture(),
		transport:   o.Transport,
		log:         o.Logger,
		sendTimeout: cfg.SendTimeout,
		stats:       newCounters(),
	}
	c.asynchronous.Store(!cfg.Synchronous)
	c.autoNotify.Store(!cfg.DisableAutoNotify)
	c.sendThreads.Store(cfg.SendThreads)

	c.worker = newWorker(c.deliver, cfg.Queue, c.stats, c.log)

	if o.PanicHook {
		c.restoreHook = InstallPanicHook(c)
	}

	return c, nil
}

// --- Locked settings ---

// SetReleaseStage sets the release stage. Only the first call has an effect.
func (c *Client) SetReleaseStage(stage string) {
	c.releaseStage.Set(stage)
}

// SetContext sets the default event context. Only the first call has an effect.
func (c *Client) SetContext(context string) {
	c.context.Set(context)
}

// SetAppVersion sets the application version. Only the first call has an effect.
func (c *Client) SetAppVersion(version string) {
	c.appVersion.Set(version)
}

// SetOSVersion sets the operating system version. Only the first call has an effect.
func (c *Client) SetOSVersion(version string) {
	c.osVersion.Set(version)
}

// SetUser sets the user attached to every event. Only the first call has an effect.
func (c *Client) SetUser(id, email, name string) {
	c.user.Set(payload.User{ID: id, Email: email, Name: name})
}

// SetUserID is SetUser with only an id.
func (c *Client) SetUserID(id string) {
	c.SetUser(id, "", "")
}

// ReleaseStage returns the current release stage.
func (c *Client) ReleaseStage() string {
	return c.releaseStage.Value()
}

// --- Mutable settings ---

// SetNotifyReleaseStages limits reporting to stages. No stages means always report.
func (c *Client) SetNotifyReleaseStages(stages ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyReleaseStages = lo.Compact(stages)
}

// SetIgnoreClasses replaces the ignore list. Events created earlier keep
// their decision.
func (c *Client) SetIgnoreClasses(classes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignoreClasses = lo.Compact(classes)
}

// SetFilters replaces the metadata key fragments that are redacted.
func (c *Client) SetFilters(filters ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = lo.Compact(filters)
}

// SetProjectPackages replaces the import path prefixes marked in-project.
func (c *Client) SetProjectPackages(packages ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projectPackages = lo.Compact(packages)
}

// SetNotifierInfo overrides the notifier identity sent with payloads.
func (c *Client) SetNotifierInfo(name, version, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifierInfo = payload.Notifier{Name: name, Version: version, URL: url}
}

// SetEndpoint changes the collector endpoint when the transport supports it.
func (c *Client) SetEndpoint(endpoint string) {
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
	if s, ok := c.transport.(endpointSetter); ok {
		s.SetEndpoint(endpoint)
	}
}

// SetInsecure switches between http and https when the transport supports it.
func (c *Client) SetInsecure(insecure bool) {
	c.mu.Lock()
	c.insecure = insecure
	c.mu.Unlock()
	if s, ok := c.transport.(insecureSetter); ok {
		s.SetInsecure(insecure)
	}
}

// SetProxy hands proxy to the transport when it supports one.
func (c *Client) SetProxy(proxy string) {
	c.mu.Lock()
	c.proxy = proxy
	c.mu.Unlock()
	if s, ok := c.transport.(proxySetter); ok {
		s.SetProxy(proxy)
	}
}

// SetAsynchronous toggles delivery through the worker.
func (c *Client) SetAsynchronous(async bool) {
	c.asynchronous.Store(async)
}

// SetAutoNotify toggles reporting of recovered panics.
func (c *Client) SetAutoNotify(auto bool) {
	c.autoNotify.Store(auto)
}

// SetSendThreads toggles attaching all goroutine stacks to events.
func (c *Client) SetSendThreads(send bool) {
	c.sendThreads.Store(send)
}

// AddBeforeNotify appends f to the filter chain.
func (c *Client) AddBeforeNotify(f BeforeNotify) {
	if f == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeNotify = append(c.beforeNotify, f)
}

// AddToTab adds key to a client-level metadata tab attached to every event.
func (c *Client) AddToTab(tab, key string, value any) {
	c.metaData.AddToTab(tab, key, value)
}

// ClearTab removes a client-level metadata tab.
func (c *Client) ClearTab(tab string) {
	c.metaData.ClearTab(tab)
}

// MetaData returns a copy of the client-level metadata.
func (c *Client) MetaData() map[string]map[string]any {
	return c.metaData.Copy()
}

// --- Pipeline ---

// Notify reports err. A nil err is logged and ignored.
func (c *Client) Notify(ctx context.Context, err error, opts ...EventOption) {
	if err == nil {
		c.log.Warn("[notifier]: notify called without an error, nothing to report")
		return
	}
	c.NotifyEvent(ctx, c.NewEvent(ctx, err, opts...))
}

// NotifyEvent runs e through the pipeline.
func (c *Client) NotifyEvent(ctx context.Context, e *Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e == nil || e.Err == nil {
		c.log.Warn("[notifier]: notify called without an error, nothing to report")
		return
	}

	if !c.shouldNotify() {
		return
	}
	if !e.ignoreEvaluated {
		e.shouldIgnore = c.isIgnored(ErrorClass(e.Err))
		e.ignoreEvaluated = true
	}
	if e.ShouldIgnore() {
		return
	}
	c.completeEvent(e)
	if !c.runBeforeNotify(e) {
		return
	}
	if e.Err == nil {
		c.log.Warn("[notifier]: before notify filter removed the error, nothing to report")
		return
	}
	c.completeEvent(e)

	n := c.NewNotification(e)

	if c.asynchronous.Load() {
		c.worker.enqueue(ctx, n)
		return
	}
	c.deliver(ctx, n)
}

// completeEvent fills the parts of an event built without NewEvent or
// cleared by a filter.
func (c *Client) completeEvent(e *Event) {
	if e.MetaData == nil {
		e.MetaData = NewMetaData(nil)
	}
	if e.Diagnostics == nil {
		e.Diagnostics = c.diagnostics
	}
	if e.stack == nil {
		e.stack = stackOf(e.Err)
	}
	if e.stack == nil {
		e.stack = callers()
	}
}

// AutoNotify reports err with error severity when auto notify is enabled.
// It is the entry point of the panic hook and of the server integrations.
func (c *Client) AutoNotify(ctx context.Context, err error, opts ...EventOption) {
	if !c.autoNotify.Load() {
		return
	}
	c.Notify(ctx, err, append([]EventOption{WithSeverity(SeverityError)}, opts...)...)
}

// TrackUser sends a metrics ping synchronously. Failures are logged.
func (c *Client) TrackUser(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.deliver(ctx, c.NewMetrics())
}

// shouldNotify reports whether the current release stage may report.
func (c *Client) shouldNotify() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.notifyReleaseStages) == 0 || lo.Contains(c.notifyReleaseStages, c.releaseStage.Value())
}

func (c *Client) isIgnored(class string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Contains(c.ignoreClasses, class)
}

// deliver sends p on the calling goroutine within the send timeout.
// Errors and panics from the transport are logged and swallowed.
func (c *Client) deliver(ctx context.Context, p payload.Payload) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.sendTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.stats.failed.Inc(1)
			c.log.With("panic", fmt.Sprintf("%v", r), "kind", p.Kind().String()).
				Warn("[notifier]: transport panicked, payload dropped")
		}
	}()

	err := c.transport.Deliver(ctx, p)
	c.stats.latency.UpdateSince(start)
	if err != nil {
		c.stats.failed.Inc(1)
		c.log.With("error", err.Error(), "kind", p.Kind().String()).
			Warn("[notifier]: delivery failed, payload dropped")
		return
	}
	c.stats.delivered.Inc(1)
}

// Flush waits until every payload queued before the call has been attempted.
func (c *Client) Flush(ctx context.Context) error {
	return c.worker.flush(ctx)
}

// Close restores the panic hook if this client installed one, stops
// accepting queued payloads and waits for the queue to drain. Notify after
// Close drops asynchronous reports with a warning.
func (c *Client) Close(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		if c.restoreHook != nil {
			c.restoreHook()
		}
		err = c.worker.close(ctx)
	})
	if err != nil {
		return errx.Wrap(err, errx.WithCode(CodeClosed))
	}
	return nil
}

// Stats returns the delivery counters.
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// Metrics returns the go-metrics registry backing Stats, for export.
func (c *Client) Metrics() metrics.Registry {
	return c.stats.registry
}

// userID returns the configured user id or an id generated once per client.
func (c *Client) userID() string {
	if u := c.user.Value(); u.ID != "" {
		return u.ID
	}
	c.userIDOnce.Do(func() {
		c.generatedUserID = uuid.NewString()
	})
	return c.generatedUserID
}

// redact applies the configured filters to tabs.
func (c *Client) redact(tabs map[string]map[string]any) map[string]map[string]any {
	c.mu.RLock()
	filters := c.filters
	c.mu.RUnlock()
	return mask.Filter(tabs, filters)
}
