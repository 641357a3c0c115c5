package notifier

import (
	"context"
	"fmt"
	"reflect"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/errnotify/diagnostics"
	"github.com/rise-and-shine/errnotify/meta"
	"github.com/rise-and-shine/errnotify/observability/tracing"
	"github.com/rise-and-shine/errnotify/payload"
)

const (
	tabError   = "error"
	tabRequest = "request"

	panicClass = "panic"

	errxClassPrefix = "errx."
)

// Event is one captured error on its way to the collector.
//
// Filters registered with AddBeforeNotify receive the event before it is
// serialized and may change Severity, MetaData, Context and User.
type Event struct {
	Err         error
	Severity    Severity
	MetaData    *MetaData
	Context     string
	User        *payload.User
	Diagnostics *diagnostics.Snapshot

	stack           []uintptr
	shouldIgnore    bool
	ignoreEvaluated bool
}

// ShouldIgnore reports whether the error class is in the ignore list that
// was configured when the event was created. Events built without NewEvent
// are checked against the current list when they enter NotifyEvent.
func (e *Event) ShouldIgnore() bool {
	return e.shouldIgnore
}

// ErrorClass returns the class of the wrapped error.
func (e *Event) ErrorClass() string {
	return ErrorClass(e.Err)
}

// Stack returns the program counters captured for the event.
func (e *Event) Stack() []uintptr {
	return e.stack
}

// EventOption customizes an event created by Notify or NewEvent.
type EventOption func(*Event)

// WithSeverity sets the event severity. Unknown values are reported as error.
func WithSeverity(s Severity) EventOption {
	return func(e *Event) {
		e.Severity = s
	}
}

// WithMetaData merges tabs into the event metadata, overriding client tabs.
func WithMetaData(tabs map[string]map[string]any) EventOption {
	return func(e *Event) {
		if e.MetaData == nil {
			e.MetaData = NewMetaData(nil)
		}
		e.MetaData.Merge(tabs)
	}
}

// WithEventContext overrides the client context for this event.
func WithEventContext(context string) EventOption {
	return func(e *Event) {
		e.Context = context
	}
}

// WithUser overrides the client user for this event.
func WithUser(id, email, name string) EventOption {
	return func(e *Event) {
		e.User = &payload.User{ID: id, Email: email, Name: name}
	}
}

// errorClasser lets an error choose its own class.
type errorClasser interface {
	ErrorClass() string
}

// ErrorClass returns the identity used for grouping and for the ignore list.
//
// In order of precedence: the result of an ErrorClass() string method, the
// code of an errx error, "errx." followed by the errx type for errx errors
// without a code (for example "errx.T_NotFound"), and the package-qualified
// type name with pointers stripped (for example "io/fs.PathError").
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	if c, ok := err.(errorClasser); ok {
		return c.ErrorClass()
	}
	if e, ok := err.(errx.ErrorX); ok {
		if e.Code() != errx.DefaultCode {
			return e.Code()
		}
		return errxClassPrefix + e.Type().String()
	}

	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// PanicError carries a recovered panic value that is not an error.
type PanicError struct {
	Value any
	stack []uintptr
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) ErrorClass() string {
	return panicClass
}

// Callers returns the stack captured at recovery.
func (e *PanicError) Callers() []uintptr {
	return e.stack
}

// NewPanicError converts a value returned by recover into an error. Errors
// are returned unchanged; other values become a *PanicError whose stack
// starts at the panicking function.
func NewPanicError(r any) error {
	return panicError(r)
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r, stack: callers()}
}

// NewEvent builds an event for err without sending it. The client metadata
// is copied, errx details and request metadata from ctx are added, and the
// ignore decision is taken from the current ignore list.
func (c *Client) NewEvent(ctx context.Context, err error, opts ...EventOption) *Event {
	e := &Event{
		Err:         err,
		Severity:    SeverityError,
		MetaData:    NewMetaData(c.metaData.Copy()),
		Diagnostics: c.diagnostics,
	}

	if err == nil {
		return e
	}

	e.stack = stackOf(err)
	if e.stack == nil {
		e.stack = callers()
	}

	addErrorTab(e.MetaData, err)
	addRequestTab(ctx, e.MetaData)

	e.shouldIgnore = c.isIgnored(ErrorClass(err))
	e.ignoreEvaluated = true

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func addErrorTab(md *MetaData, err error) {
	e, ok := err.(errx.ErrorX)
	if !ok {
		return
	}
	md.AddToTab(tabError, "code", e.Code())
	md.AddToTab(tabError, "type", e.Type().String())
	md.AddToTab(tabError, "trace", e.Trace())
	if details := e.Details(); len(details) > 0 {
		md.AddToTab(tabError, "details", map[string]any(details))
	}
	if fields := e.Fields(); len(fields) > 0 {
		md.AddToTab(tabError, "fields", fields)
	}
}

func addRequestTab(ctx context.Context, md *MetaData) {
	if ctx == nil {
		return
	}
	for k, v := range meta.ExtractMetaFromContext(ctx) {
		md.AddToTab(tabRequest, string(k), v)
	}
	if traceID := tracing.TraceID(ctx); traceID != "" {
		md.AddToTab(tabRequest, string(meta.TraceID), traceID)
	}
}
