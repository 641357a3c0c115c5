// Package payload defines the wire structures delivered to an error collector.
//
// Field names follow the Bugsnag notifier API (payload version 2), so the
// default HTTP transport can post them to notify.bugsnag.com unchanged.
// Values are built by the notifier and must not be mutated afterwards.
package payload

import (
	"encoding/json"

	"github.com/code19m/errx"
)

// Version is the payload version reported in every event.
const Version = "2"

// Kind tells transports which endpoint or topic a payload belongs to.
type Kind int

const (
	KindNotification Kind = iota
	KindMetrics
)

func (k Kind) String() string {
	switch k {
	case KindNotification:
		return "notification"
	case KindMetrics:
		return "metrics"
	default:
		return "unknown"
	}
}

// Payload is anything a transport can deliver.
type Payload interface {
	Kind() Kind
}

// Encode marshals p to JSON.
func Encode(p Payload) ([]byte, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"kind": p.Kind().String()}))
	}
	return b, nil
}

// Notifier identifies the reporting library.
type Notifier struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Notification carries one or more error events.
type Notification struct {
	APIKey   string   `json:"apiKey"`
	Notifier Notifier `json:"notifier"`
	Events   []Event  `json:"events"`
}

func (*Notification) Kind() Kind { return KindNotification }

// Metrics is the lightweight usage ping sent by TrackUser.
type Metrics struct {
	APIKey   string   `json:"apiKey"`
	Notifier Notifier `json:"notifier"`
	User     User     `json:"user"`
	App      App      `json:"app"`
	Device   Device   `json:"device"`
}

func (*Metrics) Kind() Kind { return KindMetrics }

// Event is one reported error.
type Event struct {
	PayloadVersion string                    `json:"payloadVersion"`
	Exceptions     []Exception               `json:"exceptions"`
	Threads        []Thread                  `json:"threads,omitempty"`
	Context        string                    `json:"context,omitempty"`
	Severity       string                    `json:"severity"`
	User           *User                     `json:"user,omitempty"`
	App            App                       `json:"app"`
	Device         Device                    `json:"device"`
	MetaData       map[string]map[string]any `json:"metaData,omitempty"`
}

// Exception is one level of a wrapped error chain, outermost first.
type Exception struct {
	ErrorClass string  `json:"errorClass"`
	Message    string  `json:"message"`
	Stacktrace []Frame `json:"stacktrace"`
}

// Frame is a single stack frame.
type Frame struct {
	File       string `json:"file"`
	LineNumber int    `json:"lineNumber"`
	Method     string `json:"method"`
	InProject  bool   `json:"inProject,omitempty"`
}

// Thread is the stack of one goroutine other than the reporting one.
type Thread struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Stacktrace []Frame `json:"stacktrace"`
}

// User identifies the end user affected by an event.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// App describes the reporting application.
type App struct {
	Name         string `json:"name,omitempty"`
	Version      string `json:"version,omitempty"`
	ReleaseStage string `json:"releaseStage,omitempty"`
}

// Device describes the host the application runs on.
type Device struct {
	Hostname        string            `json:"hostname,omitempty"`
	OSName          string            `json:"osName,omitempty"`
	OSVersion       string            `json:"osVersion,omitempty"`
	Locale          string            `json:"locale,omitempty"`
	RuntimeVersions map[string]string `json:"runtimeVersions,omitempty"`
}
