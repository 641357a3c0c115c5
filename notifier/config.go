package notifier

import (
	"strings"
	"time"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"

	"github.com/rise-and-shine/errnotify/val"
)

// QueuePolicy decides what the delivery worker does when its queue is full.
type QueuePolicy string

const (
	// QueueUnbounded never rejects an item; Size is ignored.
	QueueUnbounded QueuePolicy = "unbounded"
	// QueueBlock makes producers wait until there is space.
	QueueBlock QueuePolicy = "block"
	// QueueDropNewest discards the item being enqueued.
	QueueDropNewest QueuePolicy = "drop_newest"
	// QueueDropOldest evicts the item at the head of the queue.
	QueueDropOldest QueuePolicy = "drop_oldest"
)

// Config is the construction input of a Client.
//
// String fields for the release stage, versions and context provide initial
// values only; the first call to the matching setter locks them.
type Config struct {
	// APIKey identifies the project at the collector. Required.
	APIKey string `yaml:"api_key" validate:"required" mask:"true"`

	// ReleaseStage is the deployment stage reported with every event.
	ReleaseStage string `yaml:"release_stage" default:"production"`

	// NotifyReleaseStages limits reporting to these stages. Empty means always report.
	NotifyReleaseStages []string `yaml:"notify_release_stages"`

	// IgnoreClasses lists error classes that are never reported.
	IgnoreClasses []string `yaml:"ignore_classes"`

	// Synchronous delivers on the calling goroutine instead of the worker.
	Synchronous bool `yaml:"synchronous"`

	// DisableAutoNotify turns off reporting of recovered panics.
	DisableAutoNotify bool `yaml:"disable_auto_notify"`

	Endpoint string `yaml:"endpoint" default:"notify.bugsnag.com"`
	Insecure bool   `yaml:"insecure"`
	Proxy    string `yaml:"proxy"    mask:"true"`

	// Filters lists metadata key fragments whose values are redacted.
	Filters []string `yaml:"filters" default:"[\"password\"]"`

	// ProjectPackages lists import path prefixes whose frames are marked in-project.
	ProjectPackages []string `yaml:"project_packages"`

	// SendThreads attaches the stacks of all goroutines to every event.
	SendThreads bool `yaml:"send_threads"`

	AppVersion string `yaml:"app_version"`
	OSVersion  string `yaml:"os_version"`
	Context    string `yaml:"context"`

	NotifierName    string `yaml:"notifier_name"    default:"Go Notifier"`
	NotifierVersion string `yaml:"notifier_version" default:"1.0.0"`
	NotifierURL     string `yaml:"notifier_url"     default:"https://github.com/rise-and-shine/errnotify"`

	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration `yaml:"send_timeout" default:"10s" validate:"gt=0"`

	Queue QueueConfig `yaml:"queue"`
}

// QueueConfig configures the asynchronous delivery worker.
type QueueConfig struct {
	Policy QueuePolicy `yaml:"policy" default:"unbounded" validate:"oneof=unbounded block drop_newest drop_oldest"`
	Size   int         `yaml:"size"   default:"1000"      validate:"gte=1"`
}

// prepare applies defaults and validates cfg in place.
func (cfg *Config) prepare() error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errx.New("[notifier]: api key is required", errx.WithCode(CodeMissingAPIKey))
	}

	if err := defaults.Set(cfg); err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidConfig))
	}

	fields, err := val.Struct(cfg)
	if err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidConfig))
	}
	if len(fields) > 0 {
		return errx.New(
			"[notifier]: invalid config",
			errx.WithCode(CodeInvalidConfig),
			errx.WithFields(fields),
		)
	}

	return nil
}
