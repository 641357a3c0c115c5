// Package diagnostics captures the facts about the host process that are
// attached to every error report.
package diagnostics

import (
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rise-and-shine/errnotify/meta"
)

// Snapshot is an immutable fact sheet about the running process.
// It is captured once per client and shared by every event.
type Snapshot struct {
	Hostname   string
	OSName     string
	OSArch     string
	GoVersion  string
	NumCPU     int
	PID        int
	AppName    string
	AppVersion string
	Locale     string
	StartedAt  time.Time
}

// Provider captures a Snapshot. Implementations must return the same
// snapshot on every call.
type Provider interface {
	Capture() *Snapshot
}

type provider struct {
	once     sync.Once
	snapshot *Snapshot
}

// NewProvider returns a Provider reading the snapshot from the runtime, the
// operating system and the service info registered with meta.SetServiceInfo.
func NewProvider() Provider {
	return &provider{}
}

func (p *provider) Capture() *Snapshot {
	p.once.Do(func() {
		p.snapshot = capture()
	})
	return p.snapshot
}

func capture() *Snapshot {
	hostname, _ := os.Hostname()

	return &Snapshot{
		Hostname:   hostname,
		OSName:     runtime.GOOS,
		OSArch:     runtime.GOARCH,
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
		PID:        os.Getpid(),
		AppName:    meta.ServiceName(),
		AppVersion: meta.ServiceVersion(),
		Locale:     locale(),
		StartedAt:  time.Now().UTC(),
	}
}

// locale reads the POSIX locale variables in precedence order and strips the
// encoding suffix, e.g. "en_US.UTF-8" becomes "en_US".
func locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if idx := strings.IndexAny(v, ".@"); idx != -1 {
			v = v[:idx]
		}
		return v
	}
	return ""
}

// Static returns a Provider that always captures s. Useful for tests and for
// hosts that collect their own facts.
func Static(s *Snapshot) Provider {
	return staticProvider{s}
}

type staticProvider struct {
	s *Snapshot
}

func (p staticProvider) Capture() *Snapshot {
	return p.s
}
