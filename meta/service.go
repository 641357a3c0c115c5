package meta

import "sync/atomic"

type serviceInfo struct {
	name    string
	version string
}

var service atomic.Pointer[serviceInfo] //nolint:gochecknoglobals // process-wide identity read by diagnostics and transports

// SetServiceInfo registers the name and version of the running service.
// Only the first call takes effect; the diagnostics snapshot reports the
// values as the app name and version, and the kafka transport uses the name
// as its client ID.
func SetServiceInfo(name, version string) {
	service.CompareAndSwap(nil, &serviceInfo{name: name, version: version})
}

// ServiceName returns the registered service name or "".
func ServiceName() string {
	if s := service.Load(); s != nil {
		return s.name
	}
	return ""
}

// ServiceVersion returns the registered service version or "".
func ServiceVersion() string {
	if s := service.Load(); s != nil {
		return s.version
	}
	return ""
}
