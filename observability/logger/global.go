package logger

import "sync/atomic"

//nolint:gochecknoglobals // process-wide logger used when no logger is injected
var (
	global    atomic.Pointer[Logger]
	globalSet atomic.Bool
)

// SetGlobal builds the process-wide logger from cfg. Notifier clients created
// without WithLogger, cfgloader and the examples write through it. It panics
// when cfg is invalid or when a global logger was already set.
func SetGlobal(cfg Config) {
	l, err := New(cfg)
	if err != nil {
		panic("[logger]: failed to initialize global logger: " + err.Error())
	}
	if !globalSet.CompareAndSwap(false, true) {
		panic("[logger]: SetGlobal can only be called once")
	}
	global.Store(&l)
}

// Warnx logs err at warn level through the global logger.
func Warnx(err error) {
	getGlobal().Warnx(err)
}

// Errorx logs err at error level through the global logger.
func Errorx(err error) {
	getGlobal().Errorx(err)
}

// With returns the global logger with keysAndValues attached.
func With(keysAndValues ...any) Logger {
	return getGlobal().With(keysAndValues...)
}

// Named returns the global logger scoped to name.
func Named(name string) Logger {
	return getGlobal().Named(name)
}

// Sync flushes the global logger.
func Sync() error {
	return getGlobal().Sync()
}

// getGlobal returns the global logger, creating a JSON debug logger on first
// use when SetGlobal was never called.
func getGlobal() Logger {
	if l := global.Load(); l != nil {
		return *l
	}
	l, err := New(Config{Level: levelDebug, Encoding: encJSON})
	if err != nil {
		panic("[logger]: failed to initialize default logger: " + err.Error())
	}
	global.CompareAndSwap(nil, &l)
	return *global.Load()
}
