package notifier

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/rise-and-shine/errnotify/payload"
)

const (
	maxStackDepth  = 64
	maxThreadsDump = 1 << 20
	notifierPkg    = "github.com/rise-and-shine/errnotify/notifier."
)

// callersProvider is implemented by errors that carry the stack of their origin.
type callersProvider interface {
	Callers() []uintptr
}

// stackOf returns the stack recorded by err or one of the errors it wraps,
// or nil when none records one.
func stackOf(err error) []uintptr {
	var cp callersProvider
	if errors.As(err, &cp) {
		return cp.Callers()
	}
	return nil
}

// callers captures the current stack without the leading frames of the
// runtime and of this package. When called while panicking, the frames up to
// and including runtime.gopanic are dropped so the stack starts where the
// panic was raised.
func callers() []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(1, pcs)
	pcs = pcs[:n]

	for i, pc := range pcs {
		if funcName(pc) == "runtime.gopanic" {
			pcs = pcs[i+1:]
			break
		}
	}

	skip := 0
	for skip < len(pcs) && isInternalFrame(funcName(pcs[skip])) {
		skip++
	}
	if skip == len(pcs) {
		return pcs
	}
	return pcs[skip:]
}

func funcName(pc uintptr) string {
	f := runtime.FuncForPC(pc - 1)
	if f == nil {
		return ""
	}
	return f.Name()
}

func isInternalFrame(function string) bool {
	return strings.HasPrefix(function, "runtime.") || strings.HasPrefix(function, notifierPkg)
}

// buildFrames resolves pcs into payload frames.
func buildFrames(pcs []uintptr, projectPackages []string) []payload.Frame {
	if len(pcs) == 0 {
		return []payload.Frame{}
	}

	out := make([]payload.Frame, 0, len(pcs))
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			out = append(out, payload.Frame{
				File:       frame.File,
				LineNumber: frame.Line,
				Method:     frame.Function,
				InProject:  inProject(frame.Function, projectPackages),
			})
		}
		if !more {
			break
		}
	}
	return out
}

func inProject(function string, projectPackages []string) bool {
	return lo.SomeBy(projectPackages, func(p string) bool {
		return p != "" && strings.HasPrefix(function, p)
	})
}

// goroutineThreads dumps every goroutine and parses the text into threads.
func goroutineThreads(projectPackages []string) []payload.Thread {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= maxThreadsDump {
			buf = buf[:n]
			break
		}
		buf = make([]byte, len(buf)*2)
	}
	return parseGoroutines(buf, projectPackages)
}

// parseGoroutines parses the output of runtime.Stack(buf, true):
//
//	goroutine 1 [running]:
//	main.main()
//		/src/main.go:12 +0x1d
func parseGoroutines(dump []byte, projectPackages []string) []payload.Thread {
	var threads []payload.Thread
	for _, block := range bytes.Split(dump, []byte("\n\n")) {
		lines := strings.Split(strings.TrimSpace(string(block)), "\n")
		if len(lines) == 0 || !strings.HasPrefix(lines[0], "goroutine ") {
			continue
		}

		header := strings.TrimSuffix(lines[0], ":")
		fields := strings.Fields(header)
		if len(fields) < 2 {
			continue
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}

		thread := payload.Thread{ID: id, Name: header, Stacktrace: []payload.Frame{}}
		for i := 1; i+1 < len(lines); i += 2 {
			function := strings.TrimPrefix(lines[i], "created by ")
			if idx := strings.Index(function, " in goroutine "); idx > 0 {
				function = function[:idx]
			}
			if idx := strings.LastIndex(function, "("); idx > 0 {
				function = function[:idx]
			}
			file, line := parseFileLine(lines[i+1])
			thread.Stacktrace = append(thread.Stacktrace, payload.Frame{
				File:       file,
				LineNumber: line,
				Method:     function,
				InProject:  inProject(function, projectPackages),
			})
		}
		threads = append(threads, thread)
	}
	return threads
}

// parseFileLine splits "\t/src/main.go:12 +0x1d" into its file and line.
func parseFileLine(s string) (string, int) {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, " +0x"); idx != -1 {
		s = s[:idx]
	}
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return s, 0
	}
	line, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return s, 0
	}
	return s[:idx], line
}
