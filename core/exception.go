package core

import (
	"fmt"
	"runtime"
	"strings"
)

const maxTraceDepth = 32

// Exception is an uncaught panic normalized for logging
type Exception struct {
	Message string
	File    string
	Line    int
	Trace   []string
	Value   any
}

func (e *Exception) Error() string {
	return e.Message
}

// exceptionFromPanic builds an Exception from a recovered value. It must be
// called from the deferred function that recovered, so the panicking frame
// is still on the stack.
func exceptionFromPanic(rec any) *Exception {
	exc := &Exception{
		Message: panicMessage(rec),
		File:    "unknown",
		Value:   rec,
	}

	frames := panicFrames()
	if len(frames) > 0 {
		exc.File = frames[0].File
		exc.Line = frames[0].Line
	}
	exc.Trace = formatTrace(frames)
	return exc
}

func panicMessage(rec any) string {
	switch v := rec.(type) {
	case error:
		return v.Error()
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// panicFrames returns the frames from the panic site outwards, skipping the
// runtime's own panic machinery.
func panicFrames() []runtime.Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var all []runtime.Frame
	for {
		frame, more := frames.Next()
		all = append(all, frame)
		if !more {
			break
		}
	}

	start := 0
	for i, frame := range all {
		if frame.Function == "runtime.gopanic" {
			start = i + 1
			break
		}
	}

	result := make([]runtime.Frame, 0, maxTraceDepth)
	for _, frame := range all[start:] {
		if strings.HasPrefix(frame.Function, "runtime.") {
			continue
		}
		result = append(result, frame)
		if len(result) == maxTraceDepth {
			break
		}
	}
	return result
}

func formatTrace(frames []runtime.Frame) []string {
	trace := make([]string, 0, len(frames))
	for i, frame := range frames {
		trace = append(trace, fmt.Sprintf("#%d %s(%d): %s()", i, frame.File, frame.Line, frame.Function))
	}
	return trace
}

// callerLocation returns the file and line skip frames above its caller.
func callerLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "unknown", 0
	}
	return file, line
}
