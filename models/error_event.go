package models

import "time"

// Severity is the level a runtime condition was raised with.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityParse
	SeverityNotice
	SeverityCoreError
	SeverityCoreWarning
	SeverityCompileError
	SeverityCompileWarning
	SeverityUserError
	SeverityUserWarning
	SeverityUserNotice
	SeverityStrict
	SeverityRecoverableError
	SeverityDeprecated
	SeverityUserDeprecated
)

var severityNames = map[Severity]string{
	SeverityError:            "E_ERROR",
	SeverityWarning:          "E_WARNING",
	SeverityParse:            "E_PARSE",
	SeverityNotice:           "E_NOTICE",
	SeverityCoreError:        "E_CORE_ERROR",
	SeverityCoreWarning:      "E_CORE_WARNING",
	SeverityCompileError:     "E_COMPILE_ERROR",
	SeverityCompileWarning:   "E_COMPILE_WARNING",
	SeverityUserError:        "E_USER_ERROR",
	SeverityUserWarning:      "E_USER_WARNING",
	SeverityUserNotice:       "E_USER_NOTICE",
	SeverityStrict:           "E_STRICT",
	SeverityRecoverableError: "E_RECOVERABLE_ERROR",
	SeverityDeprecated:       "E_DEPRECATED",
	SeverityUserDeprecated:   "E_USER_DEPRECATED",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "E_UNKNOWN"
}

// IsFatal reports whether the severity halts normal execution.
func (s Severity) IsFatal() bool {
	switch s {
	case SeverityError, SeverityParse, SeverityCoreError, SeverityCompileError, SeverityUserError:
		return true
	default:
		return false
	}
}

// Kind classifies an ErrorEvent for logging and response policy
type Kind int

const (
	KindNotice Kind = iota
	KindWarning
	KindRecoverableError
	KindException
	KindFatalError
)

// Label is the text written in front of the message in a log line.
func (k Kind) Label() string {
	switch k {
	case KindNotice:
		return "Notice"
	case KindWarning:
		return "Warning"
	case KindRecoverableError:
		return "Recoverable error"
	case KindException:
		return "Exception"
	case KindFatalError:
		return "Fatal error"
	default:
		return "Error"
	}
}

func (k Kind) String() string {
	return k.Label()
}

// HasTrace reports whether log lines of this kind carry a stack trace.
func (k Kind) HasTrace() bool {
	return k == KindException || k == KindFatalError
}

// KindForSeverity derives the event kind from a raised severity
func KindForSeverity(s Severity) Kind {
	if s.IsFatal() {
		return KindFatalError
	}
	switch s {
	case SeverityWarning, SeverityCoreWarning, SeverityCompileWarning, SeverityUserWarning:
		return KindWarning
	case SeverityRecoverableError:
		return KindRecoverableError
	default:
		return KindNotice
	}
}

// ErrorEvent is one normalized runtime error, exception or fatal condition.
// It is built by the interceptor, handed to the sink once and then dropped.
type ErrorEvent struct {
	Kind       Kind      `json:"kind"`
	Severity   Severity  `json:"severity"`
	Message    string    `json:"message"`
	File       string    `json:"file"`
	Line       int       `json:"line"`
	Timestamp  time.Time `json:"timestamp"`
	StackTrace []string  `json:"stack_trace,omitempty"`
}
