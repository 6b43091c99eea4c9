package core

import (
	"errorshield/models"
	"time"

	"github.com/sirupsen/logrus"
)

// ConfigProvider supplies the current log configuration. It is consulted
// for every event since the configuration may change between requests.
type ConfigProvider interface {
	LogConfig() (models.LogConfig, error)
}

// ConfigProviderFunc adapts a function to ConfigProvider.
type ConfigProviderFunc func() (models.LogConfig, error)

func (f ConfigProviderFunc) LogConfig() (models.LogConfig, error) {
	return f()
}

// StaticConfig returns a provider that always yields cfg.
func StaticConfig(cfg models.LogConfig) ConfigProvider {
	return ConfigProviderFunc(func() (models.LogConfig, error) {
		return cfg, nil
	})
}

// LastError is the most recent low-level error of a request, recorded
// before any handler sees it.
type LastError struct {
	Severity models.Severity
	Message  string
	File     string
	Line     int
}

// responseControl is the part of the buffered response the interceptor
// needs to abandon output.
type responseControl interface {
	discard()
	redirect(location string)
	failIfEmpty()
}

// Interceptor turns the errors of one request into log entries and decides
// whether the response is replaced by a redirect. One instance per request.
type Interceptor struct {
	config   ConfigProvider
	defaults models.LogConfig
	sink     *LogSink
	response responseControl
	homeURL  string
	admin    bool
	now      func() time.Time
	logger   logrus.FieldLogger

	lastError  *LastError
	exception  *Exception
	redirected bool
}

// IsAdmin reports whether the request belongs to the administrative interface.
func (i *Interceptor) IsAdmin() bool {
	return i.admin
}

// Redirected reports whether the response was replaced by a redirect home.
func (i *Interceptor) Redirected() bool {
	return i.redirected
}

// LastError returns the last recorded low-level error, or nil.
func (i *Interceptor) LastError() *LastError {
	return i.lastError
}

// RecordError is the runtime's own error path: the last-error register is
// updated first, then non-fatal conditions go to OnRecoverableCondition.
// Fatal severities are left for OnProcessTermination.
func (i *Interceptor) RecordError(severity models.Severity, message, file string, line int) bool {
	i.lastError = &LastError{
		Severity: severity,
		Message:  message,
		File:     file,
		Line:     line,
	}
	if severity.IsFatal() {
		return true
	}
	return i.OnRecoverableCondition(severity, message, file, line)
}

// OnRecoverableCondition logs a notice, warning or recoverable error. It
// always returns true: the condition is handled and nothing else may print it.
func (i *Interceptor) OnRecoverableCondition(severity models.Severity, message, file string, line int) bool {
	i.log(models.ErrorEvent{
		Kind:      models.KindForSeverity(severity),
		Severity:  severity,
		Message:   message,
		File:      file,
		Line:      line,
		Timestamp: i.now(),
	})
	return true
}

// OnUncaughtException logs the exception. Front-end responses are replaced by
// a redirect home; administrative requests get control back.
func (i *Interceptor) OnUncaughtException(exc *Exception) {
	i.exception = exc
	i.log(models.ErrorEvent{
		Kind:       models.KindException,
		Message:    exc.Message,
		File:       exc.File,
		Line:       exc.Line,
		Timestamp:  i.now(),
		StackTrace: exc.Trace,
	})

	i.logger.WithFields(logrus.Fields{
		"file":  exc.File,
		"line":  exc.Line,
		"admin": i.admin,
	}).Errorf("uncaught exception: %s", exc.Message)

	if !i.admin {
		i.redirectHome()
	}
}

// OnProcessTermination runs at the end of every request. A fatal last error
// is logged; on the front-end buffered output is dropped and replaced by a
// redirect home.
func (i *Interceptor) OnProcessTermination() {
	last := i.lastError
	if last == nil || !last.Severity.IsFatal() {
		return
	}

	i.log(models.ErrorEvent{
		Kind:      models.KindFatalError,
		Severity:  last.Severity,
		Message:   last.Message,
		File:      last.File,
		Line:      last.Line,
		Timestamp: i.now(),
	})

	i.logger.WithFields(logrus.Fields{
		"severity": last.Severity.String(),
		"file":     last.File,
		"line":     last.Line,
		"admin":    i.admin,
	}).Errorf("fatal error: %s", last.Message)

	if i.admin {
		i.response.failIfEmpty()
		return
	}
	i.redirectHome()
}

func (i *Interceptor) redirectHome() {
	if i.redirected {
		return
	}
	i.redirected = true
	i.response.discard()
	i.response.redirect(i.homeURL)
}

// log forwards an event to the sink using a fresh configuration snapshot.
func (i *Interceptor) log(event models.ErrorEvent) {
	if i.sink == nil {
		return
	}
	i.sink.Write(event, i.snapshot())
}

func (i *Interceptor) snapshot() models.LogConfig {
	if i.config == nil {
		return i.defaults
	}
	cfg, err := i.config.LogConfig()
	if err != nil {
		i.logger.WithError(err).Debug("log configuration unavailable, using defaults")
		return i.defaults
	}
	return cfg
}
