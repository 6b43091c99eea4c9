package core

import (
	"errorshield/models"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

const interceptorKey = "errorshield.interceptor"

// ShieldConfig configures the Shield middleware.
type ShieldConfig struct {
	// Config is read once per event. Errors fall back to Defaults.
	Config   ConfigProvider
	Defaults models.LogConfig

	Sink     *LogSink
	Scrubber *Scrubber
	Gate     *RuntimeGate

	// HomeURL is where suppressed front-end failures are redirected.
	HomeURL string
	// IsAdmin classifies a request as administrative.
	IsAdmin func(r *http.Request) bool
	// AdminFailure renders the response of an administrative request whose
	// handler panicked.
	AdminFailure func(c *gin.Context, exc *Exception)

	Logger logrus.FieldLogger
}

// fatalHalt unwinds a handler after a fatal condition was recorded. It is
// not an exception and is never logged as one.
type fatalHalt struct {
	message string
}

// AdminPathMatcher returns an IsAdmin func matching requests under prefix.
func AdminPathMatcher(prefix string) func(r *http.Request) bool {
	prefix = "/" + strings.Trim(prefix, "/")
	return func(r *http.Request) bool {
		path := r.URL.Path
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

func defaultAdminFailure(c *gin.Context, _ *Exception) {
	c.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// Shield returns the middleware that owns the error lifecycle of a request:
// it buffers the response, turns panics into exceptions, runs the
// termination check and finally writes the scrubbed body once.
// It must be the first middleware that can see handler output.
func Shield(cfg ShieldConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.Sink == nil {
		cfg.Sink = NewLogSink(afero.NewOsFs(), cfg.Logger)
	}
	if cfg.Scrubber == nil {
		cfg.Scrubber = NewScrubber()
	}
	if cfg.HomeURL == "" {
		cfg.HomeURL = "/"
	}
	if cfg.IsAdmin == nil {
		cfg.IsAdmin = AdminPathMatcher("/admin")
	}
	if cfg.AdminFailure == nil {
		cfg.AdminFailure = defaultAdminFailure
	}

	return func(c *gin.Context) {
		if cfg.Gate != nil {
			cfg.Gate.Apply()
		}

		original := c.Writer
		bw := newBufferedWriter(original)
		c.Writer = bw

		logger := cfg.Logger
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			logger = logger.WithField("request_id", requestID)
		}

		ic := &Interceptor{
			config:   cfg.Config,
			defaults: cfg.Defaults,
			sink:     cfg.Sink,
			response: bw,
			homeURL:  cfg.HomeURL,
			admin:    cfg.IsAdmin(c.Request),
			now:      time.Now,
			logger:   logger,
		}
		c.Set(interceptorKey, ic)

		defer func() {
			if rec := recover(); rec != nil {
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					bw.discard()
					c.Writer = original
					panic(rec)
				}
				if _, halted := rec.(fatalHalt); !halted {
					exc := exceptionFromPanic(rec)
					ic.OnUncaughtException(exc)
					if ic.admin {
						bw.discard()
						cfg.AdminFailure(c, exc)
					}
				}
				c.Abort()
			}

			ic.OnProcessTermination()
			if ic.redirected {
				c.Abort()
			}

			bw.commit(cfg.Scrubber.Scrub)
			c.Writer = original
		}()

		c.Next()
	}
}

// FromContext returns the interceptor of the current request, or nil when
// the request is not shielded.
func FromContext(c *gin.Context) *Interceptor {
	v, ok := c.Get(interceptorKey)
	if !ok {
		return nil
	}
	ic, _ := v.(*Interceptor)
	return ic
}

// Trigger raises a condition from handler code, like the runtime would.
// The file and line are those of the caller. Fatal severities stop the
// handler.
func Trigger(c *gin.Context, severity models.Severity, message string) bool {
	file, line := callerLocation(1)
	if severity.IsFatal() {
		halt(c, severity, message, file, line)
	}
	return trigger(c, severity, message, file, line)
}

// Notice raises a user notice.
func Notice(c *gin.Context, message string) bool {
	file, line := callerLocation(1)
	return trigger(c, models.SeverityUserNotice, message, file, line)
}

// Warn raises a user warning.
func Warn(c *gin.Context, message string) bool {
	file, line := callerLocation(1)
	return trigger(c, models.SeverityUserWarning, message, file, line)
}

// Deprecated raises a user deprecation notice.
func Deprecated(c *gin.Context, message string) bool {
	file, line := callerLocation(1)
	return trigger(c, models.SeverityUserDeprecated, message, file, line)
}

// Fatal records a user fatal error and stops the handler. The shield logs it
// when the request terminates.
func Fatal(c *gin.Context, message string) {
	file, line := callerLocation(1)
	halt(c, models.SeverityUserError, message, file, line)
}

func trigger(c *gin.Context, severity models.Severity, message, file string, line int) bool {
	ic := FromContext(c)
	if ic == nil {
		return false
	}
	return ic.RecordError(severity, message, file, line)
}

// halt records a fatal condition and unwinds the handler. Without a shield
// the panic carries the message so the host's own recovery can report it.
func halt(c *gin.Context, severity models.Severity, message, file string, line int) {
	ic := FromContext(c)
	if ic == nil {
		panic(fmt.Sprintf("%s: %s in %s at line %d", severity, message, file, line))
	}
	ic.RecordError(severity, message, file, line)
	panic(fatalHalt{message: message})
}
