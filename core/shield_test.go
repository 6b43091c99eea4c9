package core

import (
	"errorshield/models"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type shieldHarness struct {
	fs     afero.Fs
	engine *gin.Engine
	dir    string
}

func newShieldHarness(t *testing.T, mutate func(cfg *ShieldConfig)) *shieldHarness {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	fs := afero.NewMemMapFs()
	cfg := ShieldConfig{
		Config:  StaticConfig(models.LogConfig{LogErrors: true, LogLocation: "/logs/"}),
		Sink:    NewLogSink(fs, logger),
		HomeURL: "/",
		IsAdmin: AdminPathMatcher("/admin"),
		Logger:  logger,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	engine := gin.New()
	engine.Use(Shield(cfg))
	return &shieldHarness{fs: fs, engine: engine, dir: "/logs"}
}

func (h *shieldHarness) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.engine.ServeHTTP(w, req)
	return w
}

// logged returns the concatenated content of every daily file in dir.
func (h *shieldHarness) logged(t *testing.T, dir string) string {
	t.Helper()
	files, err := ListRecentLogFiles(h.fs, dir, 10)
	if err != nil {
		t.Fatalf("ListRecentLogFiles: %v", err)
	}
	var b strings.Builder
	for _, f := range files {
		data, err := ReadLogFile(h.fs, dir, f.Name)
		if err != nil {
			t.Fatalf("ReadLogFile: %v", err)
		}
		b.Write(data)
	}
	return b.String()
}

type nopResponse struct {
	discarded bool
	location  string
	failed    bool
}

func (r *nopResponse) discard()                 { r.discarded = true }
func (r *nopResponse) redirect(location string) { r.location = location }
func (r *nopResponse) failIfEmpty()             { r.failed = true }

func TestInterceptor_RecoverableConditionAlwaysHandled(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	severities := []models.Severity{
		models.SeverityWarning,
		models.SeverityNotice,
		models.SeverityCoreWarning,
		models.SeverityCompileWarning,
		models.SeverityUserWarning,
		models.SeverityUserNotice,
		models.SeverityStrict,
		models.SeverityRecoverableError,
		models.SeverityDeprecated,
		models.SeverityUserDeprecated,
	}

	for _, enabled := range []bool{true, false} {
		fs := afero.NewMemMapFs()
		ic := &Interceptor{
			config:   StaticConfig(models.LogConfig{LogErrors: enabled, LogLocation: "/logs/"}),
			sink:     NewLogSink(fs, logger),
			response: &nopResponse{},
			now:      time.Now,
			logger:   logger,
		}
		for _, sev := range severities {
			if !ic.OnRecoverableCondition(sev, "m", "f.go", 1) {
				t.Fatalf("OnRecoverableCondition(%s) returned false", sev)
			}
		}
	}
}

func TestInterceptor_RecordErrorUpdatesLastErrorFirst(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	ic := &Interceptor{
		config:   StaticConfig(models.LogConfig{LogErrors: false}),
		response: &nopResponse{},
		now:      time.Now,
		logger:   logger,
	}

	if !ic.RecordError(models.SeverityNotice, "undefined index", "a.go", 4) {
		t.Fatalf("expected notice to be handled")
	}
	last := ic.LastError()
	if last == nil || last.Message != "undefined index" || last.Line != 4 {
		t.Fatalf("unexpected last error %+v", last)
	}

	ic.RecordError(models.SeverityParse, "syntax error", "b.go", 9)
	if ic.LastError().Severity != models.SeverityParse {
		t.Fatalf("last error not replaced: %+v", ic.LastError())
	}
}

func TestInterceptor_ConfigErrorFallsBackToDefaults(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	fs := afero.NewMemMapFs()
	ic := &Interceptor{
		config: ConfigProviderFunc(func() (models.LogConfig, error) {
			return models.LogConfig{}, errors.New("settings store offline")
		}),
		defaults: models.LogConfig{LogErrors: true, LogLocation: "/fallback/"},
		sink:     NewLogSink(fs, logger),
		response: &nopResponse{},
		now:      time.Now,
		logger:   logger,
	}

	ic.OnRecoverableCondition(models.SeverityWarning, "careful", "c.go", 2)

	files, err := ListRecentLogFiles(fs, "/fallback", 5)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one file under the default location, got %v (err=%v)", files, err)
	}
}

func TestShield_FrontEndExceptionRedirectsHome(t *testing.T) {
	h := newShieldHarness(t, nil)
	reached := false
	h.engine.GET("/page", func(c *gin.Context) {
		c.String(http.StatusOK, "half a page")
		panic("boom")
	}, func(c *gin.Context) {
		reached = true
	})

	w := h.do(http.MethodGet, "/page")

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected Location /, got %q", loc)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
	if reached {
		t.Fatalf("handlers after the exception must not run")
	}

	logged := h.logged(t, h.dir)
	if strings.Count(logged, "] Exception: boom in ") != 1 {
		t.Fatalf("expected one exception line, got %q", logged)
	}
	if !strings.Contains(logged, "shield_test.go") {
		t.Fatalf("expected the panic site in the log, got %q", logged)
	}
}

func TestShield_AdminExceptionRendersFailure(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/admin/page", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic(errors.New("admin broke"))
	})

	w := h.do(http.MethodGet, "/admin/page")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if w.Header().Get("Location") != "" {
		t.Fatalf("admin requests must not be redirected")
	}
	if strings.Contains(w.Body.String(), "partial") {
		t.Fatalf("partial output should be replaced, got %q", w.Body.String())
	}
	if !strings.Contains(h.logged(t, h.dir), "Exception: admin broke") {
		t.Fatalf("expected exception to be logged")
	}
}

func TestShield_AdminParseErrorAtTermination(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/admin/settings", func(c *gin.Context) {
		FromContext(c).RecordError(models.SeverityParse, "syntax error, unexpected '}'", "/admin/form.go", 12)
		c.String(http.StatusOK, "admin page")
	})

	w := h.do(http.MethodGet, "/admin/settings")

	if w.Code != http.StatusOK || w.Body.String() != "admin page" {
		t.Fatalf("expected admin output untouched, got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "" {
		t.Fatalf("unexpected redirect")
	}
	logged := h.logged(t, h.dir)
	if !strings.Contains(logged, "Fatal error: syntax error, unexpected '}' in /admin/form.go at line 12") {
		t.Fatalf("expected fatal error line, got %q", logged)
	}
}

func TestShield_AdminFatalWithoutOutput(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/admin/run", func(c *gin.Context) {
		Fatal(c, "allowed memory size exhausted")
	})

	w := h.do(http.MethodGet, "/admin/run")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	logged := h.logged(t, h.dir)
	if strings.Contains(logged, "Exception") {
		t.Fatalf("a fatal halt is not an exception: %q", logged)
	}
	if !strings.Contains(logged, "Fatal error: allowed memory size exhausted") {
		t.Fatalf("expected fatal error line, got %q", logged)
	}
}

func TestShield_FrontEndFatalDiscardsOutput(t *testing.T) {
	h := newShieldHarness(t, func(cfg *ShieldConfig) { cfg.HomeURL = "/home" })
	h.engine.GET("/shop", func(c *gin.Context) {
		c.String(http.StatusOK, "<html>cart")
		Fatal(c, "call to undefined function")
	})

	w := h.do(http.MethodGet, "/shop")

	if w.Code != http.StatusFound || w.Header().Get("Location") != "/home" {
		t.Fatalf("expected 302 to /home, got %d %q", w.Code, w.Header().Get("Location"))
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
	if !strings.Contains(h.logged(t, h.dir), "Fatal error: call to undefined function") {
		t.Fatalf("expected fatal error line")
	}
}

func TestShield_NoticeIsLoggedAndPageServed(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/", func(c *gin.Context) {
		if !Notice(c, "undefined index: q") {
			t.Errorf("notice not handled")
		}
		c.String(http.StatusOK, "home")
	})

	w := h.do(http.MethodGet, "/")

	if w.Code != http.StatusOK || w.Body.String() != "home" {
		t.Fatalf("expected normal page, got %d %q", w.Code, w.Body.String())
	}
	if !strings.Contains(h.logged(t, h.dir), "Notice: undefined index: q in ") {
		t.Fatalf("expected notice line")
	}
}

func TestShield_ScrubsLeakedErrorText(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/leaky", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html>ok</html>\nWarning: x in y.php on line 3\n"))
	})
	h.engine.GET("/image", func(c *gin.Context) {
		c.Data(http.StatusOK, "image/png", []byte("Warning: x in y.php on line 3\n"))
	})

	if got := h.do(http.MethodGet, "/leaky").Body.String(); got != "<html>ok</html>\n" {
		t.Fatalf("expected scrubbed body, got %q", got)
	}
	if got := h.do(http.MethodGet, "/image").Body.String(); got != "Warning: x in y.php on line 3\n" {
		t.Fatalf("binary bodies must not be scrubbed, got %q", got)
	}
}

func TestShield_LoggingDisabledWritesNothing(t *testing.T) {
	h := newShieldHarness(t, func(cfg *ShieldConfig) {
		cfg.Config = StaticConfig(models.LogConfig{LogErrors: false, LogLocation: "/logs/"})
	})
	h.engine.GET("/page", func(c *gin.Context) {
		panic("boom")
	})

	w := h.do(http.MethodGet, "/page")
	if w.Code != http.StatusFound {
		t.Fatalf("expected redirect even with logging off, got %d", w.Code)
	}
	if exists, _ := afero.DirExists(h.fs, "/logs"); exists {
		t.Fatalf("log directory must not be created")
	}
}

func TestShield_HandlerStatusPreserved(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	w := h.do(http.MethodGet, "/missing")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not found") {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestTrigger_WithoutShield(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if Warn(c, "nobody listens") {
		t.Fatalf("expected false without a shield")
	}
}

func TestAdminPathMatcher(t *testing.T) {
	match := AdminPathMatcher("admin/")
	tests := []struct {
		path string
		want bool
	}{
		{"/admin", true},
		{"/admin/api/logs", true},
		{"/administrator", false},
		{"/", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := match(req); got != tt.want {
			t.Fatalf("match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestShield_RedirectDropsHandlerHeaders(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	engine := gin.New()
	engine.Use(RequestID(), Shield(ShieldConfig{
		Config:  StaticConfig(models.LogConfig{LogErrors: false}),
		Sink:    NewLogSink(afero.NewMemMapFs(), logger),
		HomeURL: "/",
		Logger:  logger,
	}))
	engine.GET("/cart", func(c *gin.Context) {
		c.Header("X-Debug", "sql: no rows in users")
		c.SetCookie("cart", "abc", 60, "/", "", false, true)
		c.String(http.StatusOK, "cart")
		panic("cart failed")
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cart", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if got := w.Header().Get("X-Debug"); got != "" {
		t.Fatalf("handler header leaked on redirect: %q", got)
	}
	if got := w.Header().Get("Set-Cookie"); got != "" {
		t.Fatalf("cookie leaked on redirect: %q", got)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("headers set before the shield must survive the redirect")
	}
	if w.Header().Get("Location") != "/" {
		t.Fatalf("expected Location /, got %q", w.Header().Get("Location"))
	}
}

func TestShield_CloseNotifyWithoutNotifier(t *testing.T) {
	h := newShieldHarness(t, nil)
	h.engine.GET("/notify", func(c *gin.Context) {
		// httptest.ResponseRecorder has no CloseNotify of its own
		_ = c.Writer.(http.CloseNotifier).CloseNotify()
		c.String(http.StatusOK, "ok")
	})

	w := h.do(http.MethodGet, "/notify")

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", w.Code, w.Body.String())
	}
	if files, _ := ListRecentLogFiles(h.fs, h.dir, 5); len(files) != 0 {
		t.Fatalf("expected nothing logged, got %v", files)
	}
}
