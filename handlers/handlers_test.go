package handlers

import (
	"context"
	"encoding/json"
	"errorshield/config"
	"errorshield/core"
	"errorshield/database"
	"errorshield/models"
	"errorshield/service"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *gin.Engine
	fs     afero.Fs
}

func newTestServer(t *testing.T, passwordHash string) *testServer {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	db, err := database.Open(&config.Config{
		DatabaseURL:        filepath.Join(t.TempDir(), "handlers.db"),
		SQLiteMaxOpenConns: 1,
		SQLiteMaxIdleConns: 1,
	}, log)
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}

	prevDB := database.DB
	prevServices := service.GlobalServices
	database.DB = db
	t.Cleanup(func() {
		database.DB = prevDB
		service.GlobalServices = prevServices
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	fs := afero.NewMemMapFs()
	logger, _ := logtest.NewNullLogger()
	svcs := service.InitServices(db, service.Options{
		Fs:           fs,
		ContentRoot:  "/srv/site",
		HtaccessPath: "/srv/site/.htaccess",
		Logger:       logger,
	})

	r := gin.New()
	r.Use(core.RequestID(), core.Shield(core.ShieldConfig{
		Config:       svcs.Settings,
		Defaults:     svcs.Settings.Defaults(),
		Sink:         core.NewLogSink(fs, logger),
		HomeURL:      "/",
		IsAdmin:      core.AdminPathMatcher("/admin"),
		AdminFailure: AdminFailure,
		Logger:       logger,
	}))
	r.GET("/api/health", HealthCheck)
	RegisterAdminRoutes(r, "/admin", passwordHash)
	RegisterDemoRoutes(r)

	return &testServer{engine: r, fs: fs}
}

func (s *testServer) do(method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if mutate != nil {
		mutate(req)
	}
	// Server requests always carry a cancellable context
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (ResponseV2, map[string]any) {
	t.Helper()
	var resp ResponseV2
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid envelope %q: %v", w.Body.String(), err)
	}
	data, _ := resp.Data.(map[string]any)
	return resp, data
}

func TestSettingsAPI(t *testing.T) {
	s := newTestServer(t, "")

	w := s.do(http.MethodGet, "/admin/api/settings", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET settings: %d %s", w.Code, w.Body.String())
	}
	_, data := decodeEnvelope(t, w)
	settings := data["settings"].(map[string]any)
	if settings["log_errors"] != true {
		t.Fatalf("expected logging enabled by default, got %v", settings)
	}

	w = s.do(http.MethodPut, "/admin/api/settings", `{"log_location":"relative/dir"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for relative location, got %d", w.Code)
	}
	if resp, _ := decodeEnvelope(t, w); resp.Code != CodeInvalidRequest {
		t.Fatalf("expected %s, got %s", CodeInvalidRequest, resp.Code)
	}

	w = s.do(http.MethodPut, "/admin/api/settings", `{"log_errors":false,"log_location":"/var/shield"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT settings: %d %s", w.Code, w.Body.String())
	}

	cfg, err := service.GlobalServices.Settings.LogConfig()
	if err != nil {
		t.Fatalf("LogConfig: %v", err)
	}
	if cfg.LogErrors || cfg.LogLocation != "/var/shield/" {
		t.Fatalf("settings not persisted: %+v", cfg)
	}

	w = s.do(http.MethodDelete, "/admin/api/settings", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE settings: %d", w.Code)
	}
	if cfg, _ := service.GlobalServices.Settings.LogConfig(); !cfg.LogErrors {
		t.Fatalf("expected defaults after reset, got %+v", cfg)
	}
}

func TestLogsAPI(t *testing.T) {
	s := newTestServer(t, "")
	if _, err := service.GlobalServices.Settings.Update(models.LogSettingsUpdate{LogLocation: "/logs"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for d := 1; d <= 7; d++ {
		name := "/logs/error_shield_2024-06-0" + strconv.Itoa(d) + ".log"
		_ = afero.WriteFile(s.fs, name, []byte("entry "+strconv.Itoa(d)+"\n"), 0o644)
	}

	w := s.do(http.MethodGet, "/admin/api/logs", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET logs: %d %s", w.Code, w.Body.String())
	}
	_, data := decodeEnvelope(t, w)
	files := data["files"].([]any)
	if len(files) != core.DefaultRecentLogLimit {
		t.Fatalf("expected %d files, got %d", core.DefaultRecentLogLimit, len(files))
	}
	last := files[len(files)-1].(map[string]any)
	if last["name"] != "error_shield_2024-06-07.log" {
		t.Fatalf("expected most recent last, got %v", last["name"])
	}

	if w := s.do(http.MethodGet, "/admin/api/logs?limit=2", "", nil); w.Code != http.StatusOK {
		t.Fatalf("GET logs?limit=2: %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/admin/api/logs?limit=zero", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	w = s.do(http.MethodGet, "/admin/api/logs/error_shield_2024-06-03.log", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "entry 3\n" {
		t.Fatalf("GET log: %d %q", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodGet, "/admin/api/logs/passwd", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid name, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/admin/api/logs/error_shield_2020-01-01.log", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing file, got %d", w.Code)
	}

	w = s.do(http.MethodDelete, "/admin/api/logs", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE logs: %d", w.Code)
	}
	if _, data := decodeEnvelope(t, w); data["removed"] != float64(7) {
		t.Fatalf("expected 7 removed, got %v", data["removed"])
	}
}

func TestHardeningAPI(t *testing.T) {
	s := newTestServer(t, "")
	_ = afero.WriteFile(s.fs, "/srv/site/.htaccess", []byte("php_value display_errors 0\n"), 0o644)

	w := s.do(http.MethodGet, "/admin/api/hardening", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET hardening: %d", w.Code)
	}
	_, data := decodeEnvelope(t, w)
	if data["directives_present"] != true || data["readable"] != true {
		t.Fatalf("unexpected report %v", data)
	}
}

func TestAdminAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	s := newTestServer(t, string(hash))

	if w := s.do(http.MethodGet, "/admin/api/settings", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}
	wrong := func(r *http.Request) { r.SetBasicAuth(AdminUser, "nope") }
	if w := s.do(http.MethodGet, "/admin/api/settings", "", wrong); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong password, got %d", w.Code)
	}
	right := func(r *http.Request) { r.SetBasicAuth(AdminUser, "s3cret") }
	if w := s.do(http.MethodGet, "/admin/api/settings", "", right); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", w.Code)
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte("pw")) != nil {
		t.Fatalf("hash does not verify")
	}
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, "")

	if w := s.do(http.MethodGet, "/api/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected healthy, got %d %s", w.Code, w.Body.String())
	}

	database.DB = nil
	w := s.do(http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a database, got %d", w.Code)
	}
}

func TestDemoRoutes(t *testing.T) {
	s := newTestServer(t, "")
	if _, err := service.GlobalServices.Settings.Update(models.LogSettingsUpdate{LogLocation: "/logs"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	w := s.do(http.MethodGet, "/demo/warning", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("demo warning: %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "Warning:") {
		t.Fatalf("leaked warning text not scrubbed: %q", w.Body.String())
	}

	for _, path := range []string{"/demo/exception", "/demo/fatal"} {
		w := s.do(http.MethodGet, path, "", nil)
		if w.Code != http.StatusFound || w.Header().Get("Location") != "/" || w.Body.Len() != 0 {
			t.Fatalf("%s: expected bare redirect home, got %d %q", path, w.Code, w.Body.String())
		}
	}

	files, err := service.GlobalServices.Logs.ListRecent(5)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one daily file, got %v (err=%v)", files, err)
	}
	data, _ := service.GlobalServices.Logs.Read(files[0].Name)
	for _, want := range []string{"Warning: Division by zero", "Exception: demo exception", "Fatal error: Allowed memory size exhausted"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("log missing %q:\n%s", want, data)
		}
	}
}

func TestAdminFailureRendersEnvelope(t *testing.T) {
	s := newTestServer(t, "")
	s.engine.GET("/admin/boom", func(c *gin.Context) {
		panic("admin page broke")
	})

	w := s.do(http.MethodGet, "/admin/boom", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	resp, data := decodeEnvelope(t, w)
	if resp.Code != CodeInternal {
		t.Fatalf("expected %s, got %s", CodeInternal, resp.Code)
	}
	detail := data["detail"].(map[string]any)
	if detail["message"] != "admin page broke" {
		t.Fatalf("unexpected detail %v", detail)
	}
}

func TestStaticSiteScrubbed(t *testing.T) {
	dir := t.TempDir()
	page := "<html>ok</html>\nNotice: Undefined variable in index.php on line 2\n"
	if err := os.WriteFile(filepath.Join(dir, "about.html"), []byte(page), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := newTestServer(t, "")
	s.engine.NoRoute(NewStaticSite(dir))

	w := s.do(http.MethodGet, "/about.html", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("static: %d", w.Code)
	}
	if w.Body.String() != "<html>ok</html>\n" {
		t.Fatalf("expected scrubbed page, got %q", w.Body.String())
	}
	if cl := w.Header().Get("Content-Length"); cl != strconv.Itoa(w.Body.Len()) {
		t.Fatalf("Content-Length %s does not match body length %d", cl, w.Body.Len())
	}
}

func TestUpstreamProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>hi</p>\nFatal error: leaked in app.php on line 9\n"))
	}))
	defer upstream.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	proxy, err := NewUpstreamProxy(upstream.URL, logger)
	if err != nil {
		t.Fatalf("NewUpstreamProxy: %v", err)
	}

	s := newTestServer(t, "")
	s.engine.NoRoute(proxy)

	w := s.do(http.MethodGet, "/anything", "", func(r *http.Request) {
		r.Header.Set("Accept-Encoding", "gzip")
	})
	if w.Code != http.StatusOK || w.Body.String() != "<p>hi</p>\n" {
		t.Fatalf("proxy: %d %q", w.Code, w.Body.String())
	}
}

func TestUpstreamProxy_RequestWithoutCancel(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<p>hi</p>\n"))
	}))
	defer upstream.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	proxy, err := NewUpstreamProxy(upstream.URL, logger)
	if err != nil {
		t.Fatalf("NewUpstreamProxy: %v", err)
	}

	s := newTestServer(t, "")
	s.engine.NoRoute(proxy)

	// The proxy falls back to CloseNotify when the context cannot be cancelled
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	if w.Code != http.StatusOK || w.Body.String() != "<p>hi</p>\n" {
		t.Fatalf("proxy: %d %q", w.Code, w.Body.String())
	}
}

func TestUpstreamProxy_Unavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	target := upstream.URL
	upstream.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	proxy, err := NewUpstreamProxy(target, logger)
	if err != nil {
		t.Fatalf("NewUpstreamProxy: %v", err)
	}

	s := newTestServer(t, "")
	s.engine.NoRoute(proxy)

	if w := s.do(http.MethodGet, "/", "", nil); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestNewUpstreamProxy_InvalidURL(t *testing.T) {
	if _, err := NewUpstreamProxy("not a url", logrus.New()); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}

func TestShutdownCode(t *testing.T) {
	s := newTestServer(t, "")
	SetShutdownChannel(make(chan bool, 1))

	if w := s.do(http.MethodPost, "/admin/api/shutdown/verify", `{"code":"000000"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a generated code, got %d", w.Code)
	}

	w := s.do(http.MethodPost, "/admin/api/shutdown/generate-code", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("generate-code: %d", w.Code)
	}
	_, data := decodeEnvelope(t, w)
	code := data["code"].(string)

	if w := s.do(http.MethodPost, "/admin/api/shutdown/verify", `{"code":"`+code+`"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(http.MethodPost, "/admin/api/shutdown/verify", `{"code":"`+code+`"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("codes must be single use, got %d", w.Code)
	}
}
