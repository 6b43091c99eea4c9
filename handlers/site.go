package handlers

import (
	"errorshield/core"
	"errorshield/models"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewUpstreamProxy serves the front-end from an upstream application. Its
// responses pass through the shield like any local handler output.
func NewUpstreamProxy(upstream string, logger *logrus.Logger) (gin.HandlerFunc, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q: scheme and host are required", upstream)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		// Compressed bodies cannot be scrubbed
		r.Header.Del("Accept-Encoding")
		r.Host = target.Host
	}
	proxy.ErrorLog = log.New(logger.WriterLevel(logrus.WarnLevel), "", 0)

	return func(c *gin.Context) {
		p := *proxy
		p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			core.Trigger(c, models.SeverityWarning, "upstream unavailable: "+err.Error())
			w.WriteHeader(http.StatusBadGateway)
		}
		p.ServeHTTP(c.Writer, c.Request)
	}, nil
}

// NewStaticSite serves files from dir.
func NewStaticSite(dir string) gin.HandlerFunc {
	files := http.FileServer(http.Dir(dir))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		files.ServeHTTP(c.Writer, c.Request)
	}
}

// RegisterDemoRoutes mounts one route per condition kind so an
// administrator can watch the shield at work.
func RegisterDemoRoutes(r gin.IRoutes) {
	r.GET("/demo/notice", func(c *gin.Context) {
		core.Notice(c, "Undefined index: visitor")
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html><body>notice logged</body></html>\n"))
	})
	r.GET("/demo/warning", func(c *gin.Context) {
		core.Warn(c, "Division by zero")
		// Leaked runtime text the scrubber removes from the page
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte("<html><body>warning logged</body></html>\nWarning: Division by zero in demo.go on line 1\n"))
	})
	r.GET("/demo/exception", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html><body>never shown"))
		panic(fmt.Errorf("demo exception"))
	})
	r.GET("/demo/fatal", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html><body>never shown"))
		core.Fatal(c, "Allowed memory size exhausted")
	})
}
