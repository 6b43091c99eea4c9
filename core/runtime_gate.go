package core

import (
	"io"
	"log"
	"net/http"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// RuntimeGate switches off every place the host prints errors on its own.
// Apply is safe to call from every request; the work happens once.
type RuntimeGate struct {
	once    sync.Once
	server  *http.Server
	applied atomic.Bool
}

// NewRuntimeGate returns a gate. server may be nil.
func NewRuntimeGate(server *http.Server) *RuntimeGate {
	return &RuntimeGate{server: server}
}

// Apply is best effort and never fails.
func (g *RuntimeGate) Apply() {
	g.once.Do(func() {
		defer func() {
			// A host that forbids one of the changes keeps the rest
			_ = recover()
		}()

		gin.SetMode(gin.ReleaseMode)
		gin.DefaultErrorWriter = io.Discard
		gin.DebugPrintRouteFunc = func(string, string, string, int) {}
		debug.SetTraceback("none")

		if g.server != nil {
			g.server.ErrorLog = log.New(io.Discard, "", 0)
		}
		g.applied.Store(true)
	})
}

// Applied reports whether Apply ran to completion.
func (g *RuntimeGate) Applied() bool {
	return g.applied.Load()
}
