package core

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// bufferedWriter holds the whole response until the shield commits it, so
// the body can be scrubbed or thrown away in favour of a redirect.
type bufferedWriter struct {
	gin.ResponseWriter

	body        bytes.Buffer
	status      int
	wroteHeader bool
	location    string

	// Headers set before the shield ran; a redirect keeps only these.
	base http.Header
}

func newBufferedWriter(w gin.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
		base:           w.Header().Clone(),
	}
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code <= 0 || w.wroteHeader {
		return
	}
	w.status = code
}

func (w *bufferedWriter) WriteHeaderNow() {
	w.wroteHeader = true
}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	w.wroteHeader = true
	return w.body.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.wroteHeader = true
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	if !w.wroteHeader {
		return -1
	}
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.wroteHeader
}

// Flush is deferred to commit; partial bodies are never sent.
func (w *bufferedWriter) Flush() {}

// CloseNotify never fires. Nothing reaches the client before commit, and the
// underlying writer may not support notification at all.
func (w *bufferedWriter) CloseNotify() <-chan bool {
	return make(chan bool)
}

func (w *bufferedWriter) discard() {
	w.body.Reset()
	w.status = http.StatusOK
	w.wroteHeader = false
	h := w.ResponseWriter.Header()
	h.Del("Content-Type")
	h.Del("Content-Length")
	h.Del("Content-Encoding")
}

func (w *bufferedWriter) redirect(location string) {
	w.location = location
}

func (w *bufferedWriter) failIfEmpty() {
	if w.wroteHeader {
		return
	}
	w.status = http.StatusInternalServerError
	w.wroteHeader = true
}

// commit sends the buffered response exactly once. A pending redirect wins
// over anything buffered.
func (w *bufferedWriter) commit(scrub func(string) string) {
	out := w.ResponseWriter

	if w.location != "" {
		h := out.Header()
		for k := range h {
			delete(h, k)
		}
		for k, v := range w.base {
			h[k] = v
		}
		h.Set("Location", w.location)
		out.WriteHeader(http.StatusFound)
		out.WriteHeaderNow()
		return
	}

	out.WriteHeader(w.status)
	if !w.wroteHeader {
		return
	}

	body := w.body.Bytes()
	if len(body) > 0 && scrub != nil && isScrubbable(out.Header(), body) {
		cleaned := scrub(string(body))
		if len(cleaned) != len(body) {
			body = []byte(cleaned)
			if out.Header().Get("Content-Length") != "" {
				out.Header().Set("Content-Length", strconv.Itoa(len(body)))
			}
		}
	}

	if len(body) == 0 {
		out.WriteHeaderNow()
		return
	}
	_, _ = out.Write(body)
}

// isScrubbable reports whether a body is uncompressed text the scrubber can
// safely rewrite. Bodies without a Content-Type are sniffed.
func isScrubbable(header http.Header, body []byte) bool {
	if enc := strings.TrimSpace(header.Get("Content-Encoding")); enc != "" && !strings.EqualFold(enc, "identity") {
		return false
	}

	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}

	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return true
	case mediaType == "application/json",
		mediaType == "application/javascript",
		mediaType == "application/xml",
		mediaType == "application/xhtml+xml",
		strings.HasSuffix(mediaType, "+json"),
		strings.HasSuffix(mediaType, "+xml"):
		return true
	default:
		return false
	}
}
