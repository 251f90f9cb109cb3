package httpserver

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Nijal-AI/brest-mcp-server/internal/mcpserver"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const mcpPath = "/mcp"

// errStreamAborted fails every write on a stream after the hub dropped it.
var errStreamAborted = errors.New("stream aborted")

// registerMCPRoutes mounts the streamable HTTP transport. The engine checks the
// bearer token itself; the routes here add origin, rate and size limits.
func (s *Server) registerMCPRoutes(rateLimiter echo.MiddlewareFunc) {
	handler := echo.WrapHandler(s.mcpHandler)
	origins := originGuard(s.config.AppURL, s.config.IsDevelopment(), s.config.AllowedOrigins...)

	s.echo.POST(mcpPath, handler, origins, rateLimiter, middleware.BodyLimit(maxMCPBody))
	s.echo.GET(mcpPath, handler, origins, rateLimiter, s.boundedStream)
	s.echo.DELETE(mcpPath, handler, origins, rateLimiter)
}

// boundedStream puts a write deadline on the long-lived GET stream and lets the
// session host abort it when the client is evicted from the change feed.
func (s *Server) boundedStream(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		res := c.Response()
		sw := newStreamWriter(res.Writer, s.clock, s.streamWriteTimeout)
		res.Writer = sw

		ctx := mcpserver.WithDisconnect(c.Request().Context(), sw.abort)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// streamWriter bounds every write on a stream. A client that stops reading fails
// the write after timeout instead of pinning the handler, and after the first
// failure every later write and flush fails at once.
type streamWriter struct {
	http.ResponseWriter
	rc      *http.ResponseController
	clock   clockwork.Clock
	timeout time.Duration

	mu  sync.Mutex
	err error
}

func newStreamWriter(w http.ResponseWriter, clock clockwork.Clock, timeout time.Duration) *streamWriter {
	return &streamWriter{
		ResponseWriter: w,
		rc:             http.NewResponseController(w),
		clock:          clock,
		timeout:        timeout,
	}
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if err := w.arm(); err != nil {
		return 0, err
	}
	n, err := w.ResponseWriter.Write(p)
	if err != nil {
		w.fail(err)
	}
	return n, err
}

// arm moves the deadline forward, unless the stream already failed. It holds the
// lock so that abort cannot be overtaken by a fresh deadline.
func (w *streamWriter) arm() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if err := w.rc.SetWriteDeadline(w.clock.Now().Add(w.timeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		w.err = err
		return err
	}
	return nil
}

// Flush satisfies http.Flusher. The error is kept and returned by the next Write.
func (w *streamWriter) Flush() {
	_ = w.FlushError()
}

func (w *streamWriter) FlushError() error {
	if err := w.failed(); err != nil {
		return err
	}
	if err := w.rc.Flush(); err != nil {
		w.fail(err)
		return err
	}
	return nil
}

func (w *streamWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// abort fails the write in progress, if any, and every later one.
func (w *streamWriter) abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = errStreamAborted
	}
	_ = w.rc.SetWriteDeadline(time.Unix(1, 0))
}

func (w *streamWriter) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *streamWriter) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
