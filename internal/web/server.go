package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cjeanneret/photobooth/internal/debug"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	router   *gin.Engine
}

// NewServer creates a server for addr with routes registered.
func NewServer(addr string, hub *Hub, b Orchestrator, photos PhotoResolver) *Server {
	if !debug.IsEnabled(debug.LevelVerbose) {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		addr:     addr,
		handlers: NewHandlers(hub, b, photos),
		router:   r,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/events", s.handlers.Events)
	s.router.POST("/events/:client", s.handlers.PostEvent)
	s.router.GET("/photos/*path", s.handlers.Photo)
	s.router.GET("/layouts/:name", s.handlers.Layout)
	s.router.GET("/healthcheck", s.handlers.Healthcheck)
}

// Handler returns the router with all routes registered.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully. Event work started by clients is bound to ctx.
func (s *Server) Run(ctx context.Context) error {
	s.handlers.ctx = ctx
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.router,
		// SSE streams end with ctx instead of holding Shutdown open.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		debug.Info("web server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
