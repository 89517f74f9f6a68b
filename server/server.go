package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentrelay"
	"github.com/hupe1980/agentrelay/artifact"
	"github.com/hupe1980/agentrelay/document"
	"github.com/hupe1980/agentrelay/logging"
)

// Options configures a Server.
type Options struct {
	// MaxUploadBytes bounds uploaded files. Defaults to document.DefaultMaxBytes.
	MaxUploadBytes int64
	// AllowOrigins for CORS. Defaults to all origins.
	AllowOrigins []string
	// Extractor turns uploads into text. Defaults to a document.Extractor
	// with MaxUploadBytes as its limit.
	Extractor *document.Extractor
	// Documents stores extracted uploads. Defaults to an in-memory store.
	Documents artifact.Store
	// WriteTimeout bounds a single websocket frame write.
	WriteTimeout time.Duration
	Logger       logging.Logger
}

// Server exposes a Relay over HTTP and WebSocket.
type Server struct {
	relay        *agentrelay.Relay
	extractor    *document.Extractor
	documents    artifact.Store
	maxUpload    int64
	writeTimeout time.Duration
	logger       logging.Logger
	upgrader     websocket.Upgrader
	echo         *echo.Echo
}

// New creates a server with recover, request logging and CORS middleware
// and all routes registered.
func New(relay *agentrelay.Relay, optFns ...func(o *Options)) *Server {
	opts := Options{
		MaxUploadBytes: document.DefaultMaxBytes,
		AllowOrigins:   []string{"*"},
		WriteTimeout:   10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = document.DefaultMaxBytes
	}
	if opts.Extractor == nil {
		limit := opts.MaxUploadBytes
		opts.Extractor = document.NewExtractor(func(o *document.Options) {
			o.MaxBytes = limit
			o.Logger = logging.ForComponent(opts.Logger, "document")
		})
	}
	if opts.Documents == nil {
		opts.Documents = artifact.NewInMemoryStore()
	}

	s := &Server{
		relay:        relay,
		extractor:    opts.Extractor,
		documents:    opts.Documents,
		maxUpload:    opts.MaxUploadBytes,
		writeTimeout: opts.WriteTimeout,
		logger:       logging.ForComponent(opts.Logger, "server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Warn("http.request.failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			s.logger.Info("http.request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: opts.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))

	s.RegisterRoutes(e)
	s.echo = e

	return s
}

// RegisterRoutes registers all routes with the echo server.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/", s.Root)
	e.GET("/health", s.Health)

	// Chat API
	e.POST("/chat/stream", s.ChatStream)
	e.POST("/chat", s.Chat)
	e.DELETE("/chat/session/:session_id", s.ClearSession)
	e.GET("/chat/sessions", s.Sessions)
	e.GET("/chat/ws", s.ChatWebSocket)

	// Documents API
	uploadLimit := middleware.BodyLimit(strconv.FormatInt(s.maxUpload+multipartOverhead, 10) + "B")
	e.POST("/upload", s.Upload, uploadLimit)
	e.POST("/chat/file-analysis/stream", s.FileAnalysisStream)
	e.GET("/chat/session/:session_id/documents", s.ListDocuments)
	e.GET("/documents/formats", s.Formats)
}

// Handler returns the configured echo instance as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("server.start", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")
	return s.echo.Shutdown(ctx)
}

// Root returns a liveness banner.
func (s *Server) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "agentrelay is running"})
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": s.relay.Count(),
		"active":   s.relay.Active(),
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
