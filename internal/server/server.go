package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"inputfeed/config"
	"inputfeed/internal/handler"
	"inputfeed/internal/input"
	"inputfeed/internal/middleware"
	"inputfeed/internal/transport/httpdto"
	"inputfeed/internal/websocket"
	"inputfeed/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ViewerCounter reports how many stream viewers are connected cluster-wide.
type ViewerCounter interface {
	Count(ctx context.Context) (int, error)
}

// Routes holds what the HTTP surface serves. Everything but Registry and
// Hub is optional.
type Routes struct {
	Registry *input.Registry
	Hub      *websocket.Hub
	Stream   *websocket.Handler
	Events   *handler.EventsHandler
	Redis    Pinger
	Viewers  ViewerCounter
	Limiter  middleware.ConnectLimiter
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if l == nil {
		l = logger.Nop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l.Named("http"),
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) SetupRoutes(routes Routes) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		health := httpdto.HealthResponse{Status: "healthy"}
		if routes.Registry != nil {
			health.Callbacks = routes.Registry.Len()
		}
		if routes.Hub != nil {
			health.Subscribers = routes.Hub.GetClientCount()
		}
		if routes.Redis != nil {
			if err := routes.Redis.Ping(c.Request.Context()); err != nil {
				health.Status = "unhealthy"
				health.Redis = err.Error()
				c.JSON(http.StatusServiceUnavailable, httpdto.NewSuccessResponse(health))
				return
			}
			health.Redis = "ok"
		}
		if routes.Viewers != nil {
			if n, err := routes.Viewers.Count(c.Request.Context()); err == nil {
				health.Viewers = n
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(health))
	})

	v1 := s.engine.Group("/v1")
	if routes.Stream != nil {
		if routes.Limiter != nil {
			v1.GET("/stream", middleware.StreamRateLimitMiddleware(routes.Limiter, s.logger), routes.Stream.Connect)
		} else {
			v1.GET("/stream", routes.Stream.Connect)
		}
	}
	if routes.Events != nil {
		v1.GET("/events", routes.Events.List)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// Stream handlers derive from the request context; tie it to ctx so
	// hijacked connections close on shutdown.
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Errorf("Error in starting the server: %s", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down, waiting up to 5 seconds for open requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
