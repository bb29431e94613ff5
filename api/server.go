package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"EyeTrackServer/engine"
	"EyeTrackServer/logger"
	"EyeTrackServer/monitor"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultSessionID is the single session driven by /start, /stop and /status.
const DefaultSessionID = "default"

type Server struct {
	manager  *engine.Manager
	upgrader websocket.Upgrader

	legacyMu     sync.Mutex
	legacyBlinks int
}

// NewServer pins DefaultSessionID: the legacy stream lives until /stop, as the
// blink count /status reports depends on it.
func NewServer(m *engine.Manager) *Server {
	m.Pin(DefaultSessionID)
	return &Server{
		manager: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), corsPolicy())

	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(monitor.Handler()))

	sessions := r.Group("/api/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("", s.listSessions)
	sessions.GET("/:id/status", s.sessionStatus)
	sessions.POST("/:id/frames", s.processFrame)
	sessions.POST("/:id/reset", s.resetSession)
	sessions.DELETE("/:id", s.destroySession)
	sessions.POST("/:id/overlay", s.overlay)

	r.GET("/ws/:id", s.stream)

	r.POST("/start", s.legacyStart)
	r.POST("/stop", s.legacyStop)
	r.GET("/status", s.legacyStatus)
	return r
}

// Run serves the API on port until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("HTTP server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
