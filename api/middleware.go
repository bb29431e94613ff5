package api

import (
	"errors"
	"net/http"
	"time"

	"EyeTrackServer/engine"
	"EyeTrackServer/landmark"
	"EyeTrackServer/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log().Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// corsPolicy allows any origin; the browser dashboard is served from another port.
func corsPolicy() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateSession),
		errors.Is(err, engine.ErrSessionFailed),
		errors.Is(err, engine.ErrFrameOutOfOrder):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidConfig),
		errors.Is(err, landmark.ErrInvalidLandmarkCount),
		errors.Is(err, landmark.ErrInvalidFrameSize),
		errors.Is(err, landmark.ErrInvalidCoordinate),
		errors.Is(err, landmark.ErrInsufficientPoints),
		errors.Is(err, landmark.ErrIndexOutOfRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abortWith(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		logger.Log().Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
