package api

import (
	"errors"
	"net/http"

	"EyeTrackServer/engine"

	"github.com/gin-gonic/gin"
)

// The legacy endpoints drive a single session named DefaultSessionID. The
// blink count stays readable through /status after the stream is stopped.

func (s *Server) legacyStart(c *gin.Context) {
	s.legacyMu.Lock()
	defer s.legacyMu.Unlock()
	_, err := s.manager.CreateWithID(DefaultSessionID, s.manager.Defaults())
	switch {
	case errors.Is(err, engine.ErrDuplicateSession):
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "Stream already running"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
	default:
		s.legacyBlinks = 0
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Stream started"})
	}
}

func (s *Server) legacyStop(c *gin.Context) {
	s.legacyMu.Lock()
	defer s.legacyMu.Unlock()
	sess, err := s.manager.Get(DefaultSessionID)
	if err == nil {
		s.legacyBlinks = sess.Status().TotalBlinks
		err = s.manager.Destroy(DefaultSessionID)
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "error", "message": "No stream running"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Stream stopped"})
}

func (s *Server) legacyStatus(c *gin.Context) {
	s.legacyMu.Lock()
	defer s.legacyMu.Unlock()
	streaming := false
	blinks := s.legacyBlinks
	if sess, err := s.manager.Get(DefaultSessionID); err == nil {
		st := sess.Status()
		streaming = !st.Failed
		blinks = st.TotalBlinks
	}
	c.JSON(http.StatusOK, gin.H{"isStreaming": streaming, "totalBlinks": blinks})
}
