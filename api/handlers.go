package api

import (
	"fmt"
	"net/http"

	iface "EyeTrackServer/interface"
	"EyeTrackServer/overlay"

	"github.com/gin-gonic/gin"
)

func (s *Server) createSession(c *gin.Context) {
	var req iface.SessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := s.manager.Create(req.Apply(s.manager.Defaults()))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, iface.SessionCreated{
		SessionID:     sess.ID,
		WsURL:         fmt.Sprintf("ws://%s/ws/%s", c.Request.Host, sess.ID),
		IdleTimeoutMs: s.manager.IdleTimeout().Milliseconds(),
	})
}

func (s *Server) listSessions(c *gin.Context) {
	all := s.manager.List()
	out := make([]iface.SessionStatus, 0, len(all))
	for _, st := range all {
		out = append(out, iface.NewSessionStatus(st))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) sessionStatus(c *gin.Context) {
	sess, err := s.manager.Get(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, iface.NewSessionStatus(sess.Status()))
}

func (s *Server) processFrame(c *gin.Context) {
	var lf iface.LandmarkFrame
	if err := c.ShouldBindJSON(&lf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := lf.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := s.manager.Process(c.Param("id"), lf.ToFrame())
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, iface.NewFrameMetrics(m))
}

func (s *Server) resetSession(c *gin.Context) {
	if err := s.manager.Reset(c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": "Session reset"})
}

func (s *Server) destroySession(c *gin.Context) {
	if err := s.manager.Destroy(c.Param("id")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": "Session destroyed"})
}

// overlay processes the frame like /frames and answers with the annotated
// image instead of the metrics.
func (s *Server) overlay(c *gin.Context) {
	var req iface.OverlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	src, err := overlay.DecodeBase64(req.Image)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image: " + err.Error()})
		return
	}
	defer src.Close()
	f := req.Frame.ToFrame()
	m, err := s.manager.Process(c.Param("id"), f)
	if err != nil {
		abortWith(c, err)
		return
	}
	img, err := overlay.Annotate(&src, f, m)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", img)
}
