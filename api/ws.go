package api

import (
	"net/http"

	iface "EyeTrackServer/interface"
	"EyeTrackServer/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsReadLimit = 4 * 1024 * 1024

// stream feeds every text message on the socket to one session as a landmark
// frame and replies with its metrics. Messages are handled one at a time, so
// frames are processed in arrival order.
func (s *Server) stream(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.manager.Get(id); err != nil {
		abortWith(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)
	logger.Log().Info("Stream opened", zap.String("ID", id))

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Log().Info("Stream closed", zap.String("ID", id), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			_ = conn.WriteJSON(gin.H{"error": "unsupported message type"})
			continue
		}
		reply, stop := s.handleStreamMessage(id, msg)
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
		if stop {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
			return
		}
	}
}

func (s *Server) handleStreamMessage(id string, msg []byte) (any, bool) {
	var lf iface.LandmarkFrame
	if err := json.Unmarshal(msg, &lf); err != nil {
		return gin.H{"error": "invalid frame: " + err.Error()}, false
	}
	if err := lf.Validate(); err != nil {
		return gin.H{"error": err.Error()}, false
	}
	m, err := s.manager.Process(id, lf.ToFrame())
	if err != nil {
		return gin.H{"error": err.Error()}, statusOf(err) == http.StatusNotFound
	}
	return iface.NewFrameMetrics(m), false
}
