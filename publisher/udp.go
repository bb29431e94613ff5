package publisher

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"EyeTrackServer/engine"
	"EyeTrackServer/logger"

	"go.uber.org/zap"
)

// EyePacketSize is the length of the datagram read by the browser relay:
// int64 unix ms timestamp followed by int32 iris cx, cy and gaze dx, dy, all
// little endian.
const EyePacketSize = 24

func EncodeEyePacket(m engine.FrameMetrics, now time.Time) []byte {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = now
	}
	buf := make([]byte, EyePacketSize)
	binary.LittleEndian.PutUint64(buf[0:], uint64(ts.UnixMilli()))
	binary.LittleEndian.PutUint32(buf[8:], uint32(int32(m.LeftIris.Center.X)))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int32(m.LeftIris.Center.Y)))
	binary.LittleEndian.PutUint32(buf[16:], uint32(int32(m.LeftGaze.DX)))
	binary.LittleEndian.PutUint32(buf[20:], uint32(int32(m.LeftGaze.DY)))
	return buf
}

// UDP sends the left eye packet of every processed frame, fire and forget.
type UDP struct {
	conn net.Conn
	now  func() time.Time
}

func NewUDP(addr string) (*UDP, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp dial %s: %w", addr, err)
	}
	return &UDP{conn: conn, now: time.Now}, nil
}

func (u *UDP) FrameProcessed(sessionID string, m engine.FrameMetrics) {
	if _, err := u.conn.Write(EncodeEyePacket(m, u.now())); err != nil {
		logger.Log().Debug("Eye packet dropped", zap.String("ID", sessionID), zap.Error(err))
	}
}

func (u *UDP) Close() error {
	return u.conn.Close()
}
