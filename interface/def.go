package iface

import (
	"fmt"
	"math"
	"time"

	"EyeTrackServer/engine"
	"EyeTrackServer/landmark"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LandmarkFrame is the wire form of one frame of landmarks. Timestamp is unix
// milliseconds; zero means the provider did not stamp the frame.
type LandmarkFrame struct {
	Width     int          `json:"width" validate:"gt=0"`
	Height    int          `json:"height" validate:"gt=0"`
	Sequence  uint64       `json:"sequence"`
	Timestamp int64        `json:"timestamp"`
	Landmarks [][3]float64 `json:"landmarks" validate:"required"`
}

func (f LandmarkFrame) Validate() error {
	return validate.Struct(f)
}

func (f LandmarkFrame) ToFrame() landmark.Frame {
	pts := make([]landmark.Point, len(f.Landmarks))
	for i, p := range f.Landmarks {
		pts[i] = landmark.Point{X: p[0], Y: p[1], Z: p[2]}
	}
	out := landmark.Frame{
		Points:   pts,
		Width:    f.Width,
		Height:   f.Height,
		Sequence: f.Sequence,
	}
	if f.Timestamp != 0 {
		out.Timestamp = time.UnixMilli(f.Timestamp)
	}
	return out
}

func NewLandmarkFrame(f landmark.Frame) LandmarkFrame {
	pts := make([][3]float64, len(f.Points))
	for i, p := range f.Points {
		pts[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return LandmarkFrame{
		Width:     f.Width,
		Height:    f.Height,
		Sequence:  f.Sequence,
		Timestamp: unixMilli(f.Timestamp),
		Landmarks: pts,
	}
}

type Eyes struct {
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
	Combined float64 `json:"combined"`
}

type Iris struct {
	CX     float64 `json:"cx"`
	CY     float64 `json:"cy"`
	Radius float64 `json:"radius"`
}

type Gaze struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

type Pose struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

// FrameMetrics is the reply to a processed frame. Eyes and Pose are null when
// they could not be measured for this frame.
type FrameMetrics struct {
	Sequence    uint64 `json:"sequence"`
	Timestamp   int64  `json:"timestamp"`
	Eyes        *Eyes  `json:"eyes"`
	LeftIris    Iris   `json:"leftIris"`
	RightIris   Iris   `json:"rightIris"`
	LeftGaze    Gaze   `json:"leftGaze"`
	RightGaze   Gaze   `json:"rightGaze"`
	Pose        *Pose  `json:"pose"`
	Blinked     bool   `json:"blinked"`
	TotalBlinks int    `json:"totalBlinks"`
}

func NewFrameMetrics(m engine.FrameMetrics) FrameMetrics {
	out := FrameMetrics{
		Sequence:    m.Sequence,
		Timestamp:   unixMilli(m.Timestamp),
		LeftIris:    Iris{CX: m.LeftIris.Center.X, CY: m.LeftIris.Center.Y, Radius: m.LeftIris.Radius},
		RightIris:   Iris{CX: m.RightIris.Center.X, CY: m.RightIris.Center.Y, Radius: m.RightIris.Radius},
		LeftGaze:    Gaze{DX: m.LeftGaze.DX, DY: m.LeftGaze.DY},
		RightGaze:   Gaze{DX: m.RightGaze.DX, DY: m.RightGaze.DY},
		Blinked:     m.Blinked,
		TotalBlinks: m.TotalBlinks,
	}
	if m.EyesAvailable && !math.IsNaN(m.Eyes.Combined) {
		out.Eyes = &Eyes{Left: m.Eyes.Left, Right: m.Eyes.Right, Combined: m.Eyes.Combined}
	}
	if m.PoseAvailable {
		out.Pose = &Pose{Pitch: m.Pose.Pitch, Yaw: m.Pose.Yaw, Roll: m.Pose.Roll}
	}
	return out
}

// SessionRequest overrides the server defaults for a new session. Omitted
// fields keep the default.
type SessionRequest struct {
	ClosedThreshold           *float64 `json:"closedThreshold,omitempty" validate:"omitempty,gt=0"`
	RequiredConsecutiveFrames *int     `json:"requiredConsecutiveFrames,omitempty" validate:"omitempty,gte=1"`
	EstimatePose              *bool    `json:"estimatePose,omitempty"`
}

func (r SessionRequest) Validate() error {
	return validate.Struct(r)
}

func (r SessionRequest) Apply(base engine.Config) engine.Config {
	if r.ClosedThreshold != nil {
		base.ClosedThreshold = *r.ClosedThreshold
	}
	if r.RequiredConsecutiveFrames != nil {
		base.RequiredConsecutiveFrames = *r.RequiredConsecutiveFrames
	}
	if r.EstimatePose != nil {
		base.EstimatePose = *r.EstimatePose
	}
	return base
}

type SessionCreated struct {
	SessionID     string `json:"sessionID"`
	WsURL         string `json:"wsURL,omitempty"`
	IdleTimeoutMs int64  `json:"idleTimeoutMs"`
}

// SessionStatus keeps the isStreaming/totalBlinks pair the legacy /status
// endpoint has always returned.
type SessionStatus struct {
	SessionID                 string  `json:"sessionID"`
	IsStreaming               bool    `json:"isStreaming"`
	TotalBlinks               int     `json:"totalBlinks"`
	ConsecutiveLowFrames      int     `json:"consecutiveLowFrames"`
	Phase                     string  `json:"phase"`
	Failed                    bool    `json:"failed"`
	Frames                    uint64  `json:"frames"`
	DegenerateFrames          uint64  `json:"degenerateFrames"`
	PoseFailures              uint64  `json:"poseFailures"`
	Rejected                  uint64  `json:"rejected"`
	ClosedThreshold           float64 `json:"closedThreshold"`
	RequiredConsecutiveFrames int     `json:"requiredConsecutiveFrames"`
	EstimatePose              bool    `json:"estimatePose"`
	CreatedAt                 int64   `json:"createdAt"`
	LastActive                int64   `json:"lastActive"`
}

func NewSessionStatus(st engine.Status) SessionStatus {
	return SessionStatus{
		SessionID:                 st.ID,
		IsStreaming:               !st.Failed,
		TotalBlinks:               st.TotalBlinks,
		ConsecutiveLowFrames:      st.ConsecutiveLowFrames,
		Phase:                     st.Phase.String(),
		Failed:                    st.Failed,
		Frames:                    st.Stats.Frames,
		DegenerateFrames:          st.Stats.DegenerateFrames,
		PoseFailures:              st.Stats.PoseFailures,
		Rejected:                  st.Stats.Rejected,
		ClosedThreshold:           st.Config.ClosedThreshold,
		RequiredConsecutiveFrames: st.Config.RequiredConsecutiveFrames,
		EstimatePose:              st.Config.EstimatePose,
		CreatedAt:                 unixMilli(st.CreatedAt),
		LastActive:                unixMilli(st.LastActive),
	}
}

// BlinkEvent is published once per counted blink.
type BlinkEvent struct {
	SessionID   string `json:"sessionId"`
	TotalBlinks int    `json:"totalBlinks"`
	Sequence    uint64 `json:"sequence"`
	Timestamp   int64  `json:"timestamp"`
}

func NewBlinkEvent(sessionID string, m engine.FrameMetrics) BlinkEvent {
	return BlinkEvent{
		SessionID:   sessionID,
		TotalBlinks: m.TotalBlinks,
		Sequence:    m.Sequence,
		Timestamp:   unixMilli(m.Timestamp),
	}
}

// OverlayRequest carries a base64 image (a data URL prefix is accepted) and the
// landmarks detected on it.
type OverlayRequest struct {
	Image string        `json:"image" validate:"required"`
	Frame LandmarkFrame `json:"frame"`
}

func (r OverlayRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("overlay request: %w", err)
	}
	return nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
