package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"EyeTrackServer/landmark"
)

const ACTIVE = 0x0001
const FAILED = 0x0002

var (
	ErrInvalidConfig    = errors.New("invalid session config")
	ErrSessionFailed    = errors.New("session failed")
	ErrSessionNotFound  = errors.New("session not found")
	ErrFrameOutOfOrder  = errors.New("frame out of order")
	ErrDuplicateSession = errors.New("session already exists")
)

type Config struct {
	ClosedThreshold           float64
	RequiredConsecutiveFrames int
	// EstimatePose is decided once per session; frames never probe for it.
	EstimatePose bool
	Index        landmark.Index
}

func DefaultConfig() Config {
	return Config{
		ClosedThreshold:           0.35,
		RequiredConsecutiveFrames: 2,
		EstimatePose:              true,
		Index:                     landmark.DefaultIndex(),
	}
}

func (c Config) Validate() error {
	if math.IsNaN(c.ClosedThreshold) || math.IsInf(c.ClosedThreshold, 0) || c.ClosedThreshold <= 0 {
		return fmt.Errorf("%w: closedThreshold must be positive, got %v", ErrInvalidConfig, c.ClosedThreshold)
	}
	if c.RequiredConsecutiveFrames < 1 {
		return fmt.Errorf("%w: requiredConsecutiveFrames must be >= 1, got %d", ErrInvalidConfig, c.RequiredConsecutiveFrames)
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// FrameMetrics is everything derived from one frame. Ratios are NaN when
// EyesAvailable is false; Pose is zero when PoseAvailable is false.
type FrameMetrics struct {
	Sequence      uint64
	Timestamp     time.Time
	Eyes          landmark.EyeMetrics
	EyesAvailable bool
	LeftIris      landmark.IrisCircle
	RightIris     landmark.IrisCircle
	LeftGaze      landmark.GazeOffset
	RightGaze     landmark.GazeOffset
	Pose          landmark.HeadPose
	PoseAvailable bool
	Blinked       bool
	TotalBlinks   int
}

type Stats struct {
	Frames           uint64
	DegenerateFrames uint64
	PoseFailures     uint64
	Rejected         uint64
}

type Status struct {
	ID                   string
	Config               Config
	TotalBlinks          int
	ConsecutiveLowFrames int
	Phase                landmark.Phase
	Failed               bool
	Stats                Stats
	CreatedAt            time.Time
	LastActive           time.Time
}

// Session owns the blink state of one tracking stream. ProcessFrame calls are
// serialised; callers must still submit frames in capture order.
type Session struct {
	ID string

	// notifyMu spans processing and sink delivery in Manager.Process.
	notifyMu sync.Mutex

	mu         sync.Mutex
	cfg        Config
	debouncer  *landmark.Debouncer
	state      int
	fatal      error
	lastSeq    uint64
	stats      Stats
	createdAt  time.Time
	lastActive time.Time
	now        func() time.Time
}

func NewSession(id string, cfg Config) (*Session, error) {
	return newSession(id, cfg, time.Now)
}

func newSession(id string, cfg Config, now func() time.Time) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := landmark.NewDebouncer(cfg.ClosedThreshold, cfg.RequiredConsecutiveFrames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	t := now()
	return &Session{
		ID:         id,
		cfg:        cfg,
		debouncer:  d,
		state:      ACTIVE,
		createdAt:  t,
		lastActive: t,
		now:        now,
	}, nil
}

// ProcessFrame derives the metrics of one frame and advances the blink state.
// A landmark count mismatch fails the session until Reset. Degenerate eyes and
// pose failures are reported through the availability flags and never touch the
// blink state.
func (s *Session) ProcessFrame(f landmark.Frame) (FrameMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()

	if s.state == FAILED {
		s.stats.Rejected++
		return FrameMetrics{}, fmt.Errorf("%w: %w", ErrSessionFailed, s.fatal)
	}
	if f.Sequence != 0 && f.Sequence <= s.lastSeq {
		s.stats.Rejected++
		return FrameMetrics{}, fmt.Errorf("%w: sequence %d after %d", ErrFrameOutOfOrder, f.Sequence, s.lastSeq)
	}
	ix := s.cfg.Index
	if err := f.Check(ix.Topology); err != nil {
		s.stats.Rejected++
		if errors.Is(err, landmark.ErrInvalidLandmarkCount) {
			s.state = FAILED
			s.fatal = err
		}
		return FrameMetrics{}, err
	}

	m := FrameMetrics{Sequence: f.Sequence, Timestamp: f.Timestamp}

	eyes, err := landmark.EyeAspectRatio(f, ix)
	switch {
	case err == nil:
		m.Eyes = eyes
		m.EyesAvailable = true
	case errors.Is(err, landmark.ErrDegenerateGeometry):
		nan := math.NaN()
		m.Eyes = landmark.EyeMetrics{Left: nan, Right: nan, Combined: nan}
		s.stats.DegenerateFrames++
	default:
		return FrameMetrics{}, err
	}

	if m.LeftIris, err = landmark.LocateIris(f, ix.LeftIris, ix.Topology); err != nil {
		return FrameMetrics{}, fmt.Errorf("left iris: %w", err)
	}
	if m.RightIris, err = landmark.LocateIris(f, ix.RightIris, ix.Topology); err != nil {
		return FrameMetrics{}, fmt.Errorf("right iris: %w", err)
	}
	m.LeftGaze = landmark.Gaze(f, ix.LeftEye, m.LeftIris)
	m.RightGaze = landmark.Gaze(f, ix.RightEye, m.RightIris)

	if s.cfg.EstimatePose {
		if pose, err := landmark.EstimateHeadPose(f, ix); err == nil {
			m.Pose = pose
			m.PoseAvailable = true
		} else {
			s.stats.PoseFailures++
		}
	}

	if m.EyesAvailable {
		m.Blinked = s.debouncer.Update(m.Eyes.Combined)
	}
	m.TotalBlinks = s.debouncer.State().TotalBlinks
	if f.Sequence != 0 {
		s.lastSeq = f.Sequence
	}
	s.stats.Frames++
	return m, nil
}

// Reset clears blink counters, frame ordering and a failed state. The session
// keeps its id and configuration.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debouncer.Reset()
	s.state = ACTIVE
	s.fatal = nil
	s.lastSeq = 0
	s.stats = Stats{}
	s.lastActive = s.now()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs := s.debouncer.State()
	return Status{
		ID:                   s.ID,
		Config:               s.cfg,
		TotalBlinks:          bs.TotalBlinks,
		ConsecutiveLowFrames: bs.ConsecutiveLowFrames,
		Phase:                s.debouncer.Phase(),
		Failed:               s.state == FAILED,
		Stats:                s.stats,
		CreatedAt:            s.createdAt,
		LastActive:           s.lastActive,
	}
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
