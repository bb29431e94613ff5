package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"EyeTrackServer/landmark"
	"EyeTrackServer/logger"
	"EyeTrackServer/monitor"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink observes processed frames, e.g. to publish blink events. Sinks run on the
// caller's goroutine and must not block. Within one session they see frames in
// processing order, so TotalBlinks never goes backwards.
type Sink interface {
	FrameProcessed(sessionID string, m FrameMetrics)
}

type SinkFunc func(sessionID string, m FrameMetrics)

func (f SinkFunc) FrameProcessed(sessionID string, m FrameMetrics) { f(sessionID, m) }

// Manager owns every tracking session of the process. Each session has its own
// blink state; nothing is shared between sessions.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	defaults    Config
	idleTimeout time.Duration
	sinks       []Sink
	pinned      map[string]bool
	now         func() time.Time
}

type Option func(*Manager)

// WithIdleTimeout makes ReapIdle close sessions without frames for d. Zero
// disables reaping.
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

func WithSinks(sinks ...Sink) Option {
	return func(m *Manager) { m.sinks = append(m.sinks, sinks...) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(defaults Config, opts ...Option) (*Manager, error) {
	if err := defaults.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		sessions: map[string]*Session{},
		pinned:   map[string]bool{},
		defaults: defaults,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) Defaults() Config { return m.defaults }

func (m *Manager) IdleTimeout() time.Duration { return m.idleTimeout }

// Create opens a session with a fresh id.
func (m *Manager) Create(cfg Config) (*Session, error) {
	return m.CreateWithID(uuid.New().String(), cfg)
}

// CreateWithID opens a session under a caller chosen id.
func (m *Manager) CreateWithID(id string, cfg Config) (*Session, error) {
	s, err := newSession(id, cfg, m.now)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	m.sessions[id] = s
	count := len(m.sessions)
	m.mu.Unlock()
	monitor.ActiveSessions.Set(float64(count))
	logger.Log().Info("Session created", zap.String("ID", id), zap.Float64("closedThreshold", cfg.ClosedThreshold), zap.Int("requiredConsecutiveFrames", cfg.RequiredConsecutiveFrames), zap.Bool("estimatePose", cfg.EstimatePose))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Process runs one frame through the session and notifies the sinks.
func (m *Manager) Process(id string, f landmark.Frame) (FrameMetrics, error) {
	s, err := m.Get(id)
	if err != nil {
		return FrameMetrics{}, err
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	metrics, err := s.ProcessFrame(f)
	if err != nil {
		monitor.FramesProcessed.WithLabelValues(monitor.OutcomeRejected).Inc()
		if errors.Is(err, landmark.ErrInvalidLandmarkCount) && !errors.Is(err, ErrSessionFailed) {
			logger.Log().Error("Landmark topology mismatch, session failed", zap.String("ID", id), zap.Error(err))
		}
		return FrameMetrics{}, err
	}
	if metrics.EyesAvailable {
		monitor.FramesProcessed.WithLabelValues(monitor.OutcomeOK).Inc()
	} else {
		monitor.FramesProcessed.WithLabelValues(monitor.OutcomeDegenerate).Inc()
	}
	if metrics.Blinked {
		monitor.BlinksTotal.Inc()
	}
	if s.cfg.EstimatePose && !metrics.PoseAvailable {
		monitor.PoseFailures.Inc()
	}
	for _, sink := range m.sinks {
		sink.FrameProcessed(id, metrics)
	}
	return metrics, nil
}

func (m *Manager) Reset(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Reset()
	logger.Log().Info("Session reset", zap.String("ID", id))
	return nil
}

func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	monitor.ActiveSessions.Set(float64(count))
	logger.Log().Info("Session destroyed", zap.String("ID", id))
	return nil
}

// List returns the status of every session ordered by creation time.
func (m *Manager) List() []Status {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()
	out := make([]Status, 0, len(all))
	for _, s := range all {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Pin exempts id from idle reaping, whether or not the session exists yet.
func (m *Manager) Pin(id string) {
	m.mu.Lock()
	m.pinned[id] = true
	m.mu.Unlock()
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// ReapIdle destroys sessions that have not seen a frame within the idle timeout
// and returns their ids.
func (m *Manager) ReapIdle() []string {
	if m.idleTimeout <= 0 {
		return nil
	}
	now := m.now()
	m.mu.Lock()
	var reaped []string
	for id, s := range m.sessions {
		if m.pinned[id] {
			continue
		}
		if now.Sub(s.idleSince()) > m.idleTimeout {
			delete(m.sessions, id)
			reaped = append(reaped, id)
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()
	if len(reaped) > 0 {
		monitor.ActiveSessions.Set(float64(count))
		for _, id := range reaped {
			logger.Log().Info("Session idle timed out", zap.String("ID", id), zap.Duration("idleTimeout", m.idleTimeout))
		}
	}
	return reaped
}

// StartJanitor reaps idle sessions every interval until ctx is cancelled.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if m.idleTimeout <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.ReapIdle()
			}
		}
	}()
}
