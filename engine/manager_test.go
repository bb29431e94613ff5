package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"EyeTrackServer/landmark/landmarktest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestManager_SessionIsolation(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RequiredConsecutiveFrames = 1
	a, err := m.Create(cfg)
	require.NoError(t, err)
	b, err := m.Create(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	for i := 0; i < 4; i++ {
		_, err := m.Process(a.ID, landmarktest.Closed().Frame())
		require.NoError(t, err)
		_, err = m.Process(b.ID, landmarktest.Open().Frame())
		require.NoError(t, err)
	}
	assert.Equal(t, 4, a.Status().TotalBlinks)
	assert.Equal(t, 0, b.Status().TotalBlinks)

	require.NoError(t, m.Reset(a.ID))
	assert.Equal(t, 0, a.Status().TotalBlinks)
}

func TestManager_ConcurrentSessions(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	const sessions = 8
	var wg sync.WaitGroup
	ids := make([]string, sessions)
	for i := 0; i < sessions; i++ {
		cfg := DefaultConfig()
		cfg.RequiredConsecutiveFrames = 1
		s, err := m.Create(cfg)
		require.NoError(t, err)
		ids[i] = s.ID
	}
	for i, id := range ids {
		wg.Add(1)
		go func(n int, id string) {
			defer wg.Done()
			for k := 0; k < n; k++ {
				if _, err := m.Process(id, landmarktest.Closed().Frame()); err != nil {
					t.Error(err)
					return
				}
			}
		}(i+1, id)
	}
	wg.Wait()
	for i, id := range ids {
		s, err := m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, i+1, s.Status().TotalBlinks, "session %d", i)
	}
}

func TestManager_Lifecycle(t *testing.T) {
	m, err := NewManager(DefaultConfig())
	require.NoError(t, err)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Destroy("missing"), ErrSessionNotFound)
	assert.ErrorIs(t, m.Reset("missing"), ErrSessionNotFound)
	_, err = m.Process("missing", landmarktest.Open().Frame())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s, err := m.CreateWithID("default", DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "default", s.ID)
	_, err = m.CreateWithID("default", DefaultConfig())
	assert.ErrorIs(t, err, ErrDuplicateSession)
	assert.Equal(t, 1, m.Count())

	require.NoError(t, m.Destroy("default"))
	assert.Equal(t, 0, m.Count())
	_, err = m.Get("default")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_ListIsOrdered(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m, err := NewManager(DefaultConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := m.CreateWithID(fmt.Sprintf("s%d", 3-i), DefaultConfig())
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	list := m.List()
	require.Len(t, list, 3)
	assert.Equal(t, "s3", list[0].ID)
	assert.Equal(t, "s1", list[2].ID)
}

func TestManager_ReapIdle(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m, err := NewManager(DefaultConfig(), WithIdleTimeout(time.Minute), WithClock(clock.Now))
	require.NoError(t, err)

	idle, err := m.Create(DefaultConfig())
	require.NoError(t, err)
	busy, err := m.Create(DefaultConfig())
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	_, err = m.Process(busy.ID, landmarktest.Open().Frame())
	require.NoError(t, err)
	assert.Empty(t, m.ReapIdle())

	clock.Advance(30 * time.Second)
	assert.Equal(t, []string{idle.ID}, m.ReapIdle())
	_, err = m.Get(busy.ID)
	assert.NoError(t, err)
}

func TestManager_PinnedSessionIsNotReaped(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m, err := NewManager(DefaultConfig(), WithIdleTimeout(time.Minute), WithClock(clock.Now))
	require.NoError(t, err)
	m.Pin("keep")
	_, err = m.CreateWithID("keep", DefaultConfig())
	require.NoError(t, err)
	other, err := m.Create(DefaultConfig())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, []string{other.ID}, m.ReapIdle())
	_, err = m.Get("keep")
	assert.NoError(t, err)
}

func TestManager_ReapDisabled(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	m, err := NewManager(DefaultConfig(), WithClock(clock.Now))
	require.NoError(t, err)
	_, err = m.Create(DefaultConfig())
	require.NoError(t, err)
	clock.Advance(24 * time.Hour)
	assert.Nil(t, m.ReapIdle())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, time.Millisecond)
	assert.Equal(t, 1, m.Count())
}

func TestManager_Sinks(t *testing.T) {
	var got []FrameMetrics
	sink := SinkFunc(func(id string, fm FrameMetrics) {
		assert.Equal(t, "s", id)
		got = append(got, fm)
	})
	m, err := NewManager(DefaultConfig(), WithSinks(sink))
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.RequiredConsecutiveFrames = 1
	_, err = m.CreateWithID("s", cfg)
	require.NoError(t, err)

	_, err = m.Process("s", landmarktest.Closed().Frame())
	require.NoError(t, err)
	bad := landmarktest.Open().Frame()
	bad.Points = nil
	_, err = m.Process("s", bad)
	require.Error(t, err)

	require.Len(t, got, 1)
	assert.True(t, got[0].Blinked)
}

func TestManager_SinksSeeFramesInOrder(t *testing.T) {
	var mu sync.Mutex
	var totals []int
	sink := SinkFunc(func(_ string, fm FrameMetrics) {
		mu.Lock()
		totals = append(totals, fm.TotalBlinks)
		mu.Unlock()
	})
	m, err := NewManager(DefaultConfig(), WithSinks(sink))
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.RequiredConsecutiveFrames = 1
	_, err = m.CreateWithID("s", cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := m.Process("s", landmarktest.Closed().Frame())
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, totals, 200)
	for i, n := range totals {
		assert.Equal(t, i+1, n)
	}
}

func TestNewManager_ValidatesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClosedThreshold = -1
	_, err := NewManager(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
