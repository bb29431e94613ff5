package Adhoc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"EyeTrackServer/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(t *testing.T, handler http.HandlerFunc) config.Registry {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	host, port, err := net.SplitHostPort(ts.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return config.Registry{Enabled: true, Host: host, Port: p, Interval: 20 * time.Millisecond}
}

func TestHeartbeat_Send(t *testing.T) {
	var got RegisterRequest
	reg := registry(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(RegisterResponse{Id: got.Id, Success: true})
	})
	h := NewHeartbeat(reg, "10.0.0.2", 8080, 50051, func() int { return 3 })
	require.NoError(t, h.Send(context.Background()))
	assert.Equal(t, h.ID(), got.Id)
	assert.Equal(t, "10.0.0.2", got.IP)
	assert.Equal(t, 8080, got.HTTPPort)
	assert.Equal(t, 50051, got.RPCPort)
	assert.Equal(t, 3, got.ActiveSessions)
}

func TestHeartbeat_SendErrors(t *testing.T) {
	reg := registry(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})
	h := NewHeartbeat(reg, "10.0.0.2", 8080, 50051, func() int { return 0 })
	assert.Error(t, h.Send(context.Background()))

	reg = registry(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false}`))
	})
	h = NewHeartbeat(reg, "10.0.0.2", 8080, 50051, func() int { return 0 })
	assert.Error(t, h.Send(context.Background()))
}

func TestHeartbeat_SendAliveMessage(t *testing.T) {
	var calls atomic.Int32
	reg := registry(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	h := NewHeartbeat(reg, "10.0.0.2", 8080, 50051, func() int { return 0 })

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go h.SendAliveMessage(ctx, &wg)
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()
}
