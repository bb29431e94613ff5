package Adhoc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"EyeTrackServer/config"
	"EyeTrackServer/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TimeOutSeconds = 5

type RegisterRequest struct {
	Id             string `json:"id"`
	IP             string `json:"ip"`
	HTTPPort       int    `json:"httpPort"`
	RPCPort        int    `json:"rpcPort"`
	ActiveSessions int    `json:"activeSessions"`
	TimeStamp      int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

// Heartbeat announces this instance to a registry server at a fixed interval.
type Heartbeat struct {
	id       string
	url      string
	ip       string
	httpPort int
	rpcPort  int
	interval time.Duration
	sessions func() int
	client   *resty.Client
}

func NewHeartbeat(reg config.Registry, ip string, httpPort, rpcPort int, sessions func() int) *Heartbeat {
	interval := reg.Interval
	if interval <= 0 {
		interval = TimeOutSeconds * time.Second
	}
	return &Heartbeat{
		id:       uuid.NewString(),
		url:      fmt.Sprintf("http://%s:%d/api/register", reg.Host, reg.Port),
		ip:       ip,
		httpPort: httpPort,
		rpcPort:  rpcPort,
		interval: interval,
		sessions: sessions,
		client:   resty.New().SetTimeout(TimeOutSeconds * time.Second),
	}
}

func (h *Heartbeat) ID() string { return h.id }

// Send posts one registration.
func (h *Heartbeat) Send(ctx context.Context) error {
	var respBody RegisterResponse
	reqBody := RegisterRequest{
		Id:             h.id,
		IP:             h.ip,
		HTTPPort:       h.httpPort,
		RPCPort:        h.rpcPort,
		ActiveSessions: h.sessions(),
		TimeStamp:      time.Now().Unix(),
	}
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&respBody).
		Post(h.url)
	if err != nil {
		return fmt.Errorf("register request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("registry returned %s: %s", resp.Status(), resp.String())
	}
	if !respBody.Success {
		return fmt.Errorf("registry rejected instance %s", h.id)
	}
	return nil
}

// SendAliveMessage registers immediately and then every interval until ctx is
// cancelled. Failures are logged and retried on the next tick.
func (h *Heartbeat) SendAliveMessage(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	send := func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Log().Error("SendAliveMessage panic recovered", zap.Any("panic", r))
			}
		}()
		if err := h.Send(ctx); err != nil && ctx.Err() == nil {
			logger.Log().Error("Registry heartbeat failed", zap.String("url", h.url), zap.Error(err))
		}
	}
	send()
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			send()
		}
	}
}

// GetOutboundIP reports the local address used for outbound traffic. Dialing
// UDP sends no packets; it only consults the routing table.
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
