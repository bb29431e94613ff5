package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"EyeTrackServer/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

var (
	Registry = prometheus.NewRegistry()

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})

	FramesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eyetrack_frames_total",
		Help: "Landmark frames handled, by outcome",
	}, []string{"outcome"})
	BlinksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eyetrack_blinks_total",
		Help: "Blinks counted across all sessions",
	})
	PoseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eyetrack_pose_failures_total",
		Help: "Frames where head pose could not be estimated",
	})
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eyetrack_active_sessions",
		Help: "Tracking sessions currently open",
	})
	GRPCTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grpc_requests_total",
		Help: "Total number of gRPC requests processed",
	})
)

// Frame outcomes used as the FramesProcessed label.
const (
	OutcomeOK         = "ok"
	OutcomeDegenerate = "degenerate"
	OutcomeRejected   = "rejected"
)

func init() {
	Registry.MustRegister(memUsage, cpuUsage, FramesProcessed, BlinksTotal, PoseFailures, ActiveSessions, GRPCTotal)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func checkProcessInfo(p *process.Process) {
	memInfo, err := p.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := p.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and samples process usage until ctx ends.
func StartMon(port int, ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server stopped", zap.Error(err))
		}
	}()

	pid, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Log().Warn("process stats unavailable", zap.Error(err))
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			if pid != nil {
				checkProcessInfo(pid)
			}
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("metrics server shutdown", zap.Error(err))
	}
}
