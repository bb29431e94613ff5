package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	adhoc "EyeTrackServer/Adhoc"
	"EyeTrackServer/api"
	"EyeTrackServer/engine"
	backend "EyeTrackServer/gRPC"
	"EyeTrackServer/logger"
	"EyeTrackServer/monitor"
	"EyeTrackServer/publisher"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC metrics server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Cancelled on any return so the metrics and registry loops stop even
	// when the HTTP server fails before a signal arrives.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	printBanner(cmd.ErrOrStderr())

	var sinks []engine.Sink
	if cfg.MQTT.Enabled {
		p, err := publisher.NewMQTT(cfg.MQTT)
		if err != nil {
			return err
		}
		defer p.Close()
		sinks = append(sinks, p)
	}
	if cfg.UDP.Enabled {
		p, err := publisher.NewUDP(cfg.UDP.Addr)
		if err != nil {
			return err
		}
		defer p.Close()
		sinks = append(sinks, p)
	}

	manager, err := engine.NewManager(cfg.Engine(),
		engine.WithIdleTimeout(cfg.SessionIdleTimeout),
		engine.WithSinks(sinks...),
	)
	if err != nil {
		return err
	}
	manager.StartJanitor(ctx, janitorInterval(cfg.SessionIdleTimeout))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(cfg.MetricsPort, ctx)
	}()

	if cfg.Registry.Enabled {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			return fmt.Errorf("resolve outbound ip: %w", err)
		}
		hb := adhoc.NewHeartbeat(cfg.Registry, ip, cfg.HTTPPort, cfg.RPCPort, manager.Count)
		wg.Add(1)
		go hb.SendAliveMessage(ctx, &wg)
	} else {
		logger.Log().Info("Registry disabled, skipping registration")
	}

	server, err := backend.StartGRPCServer(cfg.RPCPort, manager)
	if err != nil {
		return err
	}

	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	err = api.NewServer(manager).Run(ctx, cfg.HTTPPort)
	cancel()
	server.GracefulStop()
	wg.Wait()
	logger.Log().Info("Safely exited")
	return err
}

func printBanner(w io.Writer) {
	line := strings.Repeat("#", 64)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, " EyeTrackServer %s  (CPU cores: %d)\n", Version, runtime.NumCPU())
	fmt.Fprintln(w, "  HTTP    Port:", cfg.HTTPPort)
	fmt.Fprintln(w, "  gRPC    Port:", cfg.RPCPort)
	fmt.Fprintln(w, "  Metrics Port:", cfg.MetricsPort)
	fmt.Fprintf(w, "  Blink threshold %.2f over %d frames, head pose %v\n",
		cfg.Blink.ClosedThreshold, cfg.Blink.RequiredConsecutiveFrames, cfg.Pose.Enabled)
	fmt.Fprintln(w, line)
	logger.Log().Debug("Loaded config", zap.Any("config", cfg))
}

func janitorInterval(idle time.Duration) time.Duration {
	if iv := idle / 10; iv > time.Second {
		return iv
	}
	return time.Second
}
