package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"EyeTrackServer/engine"
	iface "EyeTrackServer/interface"
	"EyeTrackServer/logger"

	jsoniter "github.com/json-iterator/go"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type replayOptions struct {
	File                      string
	ClosedThreshold           float64
	RequiredConsecutiveFrames int
	NoPose                    bool
	EmitMetrics               bool
}

var replayOpts replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Feed recorded landmark frames (JSON lines) through one session",
	RunE:  runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().StringVarP(&replayOpts.File, "file", "f", "", "JSON lines file, one landmark frame per line")
	replayCmd.Flags().Float64VarP(&replayOpts.ClosedThreshold, "threshold", "t", 0, "Closed eye threshold (default from config)")
	replayCmd.Flags().IntVarP(&replayOpts.RequiredConsecutiveFrames, "frames", "n", 0, "Consecutive closed frames per blink (default from config)")
	replayCmd.Flags().BoolVar(&replayOpts.NoPose, "no-pose", false, "Skip head pose estimation")
	replayCmd.Flags().BoolVar(&replayOpts.EmitMetrics, "metrics", false, "Print per-frame metrics as JSON lines on stdout")
	_ = replayCmd.MarkFlagRequired("file")
}

type ReplaySummary struct {
	Lines            int
	Malformed        int
	Frames           uint64
	Blinks           int
	DegenerateFrames uint64
	PoseFailures     uint64
	Rejected         uint64
}

func runReplay(cmd *cobra.Command, args []string) error {
	ec := cfg.Engine()
	if replayOpts.ClosedThreshold != 0 {
		ec.ClosedThreshold = replayOpts.ClosedThreshold
	}
	if replayOpts.RequiredConsecutiveFrames != 0 {
		ec.RequiredConsecutiveFrames = replayOpts.RequiredConsecutiveFrames
	}
	if replayOpts.NoPose {
		ec.EstimatePose = false
	}

	total, err := countLines(replayOpts.File)
	if err != nil {
		return err
	}
	f, err := os.Open(replayOpts.File)
	if err != nil {
		return err
	}
	defer f.Close()

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Replaying"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	var metricsOut io.Writer
	if replayOpts.EmitMetrics {
		metricsOut = cmd.OutOrStdout()
	}
	sum, err := Replay(cmd.Context(), f, ec, metricsOut, func() { _ = bar.Add(1) })
	_ = bar.Finish()
	if err != nil {
		return err
	}

	out := cmd.ErrOrStderr()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Frames processed:  %d\n", sum.Frames)
	fmt.Fprintf(out, "Blinks:            %d\n", sum.Blinks)
	fmt.Fprintf(out, "Degenerate frames: %d\n", sum.DegenerateFrames)
	fmt.Fprintf(out, "Pose failures:     %d\n", sum.PoseFailures)
	fmt.Fprintf(out, "Rejected frames:   %d\n", sum.Rejected)
	fmt.Fprintf(out, "Malformed lines:   %d\n", sum.Malformed)
	return nil
}

// Replay processes every line of r as a landmark frame in a fresh session.
// Malformed lines are skipped; rejected frames are counted and replay goes
// on. When out is non-nil each frame's metrics are written to it as a JSON
// line.
func Replay(ctx context.Context, r io.Reader, ec engine.Config, out io.Writer, progress func()) (ReplaySummary, error) {
	var sum ReplaySummary
	sess, err := engine.NewSession("replay", ec)
	if err != nil {
		return sum, err
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		sum.Lines++
		if progress != nil {
			progress()
		}
		var lf iface.LandmarkFrame
		if err := json.Unmarshal(line, &lf); err != nil {
			sum.Malformed++
			logger.Log().Warn("Malformed frame line", zap.Int("line", sum.Lines), zap.Error(err))
			continue
		}
		m, err := sess.ProcessFrame(lf.ToFrame())
		if err != nil {
			if !errors.Is(err, engine.ErrSessionFailed) {
				logger.Log().Warn("Frame rejected", zap.Int("line", sum.Lines), zap.Error(err))
			}
			continue
		}
		if out != nil {
			raw, err := json.Marshal(iface.NewFrameMetrics(m))
			if err != nil {
				return sum, err
			}
			if _, err := fmt.Fprintf(out, "%s\n", raw); err != nil {
				return sum, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, err
	}
	st := sess.Status()
	sum.Frames = st.Stats.Frames
	sum.Blinks = st.TotalBlinks
	sum.DegenerateFrames = st.Stats.DegenerateFrames
	sum.PoseFailures = st.Stats.PoseFailures
	sum.Rejected = st.Stats.Rejected
	return sum, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		if len(scanner.Bytes()) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
