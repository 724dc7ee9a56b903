package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edgeplane/edgeplane/client"
	"github.com/edgeplane/edgeplane/server"
	"github.com/edgeplane/edgeplane/sim"
)

var (
	watchURL      string // WebSocket endpoint to watch
	startOnWatch  bool   // Send start_inference after connecting
	watchLiveness time.Duration
)

// watchCmd attaches a client session to a running server and renders
// throttled snapshots to the log.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a running server's telemetry stream",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadFileConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		if cmd.Flags().Changed("url") {
			cfg.Client.URL = watchURL
		}
		liveness := cfg.LivenessInterval()
		if cmd.Flags().Changed("liveness") {
			liveness = watchLiveness
		}

		sess := client.New(cfg.ClientConfig(), client.RenderFunc(renderSummary))
		defer sess.Close()
		sess.OnInferenceResult(func(p server.InferencePayload) {
			logrus.Infof("inference result: %d detections in %d ms", len(p.Detections), p.InferenceTime)
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if startOnWatch {
			// Give the dial a moment, then request inference start.
			go func() {
				time.Sleep(time.Second)
				if err := sess.Send(server.Command{Type: server.CmdStartInference}); err != nil {
					logrus.Warnf("start_inference not sent: %v", err)
				}
			}()
		}

		// The periodic liveness check: a session that exhausted its
		// reconnect budget stays disconnected until this loop restarts it.
		for {
			err := sess.Run(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, client.ErrReconnectExhausted):
				logrus.Warnf("disconnected, retrying in %v", liveness)
				select {
				case <-ctx.Done():
					return
				case <-time.After(liveness):
				}
			default:
				return
			}
		}
	},
}

// renderSummary is the default renderer: one log line per throttled frame.
func renderSummary(snap sim.SystemState) {
	var usage float64
	for _, core := range snap.CPU.Cores {
		usage += core.UsagePct
	}
	if n := len(snap.CPU.Cores); n > 0 {
		usage /= float64(n)
	}
	logrus.Infof("cpu %.1f%% | mem %d/%d MB (pressure %.1f%%, frag %.1f%%) | npu %.1f%% running=%v detections=%d",
		usage, snap.Memory.UsedMB, snap.Memory.TotalMB, snap.Memory.PressurePct,
		snap.Memory.FragmentationPct, snap.AI.NPUUsagePct, snap.AI.IsRunning, snap.AI.DetectionCount)
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "ws://localhost:8080/ws", "WebSocket endpoint")
	watchCmd.Flags().BoolVar(&startOnWatch, "start-inference", false, "Send start_inference after connecting")
	watchCmd.Flags().DurationVar(&watchLiveness, "liveness", time.Minute, "Retry interval after reconnects are exhausted")
	rootCmd.AddCommand(watchCmd)
}
