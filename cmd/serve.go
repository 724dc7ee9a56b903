package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edgeplane/edgeplane/server"
)

var (
	listenAddr string // HTTP + WebSocket listen address
	seed       int64  // Master seed for the partitioned RNG
	traceFile  string // Optional JSONL snapshot trace output
)

// serveCmd runs the control plane until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telemetry and control-plane server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := LoadFileConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}

		// Flags override file values.
		if cmd.Flags().Changed("addr") {
			cfg.ListenAddr = listenAddr
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if cmd.Flags().Changed("trace") {
			cfg.TraceFile = traceFile
		}

		srv, err := server.New(cfg.ServerOptions())
		if err != nil {
			logrus.Fatalf("Failed to build server: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			logrus.Fatalf("Server error: %v", err)
		}
		logrus.Info("server stopped")
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "Listen address for HTTP and WebSocket")
	serveCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for deterministic simulation")
	serveCmd.Flags().StringVar(&traceFile, "trace", "", "Write a JSONL snapshot trace to this file")
	rootCmd.AddCommand(serveCmd)
}
