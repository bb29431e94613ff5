package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"EyeTrackServer/config"
	"EyeTrackServer/logger"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "eyetrack",
	Short:         "Eye closure, blink and head pose metrics from facial landmarks",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		opts := logger.Options{Level: cfg.LogLevel, File: cfg.LogFile}
		// Interactive commands always log to the console.
		if cfg.Development || cmd.Name() != serveCmd.Name() {
			return logger.InitDevelopment(opts)
		}
		return logger.InitProduction(opts)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML config (default: $"+config.EnvPath+" or "+config.DefaultPath+")")
}
