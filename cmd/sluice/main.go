package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	serverrun "github.com/sluicelabs/sluice/internal/cmd/server"
	cfgpkg "github.com/sluicelabs/sluice/internal/config"
	logpkg "github.com/sluicelabs/sluice/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	level := os.Getenv("SLUICE_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	format := os.Getenv("SLUICE_LOG_FORMAT")
	var formatter logpkg.Formatter = &logpkg.TextFormatter{}
	if format == "json" {
		formatter = &logpkg.JSONFormatter{}
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(formatter),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "sluice",
		Short: "Sluice broker CLI",
		Long:  "Sluice is a single-node durable message broker. This CLI starts the server.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Sluice broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			bindHost, _ := cmd.Flags().GetString("bind-host")
			bindPort, _ := cmd.Flags().GetInt("bind-port")
			dataDir, _ := cmd.Flags().GetString("data-dir")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			if cmd.Flags().Changed("bind-host") {
				cfg.BindHost = bindHost
			}
			if cmd.Flags().Changed("bind-port") {
				cfg.BindPort = bindPort
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := serverrun.Run(ctx, cfg, logger); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serveCmd.Flags().String("config", "", "Path to a JSON or YAML config file")
	serveCmd.Flags().String("bind-host", "", "Override bind_host")
	serveCmd.Flags().Int("bind-port", 0, "Override bind_port")
	serveCmd.Flags().String("data-dir", "", "Override data_dir")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
