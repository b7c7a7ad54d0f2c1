package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	clientcmd "github.com/marcusmattus/gami-protocol-mcp/internal/cmd/client"
	serverrun "github.com/marcusmattus/gami-protocol-mcp/internal/cmd/server"
	cfgpkg "github.com/marcusmattus/gami-protocol-mcp/internal/config"
	logpkg "github.com/marcusmattus/gami-protocol-mcp/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	// initialize logger for CLI
	// Respect RELAY_LOG_LEVEL for both CLI and server start output
	level := os.Getenv("RELAY_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)

	// Redirect standard library logs (used by net/http) to our logger
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Event relay CLI",
		Long:  "Relay ingests agent events, fans them out over SSE, and bridges instances through a durable bus. This CLI manages the server and basic operations.",
	}

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the relay server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			httpAddr, _ := cmd.Flags().GetString("http")
			ringCapacity, _ := cmd.Flags().GetInt("ring-capacity")
			queueBound, _ := cmd.Flags().GetInt("queue-bound")
			heartbeatMs, _ := cmd.Flags().GetInt("heartbeat-ms")
			busURL, _ := cmd.Flags().GetString("bus-url")
			busChannel, _ := cmd.Flags().GetString("bus-channel")
			noBus, _ := cmd.Flags().GetBool("no-bus")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfgpkg.FromEnv(&cfg)
			if ringCapacity > 0 {
				cfg.Ring.Capacity = ringCapacity
			}
			if queueBound > 0 {
				cfg.Subscriber.QueueBound = queueBound
			}
			if heartbeatMs > 0 {
				cfg.Subscriber.HeartbeatIntervalMs = heartbeatMs
			}
			if busURL != "" {
				cfg.Bus.URL = busURL
			}
			if busChannel != "" {
				cfg.Bus.Channel = busChannel
			}
			if noBus {
				cfg.Bus.URL = ""
			}
			if logLevel != "" {
				_ = os.Setenv("RELAY_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("RELAY_LOG_FORMAT", logFormat)
			}

			if err := serverrun.Run(ctx, serverrun.Options{
				HTTPAddr: httpAddr,
				Config:   cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to a JSON config file")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (overrides config, default :9000)")
	serverStartCmd.Flags().Int("ring-capacity", 0, "Replay buffer capacity")
	serverStartCmd.Flags().Int("queue-bound", 0, "Per-subscriber queue bound")
	serverStartCmd.Flags().Int("heartbeat-ms", 0, "Idle heartbeat interval in ms")
	serverStartCmd.Flags().String("bus-url", "", "Durable bus URL (redis://...)")
	serverStartCmd.Flags().String("bus-channel", "", "Bus channel name (default agent-events)")
	serverStartCmd.Flags().Bool("no-bus", false, "Run without a durable bus")
	serverStartCmd.Flags().String("log-level", os.Getenv("RELAY_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("RELAY_LOG_FORMAT"), "Log format: text|json (default text)")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// event commands (publish, tail, recent, stats)
	eventCmd := clientcmd.NewEventCommand(apiURL)
	rootCmd.AddCommand(eventCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func apiURL() string {
	if v := os.Getenv("RELAY_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:9000"
}
