package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fixserve/fixserve/pkg/config"
	"github.com/fixserve/fixserve/pkg/engine"
	"github.com/fixserve/fixserve/pkg/logging"
)

var (
	serveConfigFile string
	serveHost       string
	servePort       int
	serveRoot       string
	serveLogLevel   string
	serveLogFormat  string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fixture server",
	Long: `Start the fixture server.

By default the server binds localhost:8000 and serves the current directory.
Values from the config file are overridden by flags.`,
	Example: `  # Serve the current directory on the default port
  fixserve serve

  # Serve a test-content tree on a custom port
  fixserve serve --root ./content --port 9000

  # Start from a config file with debug logging
  fixserve serve --config fixserve.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveConfigFile, "config", "c", "", "Path to YAML configuration file")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (0 picks a free port)")
	serveCmd.Flags().StringVarP(&serveRoot, "root", "r", "", "Document root to serve")
	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&serveLogFormat, "log-format", "", "Log format (text, json)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: os.Stderr,
	})

	srv := engine.NewServer(cfg, engine.WithLogger(log))
	if err := srv.Start(); err != nil {
		return err
	}

	fmt.Printf("Fixture server running on http://%s:%d\n", cfg.Host, srv.Port())
	fmt.Println("Press Ctrl+C to stop")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return srv.Stop()
}

// loadServeConfig merges the config file (when given) with flag overrides.
func loadServeConfig() (*config.Config, error) {
	cfg := config.Default()
	if serveConfigFile != "" {
		loaded, err := config.Load(serveConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if serveRoot != "" {
		cfg.DocRoot = serveRoot
	}
	if serveLogLevel != "" {
		cfg.LogLevel = serveLogLevel
	}
	if serveLogFormat != "" {
		cfg.LogFormat = serveLogFormat
	}
	return cfg, nil
}
