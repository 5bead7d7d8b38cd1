package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"teamsmcp/internal/config"
	"teamsmcp/internal/server"
	"teamsmcp/pkg/logging"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath specifies a custom configuration directory path.
var serveConfigPath string

// serveTransport overrides the transport from config.yaml when set.
var serveTransport string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Teams MCP server",
	Long: `Starts the MCP server exposing the Microsoft authentication tools
and the Teams chat tools.

By default the server speaks MCP over stdio, which is what editor and
assistant integrations expect. Use --transport sse or
--transport streamable-http to serve over HTTP instead.

Configuration is read from config.yaml in the configuration directory
(default ~/.config/teams-mcp), with AZURE_* environment variables taking
precedence.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging(serveDebug)

	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if serveTransport != "" {
		cfg.Server.Transport = serveTransport
	}

	srv, err := server.New(cfg, GetVersion())
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	return srv.Stop(context.Background())
}

// loadConfig resolves the configuration directory and loads config.yaml.
func loadConfig(configPath string) (config.Config, error) {
	if configPath == "" {
		configPath = config.GetDefaultConfigPathOrPanic()
	}
	return config.LoadConfig(configPath)
}

// initLogging configures the process-wide logger.
func initLogging(debug bool) {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path")
	serveCmd.Flags().StringVar(&serveTransport, "transport", "", "MCP transport: stdio, sse or streamable-http")
}
