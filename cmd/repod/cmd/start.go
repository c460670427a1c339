package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/repod-io/repod/internal/app"
	"github.com/repod-io/repod/internal/config"
)

var (
	startPort      int
	startHost      string
	startReposFile string
	startNoWatch   bool
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the repod daemon",
	Long: `Start the repod daemon to begin watching registered repositories
and serving state over HTTP and WebSocket.

The daemon loads the repository registry from ~/.repod/repos.yaml, opens
each repository, and starts a file watcher per worktree. Clients connect
to /ws for live state-change events and use the /api endpoints for status
and git operations.

Example:
  repod start                        # Default port 7850
  repod start --port 9000
  repod start --no-watch             # Poll-free mode, refresh on demand only`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().IntVar(&startPort, "port", 0, "server port for HTTP and WebSocket (default: 7850)")
	startCmd.Flags().StringVar(&startHost, "host", "", "bind address (default: 127.0.0.1)")
	startCmd.Flags().StringVar(&startReposFile, "repos", "", "repository registry file (default: ~/.repod/repos.yaml)")
	startCmd.Flags().BoolVar(&startNoWatch, "no-watch", false, "disable file watching; state refreshes on demand only")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if startPort != 0 {
		cfg.Server.Port = startPort
	}
	if startHost != "" {
		cfg.Server.Host = startHost
	}
	if startNoWatch {
		cfg.Watcher.Enabled = false
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Bool("watch", cfg.Watcher.Enabled).
		Msg("starting repod")

	application := app.New(cfg, startReposFile, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	<-ctx.Done()
	application.Stop()

	log.Info().Msg("repod stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
