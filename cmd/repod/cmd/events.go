package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

var eventsRepoID string

// eventsCmd tails the daemon's event stream.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail live state-change events from the daemon",
	Long: `Connect to the daemon's WebSocket endpoint and print events as they
arrive. Useful for debugging watchers and verifying that repository
changes are being picked up.

Examples:
  repod events                        # All repositories
  repod events --repo repo-a1b2c3d4   # One repository`,
	RunE: runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().StringVar(&eventsRepoID, "repo", "", "only show events for this repository")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))

	url := fmt.Sprintf("ws://%s:%d/ws", cfg.Server.Host, cfg.Server.Port)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("daemon not reachable at %s: %w\nStart it with: repod start", url, err)
	}
	defer conn.Close()

	if eventsRepoID != "" {
		subscribe := map[string]string{"action": "subscribe", "repo_id": eventsRepoID}
		if err := conn.WriteJSON(subscribe); err != nil {
			return fmt.Errorf("failed to subscribe: %w", err)
		}
	}

	logger.Info("connected", "url", url)

	// Close the connection on interrupt so ReadMessage unblocks.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			logger.Debug("connection closed", "err", err)
			return nil
		}
		printEvent(logger, message)
	}
}

func printEvent(logger *slog.Logger, message []byte) {
	var event struct {
		Type    string          `json:"event"`
		RepoID  string          `json:"repo_id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		logger.Warn("unparseable event", "raw", string(message))
		return
	}

	attrs := []any{"repo", event.RepoID}
	if len(event.Payload) > 0 && verbose {
		attrs = append(attrs, "payload", string(event.Payload))
	}
	logger.Info(event.Type, attrs...)
}
