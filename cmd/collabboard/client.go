package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"collabboard/internal/client"
	"collabboard/internal/logging"
	"collabboard/pkg/types"
)

// newClientCommand connects a terminal participant to a running server,
// mirroring presence and the AI timeline to the log. Useful for watching a
// board and for exercising reconnection against a restarting server.
func newClientCommand() *cobra.Command {
	var (
		url       string
		userID    string
		userName  string
		reconnect uint64
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Join a collaboration board from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(logging.Config{
				Level:  logging.ParseLevel("info"),
				Pretty: true,
			})

			c := client.New(client.Config{
				URL:           url,
				UserID:        userID,
				UserName:      userName,
				MaxReconnects: reconnect,
			}, client.Callbacks{
				OnStateSync: func(payload map[string]interface{}) {
					logger.Info().Interface("snapshot", payload).Msg("dashboard synced")
				},
				OnStateUpdate: func(payload map[string]interface{}) {
					logger.Info().Interface("update", payload).Msg("dashboard updated")
				},
				OnForceRefresh: func() {
					logger.Warn().Msg("server requested a refresh")
				},
				OnKicked: func(reason string) {
					logger.Warn().Str("reason", reason).Msg("kicked from the board")
				},
				OnStatusChange: func(status client.Status) {
					logger.Info().Stringer("status", status).Msg("connection status changed")
				},
			}, logging.Component(logger, "client"))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := c.Connect(ctx); err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			_ = c.SendActivity(types.ActivityViewing)

			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					users := c.Users()
					logger.Info().
						Int("users", len(users)).
						Int("interactions", len(c.Interactions())).
						Stringer("status", c.Status()).
						Msg("board presence")
					if c.Status() == client.StatusFailed {
						logger.Error().Msg("reconnection gave up")
						return nil
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:8080/ws", "collaboration WebSocket endpoint")
	cmd.Flags().StringVar(&userID, "user-id", "", "user id to assert (random when empty)")
	cmd.Flags().StringVar(&userName, "name", os.Getenv("USER"), "display name")
	cmd.Flags().Uint64Var(&reconnect, "max-reconnects", 8, "reconnect attempts before giving up")
	return cmd
}
