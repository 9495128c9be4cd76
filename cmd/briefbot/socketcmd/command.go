// Package socketcmd runs the bot over Slack Socket Mode, for deployments
// without a public HTTPS endpoint.
package socketcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/steadylabs/briefbot/internal/app"
	"github.com/steadylabs/briefbot/internal/configutil"
	"github.com/steadylabs/briefbot/internal/healthcheck"
	"github.com/steadylabs/briefbot/internal/slackapi"
	"github.com/steadylabs/briefbot/internal/slackevents"
)

const reconnectDelay = 2 * time.Second

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "socket",
		Short: "Run the bot over Slack Socket Mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(viper.GetString("slack.app_token")) == "" {
				return fmt.Errorf("missing slack.app_token (set BRIEFBOT_SLACK_APP_TOKEN)")
			}

			runtime, err := app.Build(cmd.Context(), slog.Default())
			if err != nil {
				return err
			}
			defer runtime.Close()

			if health := healthcheck.StartServer(configutil.FlagOrViperString(cmd, "health-listen", "socket.health_listen")); health != nil {
				defer func() { _ = health.Close() }()
			}

			maxConc := configutil.FlagOrViperInt(cmd, "max-concurrency", "socket.max_concurrency")
			if maxConc <= 0 {
				maxConc = 3
			}
			sem := make(chan struct{}, maxConc)

			logger := runtime.Logger
			logger.Info("socket_start", "bot_user_id", runtime.BotUserID, "max_concurrency", maxConc)

			for {
				if cmd.Context().Err() != nil {
					logger.Info("socket_stop", "reason", "context_canceled")
					return nil
				}
				conn, err := runtime.Slack.ConnectSocket(cmd.Context())
				if err != nil {
					if cmd.Context().Err() != nil {
						logger.Info("socket_stop", "reason", "context_canceled")
						return nil
					}
					logger.Warn("socket_connect_error", "error", err.Error())
					if err := slackapi.SleepWithContext(cmd.Context(), reconnectDelay); err != nil {
						return nil
					}
					continue
				}
				logger.Info("socket_connected")
				readErr := consumeSocket(cmd.Context(), conn, func(envelope slackevents.SocketEnvelope) {
					ev, ok, err := slackevents.ParseSocketEnvelope(envelope, runtime.BotUserID)
					if err != nil {
						logger.Warn("socket_event_parse_failed", "error", err.Error())
						return
					}
					if !ok {
						return
					}
					go func() {
						sem <- struct{}{}
						defer func() { <-sem }()
						runtime.Handler.HandleEvent(context.Background(), ev)
					}()
				})
				_ = conn.Close()
				if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded) {
					logger.Warn("socket_read_error", "error", readErr.Error())
				}
			}
		},
	}

	cmd.Flags().Int("max-concurrency", 3, "Max number of events processed concurrently.")
	cmd.Flags().String("health-listen", "", "Optional listen address for a /healthz endpoint.")

	return cmd
}

// consumeSocket reads envelopes until the connection drops, acknowledging
// every envelope_id before handing the payload to onEnvelope.
func consumeSocket(ctx context.Context, conn *websocket.Conn, onEnvelope func(slackevents.SocketEnvelope)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var envelope slackevents.SocketEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if strings.TrimSpace(envelope.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": envelope.EnvelopeID}); err != nil {
				return err
			}
		}
		onEnvelope(envelope)
	}
}
