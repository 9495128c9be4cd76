// Package servecmd runs the bot behind the Slack Events API webhook.
package servecmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/steadylabs/briefbot/internal/app"
	"github.com/steadylabs/briefbot/internal/configutil"
	"github.com/steadylabs/briefbot/internal/healthcheck"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the Slack Events API webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			signingSecret := strings.TrimSpace(configutil.FlagOrViperString(cmd, "slack-signing-secret", "slack.signing_secret"))
			if signingSecret == "" {
				return fmt.Errorf("missing slack.signing_secret (set via --slack-signing-secret or BRIEFBOT_SLACK_SIGNING_SECRET)")
			}
			listen := healthcheck.NormalizeListen(configutil.FlagOrViperString(cmd, "listen", "serve.listen"))
			maxConc := configutil.FlagOrViperInt(cmd, "max-concurrency", "serve.max_concurrency")

			runtime, err := app.Build(cmd.Context(), slog.Default())
			if err != nil {
				return err
			}
			defer runtime.Close()

			mux := http.NewServeMux()
			mux.Handle("/slack/events", NewWebhookHandler(signingSecret, runtime.BotUserID, runtime.Handler, maxConc, runtime.Logger))
			mux.HandleFunc("/healthz", healthcheck.Handler)

			server := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				runtime.Logger.Info("serve_start", "listen", listen)
				errCh <- server.ListenAndServe()
			}()

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
				runtime.Logger.Info("serve_stop", "reason", "context_canceled")
				return nil
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}

	cmd.Flags().String("slack-signing-secret", "", "Slack signing secret for request verification.")
	cmd.Flags().String("listen", ":8080", "Listen address for the webhook server.")
	cmd.Flags().Int("max-concurrency", 3, "Max number of events processed concurrently.")

	return cmd
}
