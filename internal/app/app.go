// Package app assembles the bot runtime shared by the webhook and Socket
// Mode commands: Slack client, model backend, tool registry, response engine
// and the relay handler on top.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/steadylabs/briefbot/agent"
	"github.com/steadylabs/briefbot/internal/mcptools"
	"github.com/steadylabs/briefbot/internal/relay"
	"github.com/steadylabs/briefbot/internal/slackapi"
	"github.com/steadylabs/briefbot/internal/v0"
	"github.com/steadylabs/briefbot/providers"
	"github.com/steadylabs/briefbot/tools"
	"github.com/steadylabs/briefbot/tools/builtin"
)

// Runtime holds everything a transport command needs to serve events.
type Runtime struct {
	Logger    *slog.Logger
	Slack     *slackapi.Client
	BotUserID string
	Handler   *relay.Handler

	mcp *mcptools.Server
}

// Build constructs the runtime from viper configuration. The Slack bot token
// is validated with auth.test up front; a bot identity that cannot be
// resolved aborts startup.
func Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	botToken := strings.TrimSpace(viper.GetString("slack.bot_token"))
	if botToken == "" {
		return nil, fmt.Errorf("missing slack.bot_token (set BRIEFBOT_SLACK_BOT_TOKEN)")
	}
	appToken := strings.TrimSpace(viper.GetString("slack.app_token"))

	httpClient := &http.Client{Timeout: 30 * time.Second}
	slack := slackapi.New(httpClient, viper.GetString("slack.api_base"), botToken, appToken)
	auth, err := slack.AuthTest(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack auth.test: %w", err)
	}
	if auth.UserID == "" {
		return nil, fmt.Errorf("slack auth.test returned empty user_id")
	}

	requestTimeout := viper.GetDuration("llm.request_timeout")
	if requestTimeout <= 0 {
		requestTimeout = 2 * time.Minute
	}
	client, err := providers.New(
		viper.GetString("llm.provider"),
		viper.GetString("llm.endpoint"),
		viper.GetString("llm.api_key"),
		requestTimeout,
	)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(viper.GetString("llm.model"))
	if model == "" {
		return nil, fmt.Errorf("missing llm.model (set BRIEFBOT_LLM_MODEL)")
	}

	reg := tools.NewRegistry()
	reg.Register(builtin.NewWebSearchTool())

	if apiKey := strings.TrimSpace(viper.GetString("v0.api_key")); apiKey != "" {
		builder := v0.NewClient(httpClient, v0.Options{
			BaseURL:     viper.GetString("v0.api_base"),
			APIKey:      apiKey,
			ProjectID:   viper.GetString("v0.project_id"),
			ProjectName: viper.GetString("v0.project_name"),
			ModelID:     viper.GetString("v0.model_id"),
		})
		reg.Register(builtin.NewUIBuildTool(builder))
	} else {
		logger.Info("v0_disabled", "reason", "no api key configured")
	}

	mcpServer, err := mcptools.Connect(ctx, mcptools.Options{
		Command:   viper.GetString("mcp.command"),
		Args:      viper.GetStringSlice("mcp.args"),
		StepLimit: viper.GetInt("mcp.step_limit"),
	})
	if err != nil {
		// Missing external tooling degrades capability, it does not stop
		// the bot.
		logger.Warn("mcp_connect_failed", "error", err.Error())
	}

	cfg := agent.Config{
		Model:        model,
		MaxAttempts:  viper.GetInt("engine.max_attempts"),
		MaxToolSteps: viper.GetInt("engine.max_tool_steps"),
	}
	engine := agent.New(client, reg, cfg, agent.WithLogger(logger))

	// MCP tools join a clone of the base registry per event so each
	// conversation gets its own step budget.
	handler := relay.New(slack, engine, auth.UserID,
		relay.WithLogger(logger),
		relay.WithHistoryLimit(viper.GetInt("slack.history_limit")),
		relay.WithTools(reg),
		relay.WithMCP(mcpServer),
	)

	logger.Info("runtime_ready",
		"bot_user_id", auth.UserID,
		"team_id", auth.TeamID,
		"model", model,
		"tools", len(reg.All()),
	)
	return &Runtime{
		Logger:    logger,
		Slack:     slack,
		BotUserID: auth.UserID,
		Handler:   handler,
		mcp:       mcpServer,
	}, nil
}

// Close releases the MCP connection if one was established.
func (r *Runtime) Close() {
	if r == nil {
		return
	}
	if err := r.mcp.Close(); err != nil {
		r.Logger.Warn("mcp_close_failed", "error", err.Error())
	}
}
