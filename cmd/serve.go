package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/minutetrack/internal/api"
	"github.com/minutetrack/internal/chat"
	"github.com/minutetrack/internal/config"
	"github.com/minutetrack/internal/engine"
	"github.com/minutetrack/internal/logging"
	"github.com/minutetrack/internal/minutes"
	"github.com/minutetrack/internal/tracker/github"
)

// ServeCommand returns the CLI command that runs the bot.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Connect to chat and start tracking meetings",
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logging.Setup(c.String("log-level"), c.Bool("pretty"))

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	tracker := github.NewClient(github.Options{
		BaseURL:           cfg.GitHub.BaseURL,
		Token:             cfg.GitHub.Token,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	})

	channels := make(map[string]minutes.ChannelInfo, len(cfg.Channels))
	names := make([]string, 0, len(cfg.Channels))
	for name, ch := range cfg.Channels {
		channels[name] = minutes.ChannelInfo{
			Group:           ch.Group,
			ReposAllowed:    ch.ReposAllowed,
			ResolutionsOnly: ch.ResolutionsOnly,
		}
		names = append(names, name)
	}

	client, err := chat.Dial(chat.Config{
		Server:   cfg.Chat.Server,
		UseTLS:   cfg.Chat.UseTLS,
		Nick:     cfg.Bot.Nick,
		Realname: cfg.Chat.Realname,
		Channels: names,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to chat: %w", err)
	}

	eng := engine.New(engine.Config{
		Nick:            cfg.Bot.Nick,
		Source:          cfg.Bot.Source,
		Owners:          cfg.Bot.Owners,
		ActivityTimeout: time.Duration(cfg.Bot.ActivityTimeoutMinutes) * time.Minute,
		Channels:        channels,
	}, tracker, client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := api.NewServer(cfg.API.Port, eng).Start(ctx); err != nil {
			log.Error().Err(err).Msg("ops server stopped")
		}
	}()

	log.Info().Str("server", cfg.Chat.Server).Strs("channels", names).Msg("connected, tracking meetings")
	runErr := client.Run(ctx, eng.HandleLine)

	// Post any topics still open before exiting.
	eng.Close()
	client.Close()

	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	return nil
}
