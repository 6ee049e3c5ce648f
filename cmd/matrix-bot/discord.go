package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/command"
	appcfg "github.com/park285/matchmatrix-bot/internal/config"
	"github.com/park285/matchmatrix-bot/internal/discord"
	"github.com/park285/matchmatrix-bot/internal/msgcat"
)

func runDiscord(ctx context.Context, cfg *appcfg.AppConfig, cat *msgcat.Catalog, logger *zap.Logger) error {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	dg.Identify.Intents = discord.Intents
	if err := dg.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	defer func() { _ = dg.Close() }()
	botID := dg.State.User.ID
	logger.Info("discord_ready", zap.String("bot_id", botID))

	sink := discord.NewSink(dg, botID, logger)
	ctl := newController(sink, sink, cfg, cat, logger)
	router := command.NewRouter(ctl, cat, cfg.BotPrefix, command.WithLogger(logger))
	in := discord.NewIngress(router, dg, botID, cfg.AllowedRooms, logger)
	dg.AddHandler(in.OnMessageCreate)

	sched, err := startResync(ctl, cfg.ResyncInterval, logger)
	if err != nil {
		return fmt.Errorf("resync scheduler: %w", err)
	}
	<-ctx.Done()
	return sched.Shutdown()
}
