package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/command"
	appcfg "github.com/park285/matchmatrix-bot/internal/config"
	"github.com/park285/matchmatrix-bot/internal/irisfast"
	"github.com/park285/matchmatrix-bot/internal/msgcat"
	"github.com/park285/matchmatrix-bot/internal/transcript"
)

func runIris(ctx context.Context, cfg *appcfg.AppConfig, cat *msgcat.Catalog, logger *zap.Logger) error {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	defer func() { _ = rdb.Close() }()
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pctx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	headers := irisHeaders(cfg)
	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	probeIris(ctx, client, logger)

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", string(state)))
	})

	out := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, logger)
	sink := irisfast.NewSink(out, transcript.NewStore(rdb, cfg.TranscriptCap), logger)
	ctl := newController(sink, sink, cfg, cat, logger)
	router := command.NewRouter(ctl, cat, cfg.BotPrefix, command.WithLogger(logger), command.WithUserLookup(sink))

	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		if !cfg.RoomAllowed(msg.Room) {
			logger.Debug("room_ignored", zap.String("room", msg.Room))
			return
		}
		if cfg.IrisBotUserID != "" && msg.UserID() == cfg.IrisBotUserID {
			return
		}
		// Mirror before dispatch so the transcript keeps arrival order.
		sink.Observe(ctx, msg)
		go handleIris(ctx, router, sink, msg, logger)
	})

	cctx, ccancel := context.WithTimeout(ctx, 10*time.Second)
	err = ws.Connect(cctx)
	ccancel()
	if err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}

	sched, err := startResync(ctl, cfg.ResyncInterval, logger)
	if err != nil {
		_ = ws.Close(context.Background())
		return fmt.Errorf("resync scheduler: %w", err)
	}

	<-ctx.Done()
	_ = sched.Shutdown()
	return ws.Close(context.Background())
}

// handleIris replies through the sink so replies land in the transcript too.
func handleIris(ctx context.Context, router *command.Router, sink *irisfast.Sink, msg *irisfast.Message, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	reply, ok := router.Handle(ctx, command.Request{
		Group:    msg.Room,
		Location: msg.Room,
		UserID:   msg.UserID(),
		Text:     msg.Msg,
	})
	if !ok || reply == "" {
		return
	}
	if _, err := sink.PostBlocks(ctx, msg.Room, []string{reply}); err != nil {
		logger.Warn("reply_error", zap.String("room", msg.Room), zap.Error(err))
	}
}

func irisHeaders(cfg *appcfg.AppConfig) irisfast.HeaderProvider {
	return func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}
}

// probeIris logs the bridge's /config; a failure is not fatal.
func probeIris(ctx context.Context, client *irisfast.Client, logger *zap.Logger) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	icfg, err := client.GetConfig(pctx)
	if err != nil {
		logger.Warn("iris_config_error", zap.Error(err))
		return
	}
	logger.Info("iris_config", zap.Int("port", icfg.Port), zap.Int("polling_speed", icfg.PollingSpeed),
		zap.Int("message_rate", icfg.MessageRate), zap.String("endpoint", icfg.WebserverEndpoint))
}
