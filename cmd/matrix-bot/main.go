package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/park285/matchmatrix-bot/internal/chat"
	"github.com/park285/matchmatrix-bot/internal/command"
	appcfg "github.com/park285/matchmatrix-bot/internal/config"
	"github.com/park285/matchmatrix-bot/internal/lifecycle"
	"github.com/park285/matchmatrix-bot/internal/msgcat"
	"github.com/park285/matchmatrix-bot/internal/obslog"
)

const commandTimeout = 30 * time.Second

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.Init(cfg.Log); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("message_catalog_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("bot_start", zap.String("transport", cfg.Transport), zap.String("prefix", cfg.BotPrefix))
	switch cfg.Transport {
	case appcfg.TransportDiscord:
		err = runDiscord(ctx, cfg, cat, logger)
	default:
		err = runIris(ctx, cfg, cat, logger)
	}
	if err != nil {
		logger.Fatal("bot_error", zap.Error(err))
	}
	logger.Info("bot_stop")
}

func newController(sink chat.Sink, names chat.Resolver, cfg *appcfg.AppConfig, cat *msgcat.Catalog, logger *zap.Logger) *lifecycle.Controller {
	return lifecycle.New(sink, names,
		lifecycle.WithLogger(logger),
		lifecycle.WithHistoryLimit(cfg.HistoryLimit),
		lifecycle.WithReservedShortnames(command.Builtins()...),
		lifecycle.WithUsageHint(command.UsageHint(cat, cfg.BotPrefix)),
	)
}

// startResync retries stale grid edits on a fixed interval.
func startResync(ctl *lifecycle.Controller, interval time.Duration, logger *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if n, err := ctl.Resync(ctx); err != nil {
				logger.Warn("resync_error", zap.Int("fixed", n), zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	sched.Start()
	return sched, nil
}
