// irischeck probes the Iris bridge and the transcript mirror with the bot's
// configuration: /config over HTTP, a short WebSocket listen, and the newest
// transcript entries of one room.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	appcfg "github.com/park285/matchmatrix-bot/internal/config"
	"github.com/park285/matchmatrix-bot/internal/irisfast"
	"github.com/park285/matchmatrix-bot/internal/transcript"
)

func main() {
	room := flag.String("room", "", "room whose transcript is printed")
	entries := flag.Int("n", 10, "transcript entries to print")
	listen := flag.Duration("listen", 10*time.Second, "how long to print WebSocket messages")
	flag.Parse()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if cfg.Transport != appcfg.TransportIris {
		log.Fatalf("TRANSPORT is %s; irischeck needs iris", cfg.Transport)
	}

	headers := func() map[string]string {
		m := map[string]string{}
		if cfg.XUserID != "" {
			m["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			m["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			m["X-Session-Id"] = cfg.XSessionID
		}
		return m
	}

	client := irisfast.NewClient(cfg.IrisBaseURL,
		irisfast.WithHeaderProvider(headers),
		irisfast.WithTimeout(8*time.Second),
		irisfast.WithRetry(1),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	icfg, err := client.GetConfig(ctx)
	cancel()
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: port=%d polling=%d rate=%d endpoint=%s", icfg.Port, icfg.PollingSpeed, icfg.MessageRate, icfg.WebserverEndpoint)
	}

	checkTranscript(cfg, *room, *entries)

	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *irisfast.Message) {
		fmt.Printf("WS msg room=%s user=%s from=%s text=%q\n", msg.Room, msg.UserID(), msg.SenderName(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	<-time.After(*listen)
	_ = ws.Close(context.Background())
}

func checkTranscript(cfg *appcfg.AppConfig, room string, n int) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("REDIS_URL error: %v", err)
		return
	}
	rdb := redis.NewClient(opt)
	defer func() { _ = rdb.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("redis error: %v", err)
		return
	}
	log.Printf("redis ok")
	if room == "" {
		return
	}
	recent, err := transcript.NewStore(rdb, cfg.TranscriptCap).Recent(ctx, room, n)
	if err != nil {
		log.Printf("transcript error: %v", err)
		return
	}
	for _, e := range recent {
		who := e.UserID
		if e.FromBot {
			who = "bot"
		}
		fmt.Printf("%s %-8s %s %q\n", e.At.Format(time.RFC3339), who, e.ID, e.Text)
	}
}
