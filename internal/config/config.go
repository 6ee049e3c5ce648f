package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/park285/matchmatrix-bot/internal/obslog"
)

const (
	TransportIris    = "iris"
	TransportDiscord = "discord"
)

type AppConfig struct {
	Transport string
	BotPrefix string

	IrisBaseURL string
	IrisWSURL   string
	// IrisBotUserID is the bot's own KakaoTalk user id; its echoed messages
	// are not mirrored as user traffic.
	IrisBotUserID string

	XUserID    string
	XUserEmail string
	XSessionID string

	// EgressMode is http, ws or auto.
	EgressMode   string
	EgressDryRun bool

	RedisURL      string
	TranscriptCap int

	DiscordToken string

	AllowedRooms []string

	HistoryLimit   int
	ResyncInterval time.Duration
	MessagesDir    string

	Log obslog.Options
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over the file.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{
		Transport:      TransportIris,
		BotPrefix:      "!",
		EgressMode:     "auto",
		TranscriptCap:  500,
		HistoryLimit:   100,
		ResyncInterval: 5 * time.Minute,
	}

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("TRANSPORT"))); v != "" {
		cfg.Transport = v
	}
	if v := strings.TrimSpace(os.Getenv("BOT_PREFIX")); v != "" {
		cfg.BotPrefix = v
	}

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	cfg.IrisBotUserID = strings.TrimSpace(os.Getenv("IRIS_BOT_USER_ID"))

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("EGRESS_MODE"))); v != "" {
		cfg.EgressMode = v
	}
	if v := strings.TrimSpace(os.Getenv("EGRESS_DRYRUN")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.EgressDryRun = b
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DiscordToken = strings.TrimSpace(os.Getenv("DISCORD_TOKEN"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		parts := strings.Split(v, ",")
		for _, p := range parts {
			s := strings.TrimSpace(p)
			if s != "" {
				cfg.AllowedRooms = append(cfg.AllowedRooms, s)
			}
		}
	}

	if v := strings.TrimSpace(os.Getenv("HISTORY_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TRANSCRIPT_CAP")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TranscriptCap = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RESYNC_INTERVAL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ResyncInterval = time.Duration(n) * time.Second
		}
	}

	cfg.Log = obslog.OptionsFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.EgressMode {
	case "http", "ws", "auto":
	default:
		return fmt.Errorf("EGRESS_MODE must be http, ws or auto, got %q", c.EgressMode)
	}
	switch c.Transport {
	case TransportIris:
		if c.IrisBaseURL == "" {
			return errors.New("IRIS_BASE_URL is required")
		}
		if c.IrisWSURL == "" {
			return errors.New("IRIS_WS_URL is required")
		}
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	case TransportDiscord:
		if c.DiscordToken == "" {
			return errors.New("DISCORD_TOKEN is required")
		}
	default:
		return fmt.Errorf("TRANSPORT must be %s or %s, got %q", TransportIris, TransportDiscord, c.Transport)
	}
	if c.HistoryLimit > c.TranscriptCap && c.Transport == TransportIris {
		return fmt.Errorf("HISTORY_LIMIT (%d) exceeds TRANSCRIPT_CAP (%d)", c.HistoryLimit, c.TranscriptCap)
	}
	return nil
}

// RoomAllowed reports whether room passes ALLOWED_ROOMS; an empty list allows
// every room.
func (c *AppConfig) RoomAllowed(room string) bool {
	if len(c.AllowedRooms) == 0 {
		return true
	}
	for _, r := range c.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}
