package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate moves into an empty directory and clears every variable Load
// reads. t.Setenv restores them, including what a .env file set.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{
		"TRANSPORT", "BOT_PREFIX", "IRIS_BASE_URL", "IRIS_WS_URL", "IRIS_BOT_USER_ID", "X_USER_ID", "X_USER_EMAIL", "X_SESSION_ID",
		"EGRESS_MODE", "EGRESS_DRYRUN", "REDIS_URL", "DISCORD_TOKEN", "ALLOWED_ROOMS", "HISTORY_LIMIT",
		"TRANSCRIPT_CAP", "RESYNC_INTERVAL_SEC", "MESSAGES_DIR",
	} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	return dir
}

func TestIrisDefaults(t *testing.T) {
	isolate(t)
	t.Setenv("IRIS_BASE_URL", "http://iris:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris:3000/ws")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ALLOWED_ROOMS", " 1, ,2 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Transport != TransportIris || cfg.BotPrefix != "!" || cfg.EgressMode != "auto" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.HistoryLimit != 100 || cfg.TranscriptCap != 500 || cfg.ResyncInterval != 5*time.Minute {
		t.Fatalf("limits = %+v", cfg)
	}
	if len(cfg.AllowedRooms) != 2 || !cfg.RoomAllowed("2") || cfg.RoomAllowed("3") {
		t.Fatalf("rooms = %v", cfg.AllowedRooms)
	}
}

func TestRequiredPerTransport(t *testing.T) {
	isolate(t)
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "IRIS_BASE_URL") {
		t.Fatalf("expected IRIS_BASE_URL error, got %v", err)
	}
	t.Setenv("TRANSPORT", "Discord")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "DISCORD_TOKEN") {
		t.Fatalf("expected DISCORD_TOKEN error, got %v", err)
	}
	t.Setenv("DISCORD_TOKEN", "tok")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.RoomAllowed("anything") {
		t.Fatalf("empty allow list must allow every room")
	}
	t.Setenv("TRANSPORT", "irc")
	if _, err := Load(); err == nil {
		t.Fatalf("unknown transport accepted")
	}
}

func TestOverridesAndDotEnv(t *testing.T) {
	dir := isolate(t)
	env := "TRANSPORT=discord\nDISCORD_TOKEN=from-file\nBOT_PREFIX=/\nHISTORY_LIMIT=250\nRESYNC_INTERVAL_SEC=30\nEGRESS_DRYRUN=true\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DISCORD_TOKEN", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DiscordToken != "from-env" {
		t.Fatalf("environment must win over .env, got %q", cfg.DiscordToken)
	}
	if cfg.BotPrefix != "/" || cfg.HistoryLimit != 250 || cfg.ResyncInterval != 30*time.Second || !cfg.EgressDryRun {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestHistoryMustFitTranscript(t *testing.T) {
	isolate(t)
	t.Setenv("IRIS_BASE_URL", "http://iris")
	t.Setenv("IRIS_WS_URL", "ws://iris")
	t.Setenv("REDIS_URL", "redis://r")
	t.Setenv("HISTORY_LIMIT", "600")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "TRANSCRIPT_CAP") {
		t.Fatalf("expected cap error, got %v", err)
	}
	t.Setenv("EGRESS_MODE", "smtp")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "EGRESS_MODE") {
		t.Fatalf("expected egress error, got %v", err)
	}
}
