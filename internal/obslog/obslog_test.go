package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel, " WARN ": zapcore.WarnLevel, "warning": zapcore.WarnLevel,
		"error": zapcore.ErrorLevel, "": zapcore.InfoLevel, "bogus": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	logger, err := New(Options{Level: "info", ToFile: true, File: path, Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("matrix_create")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"msg":"matrix_create"`) || strings.Contains(out, "hidden") {
		t.Fatalf("log = %s", out)
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := L()
	t.Cleanup(func() { globalLogger = prev })
	if err := Init(Options{Level: "error", Format: "console", Console: true}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if L() == prev {
		t.Fatalf("global logger not replaced")
	}
	if L().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("level not applied")
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_TO_FILE", "TRUE")
	t.Setenv("LOG_FILE", " /tmp/x.log ")
	o := OptionsFromEnv()
	if o.Level != "debug" || !o.ToFile || o.File != "/tmp/x.log" || !o.Console || o.Format != "legacy" {
		t.Fatalf("options = %+v", o)
	}
}
