package main

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/transport"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env")}, envMap(nil), io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Transport.Address != transport.DefaultConfig().Address {
		t.Errorf("addr = %q", cfg.Transport.Address)
	}
	if !slices.Equal(cfg.Bot.Targeting.Velocities, []float64{10, 11, 12}) {
		t.Errorf("velocities = %v", cfg.Bot.Targeting.Velocities)
	}
	if cfg.Bot.Targeting.Mode != ballistics.ModeTarget || cfg.TUI || cfg.FeedAddr != "" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Bot.Names) == 0 {
		t.Error("default names lost in round trip")
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), "bot.env")
	body := "GRAVBOT_ADDR=dotenv:1\nGRAVBOT_WORKERS=3\nGRAVBOT_MODE=players\nGRAVBOT_LOG_LEVEL=debug\n"
	if err := os.WriteFile(envFile, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	env := envMap(map[string]string{
		"GRAVBOT_ENV_FILE":   envFile,
		"GRAVBOT_WORKERS":    "5",
		"GRAVBOT_VELOCITIES": "8, 9",
		"GRAVBOT_RETRY_FOR":  "30s",
	})

	cfg, err := loadConfig([]string{"-velocities", "13", "-names", "Ada,Grace", "-tui"}, env, io.Discard)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Transport.Address != "dotenv:1" {
		t.Errorf("addr = %q, want value from .env", cfg.Transport.Address)
	}
	if cfg.Pool.Workers != 5 {
		t.Errorf("workers = %d, want environment over .env", cfg.Pool.Workers)
	}
	if !slices.Equal(cfg.Bot.Targeting.Velocities, []float64{13}) {
		t.Errorf("velocities = %v, want flag over environment", cfg.Bot.Targeting.Velocities)
	}
	if cfg.Transport.RetryFor != 30*time.Second || cfg.LogLevel != "debug" {
		t.Errorf("retry-for = %v log-level = %q", cfg.Transport.RetryFor, cfg.LogLevel)
	}
	if cfg.Bot.Targeting.Mode != ballistics.ModePlayers {
		t.Errorf("mode = %v", cfg.Bot.Targeting.Mode)
	}
	if !slices.Equal(cfg.Bot.Names, []string{"Ada", "Grace"}) || !cfg.TUI {
		t.Errorf("names = %v tui = %v", cfg.Bot.Names, cfg.TUI)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	cases := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"bad env int", nil, map[string]string{"GRAVBOT_WORKERS": "many"}},
		{"bad env duration", nil, map[string]string{"GRAVBOT_RETRY_FOR": "soon"}},
		{"bad mode", []string{"-mode", "everyone"}, nil},
		{"bad velocity", []string{"-velocities", "10,fast"}, nil},
		{"no velocities", []string{"-velocities", ""}, nil},
		{"zero workers", []string{"-workers", "0"}, nil},
		{"no names", []string{"-names", " , "}, nil},
		{"unknown flag", []string{"-bogus"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"-env-file=" + missing}, tc.args...)
			if _, err := loadConfig(args, envMap(tc.env), io.Discard); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigHelp(t *testing.T) {
	_, err := loadConfig([]string{"-h"}, envMap(map[string]string{"GRAVBOT_ENV_FILE": filepath.Join(t.TempDir(), "x")}), io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("err = %v, want flag.ErrHelp", err)
	}
}

func TestEnvFileArg(t *testing.T) {
	cases := map[string][]string{
		"a.env": {"-addr", "x", "-env-file", "a.env"},
		"b.env": {"--env-file=b.env"},
		"":      {"-addr", "env-file"},
	}
	for want, args := range cases {
		if got := envFileArg(args); got != want {
			t.Errorf("envFileArg(%v) = %q, want %q", args, got, want)
		}
	}
}
