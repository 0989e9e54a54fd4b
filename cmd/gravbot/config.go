package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/bot"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/store"
	"github.com/brensch/gravbot/transport"
	"github.com/joho/godotenv"
)

const envPrefix = "GRAVBOT_"

type config struct {
	Transport transport.Config
	Pool      scan.Config
	Bot       bot.Config
	Archive   store.ArchiveConfig

	// Empty FeedAddr or Archive.OutDir disables that observer.
	FeedAddr string
	TUI      bool

	LogFormat string
	LogLevel  string
	LogFile   string
}

func defaultConfig() config {
	return config{
		Transport: transport.DefaultConfig(),
		Pool:      scan.DefaultConfig(),
		Bot:       bot.DefaultConfig(),
		Archive:   store.DefaultArchiveConfig(),
		LogFormat: "text",
		LogLevel:  "info",
	}
}

// loadConfig layers defaults, the .env file, the environment and flags, in
// that order. getenv is os.Getenv outside tests.
func loadConfig(args []string, getenv func(string) string, stderr io.Writer) (config, error) {
	cfg := defaultConfig()

	envFile := envFileArg(args)
	if envFile == "" {
		envFile = getenv(envPrefix + "ENV_FILE")
	}
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read %s: %w", envFile, err)
	}
	lookup := func(key string) string {
		if v := getenv(envPrefix + key); v != "" {
			return v
		}
		return dotenv[envPrefix+key]
	}

	velocities := joinFloats(cfg.Bot.Targeting.Velocities)
	mode := cfg.Bot.Targeting.Mode.String()
	names := strings.Join(cfg.Bot.Names, ",")

	var errs []error
	str := func(dst *string, key string) {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}
	num := func(dst *int, key string) {
		if v := lookup(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(dst *time.Duration, key string) {
		if v := lookup(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str(&cfg.Transport.Address, "ADDR")
	dur(&cfg.Transport.RetryInterval, "RETRY_INTERVAL")
	dur(&cfg.Transport.RetryFor, "RETRY_FOR")
	num(&cfg.Pool.Workers, "WORKERS")
	num(&cfg.Pool.ChunkSize, "CHUNK_SIZE")
	str(&velocities, "VELOCITIES")
	str(&mode, "MODE")
	str(&names, "NAMES")
	str(&cfg.Archive.OutDir, "ARCHIVE_DIR")
	num(&cfg.Archive.RowsPerFile, "ARCHIVE_ROWS")
	str(&cfg.FeedAddr, "FEED_ADDR")
	str(&cfg.LogFormat, "LOG_FORMAT")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.LogFile, "LOG_FILE")
	if v := lookup("SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSEED: %w", envPrefix, err))
		} else {
			cfg.Bot.Seed = seed
		}
	}
	if v := lookup("TUI"); v != "" {
		tui, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sTUI: %w", envPrefix, err))
		} else {
			cfg.TUI = tui
		}
	}
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}

	fset := flag.NewFlagSet("gravbot", flag.ContinueOnError)
	fset.SetOutput(stderr)
	fset.String("env-file", envFile, "Optional .env file with GRAVBOT_* settings")
	fset.StringVar(&cfg.Transport.Address, "addr", cfg.Transport.Address, "Game server address")
	fset.DurationVar(&cfg.Transport.RetryInterval, "retry-interval", cfg.Transport.RetryInterval, "Pause between connection attempts")
	fset.DurationVar(&cfg.Transport.RetryFor, "retry-for", cfg.Transport.RetryFor, "Give up connecting after this long (0 retries forever)")
	fset.IntVar(&cfg.Pool.Workers, "workers", cfg.Pool.Workers, "Scan worker goroutines")
	fset.IntVar(&cfg.Pool.ChunkSize, "chunk-size", cfg.Pool.ChunkSize, "Shots per scan work item")
	fset.StringVar(&velocities, "velocities", velocities, "Comma separated launch velocities, tried in order")
	fset.StringVar(&mode, "mode", mode, "Hit mode: target or players")
	fset.StringVar(&names, "names", names, "Comma separated display names")
	fset.Uint64Var(&cfg.Bot.Seed, "seed", cfg.Bot.Seed, "Random seed for target and name choice")
	fset.StringVar(&cfg.Archive.OutDir, "archive-dir", cfg.Archive.OutDir, "Parquet shot archive directory (empty disables)")
	fset.IntVar(&cfg.Archive.RowsPerFile, "archive-rows", cfg.Archive.RowsPerFile, "Searches per parquet file")
	fset.StringVar(&cfg.FeedAddr, "feed-addr", cfg.FeedAddr, "Websocket feed listen address, e.g. :8090 (empty disables)")
	fset.BoolVar(&cfg.TUI, "tui", cfg.TUI, "Show the terminal dashboard")
	fset.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json or pretty")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fset.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to this file instead of stderr")
	if err := fset.Parse(args); err != nil {
		return cfg, err
	}

	if cfg.Bot.Targeting.Velocities, err = parseFloats(velocities); err != nil {
		return cfg, fmt.Errorf("velocities: %w", err)
	}
	if cfg.Bot.Targeting.Mode, err = parseMode(mode); err != nil {
		return cfg, err
	}
	cfg.Bot.Names = splitList(names)

	return cfg, cfg.validate()
}

func (c config) validate() error {
	if c.Transport.Address == "" {
		return errors.New("addr is required")
	}
	if c.Pool.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Pool.Workers)
	}
	if c.Pool.ChunkSize <= 0 {
		return fmt.Errorf("chunk-size must be positive, got %d", c.Pool.ChunkSize)
	}
	if len(c.Bot.Names) == 0 {
		return errors.New("at least one name is required")
	}
	return c.Bot.Targeting.Validate()
}

// envFileArg finds -env-file before the full flag set exists, since the file
// supplies that flag set's defaults.
func envFileArg(args []string) string {
	for i, a := range args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "env-file" {
			continue
		}
		if hasValue {
			return value
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func parseMode(s string) (ballistics.Mode, error) {
	switch strings.ToLower(s) {
	case "target":
		return ballistics.ModeTarget, nil
	case "players":
		return ballistics.ModePlayers, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func parseFloats(s string) ([]float64, error) {
	var out []float64
	for _, part := range splitList(s) {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, f := range vals {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
