// Command gravbot connects to a gravity artillery server and plays until
// interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/bot"
	"github.com/brensch/gravbot/executor/dashboard"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/feed"
	"github.com/brensch/gravbot/logging"
	"github.com/brensch/gravbot/store"
	"github.com/brensch/gravbot/transport"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "gravbot:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := loadConfig(args, os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	// The dashboard owns the terminal, so logs go to a file or nowhere.
	var logOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	} else if cfg.TUI {
		logOut = io.Discard
	}
	logger, err := logging.New(logOut, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := ballistics.NewSimulator(ballistics.DefaultConfig())
	if err != nil {
		return err
	}
	pool := scan.NewPool(sim, cfg.Pool)

	client, err := transport.Dial(ctx, cfg.Transport, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	var (
		observers []bot.Observer
		archive   *store.Archive
		hub       *feed.Hub
		dash      *dashboard.Dashboard
	)
	if cfg.Archive.OutDir != "" {
		archive = store.NewArchive(cfg.Archive, logger)
		observers = append(observers, archive)
	}
	if cfg.FeedAddr != "" {
		hub = feed.NewHub(0, logger)
		observers = append(observers, hub)
	}
	if cfg.TUI {
		dash = dashboard.New(pool.Stats)
		observers = append(observers, dash)
	}

	b, err := bot.New(client, pool, cfg.Bot, logger, observers...)
	if err != nil {
		return err
	}
	logger.Info("starting",
		"addr", cfg.Transport.Address,
		"workers", pool.Workers(),
		"mode", cfg.Bot.Targeting.Mode,
		"velocities", cfg.Bot.Targeting.Velocities,
		"archive", cfg.Archive.OutDir,
		"feed", cfg.FeedAddr,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(gctx) })
	if archive != nil {
		g.Go(func() error { return archive.Run(gctx) })
	}
	if hub != nil {
		g.Go(func() error { return hub.Run(gctx, cfg.FeedAddr) })
	}
	if dash != nil {
		g.Go(func() error {
			err := dash.Run(gctx)
			// Quitting the dashboard stops the bot.
			stop()
			return err
		})
	}

	err = g.Wait()
	stats := pool.Stats()
	logger.Info("stopped", "scans", stats.TotalScans, "samples", stats.TotalSamples, "avg_run_ms", stats.AvgRunMs)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
