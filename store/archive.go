// Package store archives finished searches as parquet files for later
// analysis with DuckDB.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/brensch/gravbot/executor/bot"
)

type ArchiveConfig struct {
	OutDir        string
	RowsPerFile   int
	FlushInterval time.Duration
	QueueSize     int
}

func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		OutDir:        "data/shots",
		RowsPerFile:   500,
		FlushInterval: time.Minute,
		QueueSize:     256,
	}
}

// Archive is a bot.Observer that writes every search report to parquet from
// its own goroutine. Reports that arrive while the queue is full are dropped
// and counted.
type Archive struct {
	cfg    ArchiveConfig
	in     chan ShotRow
	logger *slog.Logger

	written atomic.Int64
	dropped atomic.Int64
}

func NewArchive(cfg ArchiveConfig, logger *slog.Logger) *Archive {
	if cfg.RowsPerFile <= 0 {
		cfg.RowsPerFile = DefaultArchiveConfig().RowsPerFile
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultArchiveConfig().QueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{
		cfg:    cfg,
		in:     make(chan ShotRow, cfg.QueueSize),
		logger: logger.With("component", "archive", "dir", cfg.OutDir),
	}
}

func (a *Archive) RecordSearch(rep bot.SearchReport) {
	select {
	case a.in <- FromReport(rep):
	default:
		a.dropped.Add(1)
	}
}

func (a *Archive) RecordWorld(bot.WorldReport) {}

func (a *Archive) Written() int64 { return a.written.Load() }
func (a *Archive) Dropped() int64 { return a.dropped.Load() }

// Run writes queued rows until ctx is done, then flushes what is left.
func (a *Archive) Run(ctx context.Context) error {
	var bw *BatchWriter

	flush := func() error {
		if bw == nil {
			return nil
		}
		path, rows, err := bw.Finalize()
		bw = nil
		if err != nil {
			return fmt.Errorf("finalize shot batch: %w", err)
		}
		if rows > 0 {
			a.written.Add(int64(rows))
			a.logger.Info("wrote shot batch", "path", path, "rows", rows)
		}
		return nil
	}

	write := func(row ShotRow) error {
		if bw == nil {
			var err error
			if bw, err = NewBatchWriter(a.cfg.OutDir); err != nil {
				return err
			}
		}
		if err := bw.WriteRows([]ShotRow{row}); err != nil {
			return fmt.Errorf("write shot row: %w", err)
		}
		if bw.BufferedRows() >= a.cfg.RowsPerFile {
			return flush()
		}
		return nil
	}

	var tick <-chan time.Time
	if a.cfg.FlushInterval > 0 {
		t := time.NewTicker(a.cfg.FlushInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case row := <-a.in:
			if err := write(row); err != nil {
				return err
			}
		case <-tick:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			for {
				select {
				case row := <-a.in:
					if err := write(row); err != nil {
						return err
					}
				default:
					if d := a.dropped.Load(); d > 0 {
						a.logger.Warn("dropped shot rows", "count", d)
					}
					return flush()
				}
			}
		}
	}
}
