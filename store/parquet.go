package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/brensch/gravbot/executor/bot"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const shotSchema = "shot_row_v1"

var batchSeq atomic.Uint64

func batchName() string {
	return fmt.Sprintf("shots_%d_%d.parquet", time.Now().UnixNano(), batchSeq.Add(1))
}

// ShotRow is one finished search, flattened for long-term storage.
//
// Status is found, not_found or aborted. Angle, Velocity and Degrees are
// zero unless Status is found. HitID is -1 when nothing was hit.
type ShotRow struct {
	SearchID string `parquet:"search_id"`
	TimeNs   int64  `parquet:"time_ns"`
	OwnID    int32  `parquet:"own_id"`
	TargetID int32  `parquet:"target_id"`
	Mode     string `parquet:"mode,dict"`
	Version  int64  `parquet:"version"`

	Status string `parquet:"status,dict"`
	Reason string `parquet:"reason,dict,optional"`

	Angle    float64 `parquet:"angle"`
	Velocity float64 `parquet:"velocity"`
	Degrees  float64 `parquet:"degrees"`
	HitID    int32   `parquet:"hit_id"`

	SelfX   float64 `parquet:"self_x"`
	SelfY   float64 `parquet:"self_y"`
	TargetX float64 `parquet:"target_x"`
	TargetY float64 `parquet:"target_y"`
	Planets int32   `parquet:"planets"`
	Players int32   `parquet:"players"`

	BroadScans int32   `parquet:"broad_scans"`
	FineScans  int32   `parquet:"fine_scans"`
	Candidates int32   `parquet:"candidates"`
	Evaluated  int64   `parquet:"evaluated"`
	DurationMs float64 `parquet:"duration_ms"`
}

func FromReport(rep bot.SearchReport) ShotRow {
	res := rep.Result
	return ShotRow{
		SearchID:   rep.ID.String(),
		TimeNs:     rep.Time.UnixNano(),
		OwnID:      int32(rep.OwnID),
		TargetID:   int32(rep.TargetID),
		Mode:       rep.Mode.String(),
		Version:    int64(rep.Version),
		Status:     res.Status.String(),
		Reason:     res.Reason.String(),
		Angle:      res.Shot.Angle,
		Velocity:   res.Shot.Velocity,
		Degrees:    rep.Degrees,
		HitID:      int32(res.HitID),
		SelfX:      rep.Self.X(),
		SelfY:      rep.Self.Y(),
		TargetX:    rep.Target.X(),
		TargetY:    rep.Target.Y(),
		Planets:    int32(rep.Planets),
		Players:    int32(rep.Players),
		BroadScans: int32(res.Stats.BroadScans),
		FineScans:  int32(res.Stats.FineScans),
		Candidates: int32(res.Stats.Candidates),
		Evaluated:  int64(res.Stats.Evaluated),
		DurationMs: float64(res.Stats.Duration) / float64(time.Millisecond),
	}
}

// WriteShotBatchAtomic writes rows into outDir/tmp and then atomically moves
// the file into outDir, so readers never observe partial files.
func WriteShotBatchAtomic(outDir string, rows []ShotRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := batchName()
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", shotSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// ReadShots loads every row of a shot batch file.
func ReadShots(path string) ([]ShotRow, error) {
	rows, err := parquet.ReadFile[ShotRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
