package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/brensch/gravbot/ballistics"
	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/executor/targeting"
)

const straightShot = `{
  "own_id": 1,
  "target_id": 2,
  "velocities": [10],
  "planets": [{"id": 0, "x": 1800, "y": 1000, "radius": 5, "mass": 0}],
  "players": [{"id": 1, "x": 200, "y": 500}, {"id": 2, "x": 400, "y": 500}]
}`

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSearchScenarioStraightShot(t *testing.T) {
	sc, err := loadScenario(writeScenario(t, straightShot))
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	rep, err := searchScenario(context.Background(), sc, scan.Config{Workers: 2, ChunkSize: 100}, nil)
	if err != nil {
		t.Fatalf("searchScenario: %v", err)
	}
	if rep.Result.Status != targeting.Found || rep.Result.HitID != 2 {
		t.Fatalf("result = %+v", rep.Result)
	}
	if math.Abs(rep.Degrees) > 1 {
		t.Errorf("degrees = %v, want about 0", rep.Degrees)
	}
	if rep.Self.X() != 200 || rep.Target.X() != 400 || rep.Planets != 1 || rep.Players != 2 {
		t.Errorf("report = %+v", rep)
	}
}

func TestScenarioTargetingConfig(t *testing.T) {
	cfg, err := scenario{Mode: "players"}.targeting()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Mode != ballistics.ModePlayers || len(cfg.Velocities) != len(targeting.DefaultConfig().Velocities) {
		t.Errorf("cfg = %+v", cfg)
	}
	if _, err := (scenario{Mode: "nobody"}).targeting(); err == nil {
		t.Error("unknown mode accepted")
	}
	if _, err := (scenario{Velocities: []float64{-1}}).targeting(); err == nil {
		t.Error("negative velocity accepted")
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	if _, err := loadScenario(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := loadScenario(writeScenario(t, "{")); err == nil {
		t.Error("truncated json accepted")
	}
	sc, err := loadScenario(writeScenario(t, `{"own_id": 9, "players": [{"id": 1}], "planets": [{"id": 0, "radius": 1}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sc.snapshot(); err == nil {
		t.Error("snapshot without own player accepted")
	}
}
