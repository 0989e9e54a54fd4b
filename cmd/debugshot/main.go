// Command debugshot runs one targeting search against a scenario file and
// prints what the bot would have fired.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/brensch/gravbot/executor/scan"
	"github.com/brensch/gravbot/feed"
	"github.com/brensch/gravbot/logging"
	"github.com/brensch/gravbot/store"
)

func main() {
	scenarioPath := flag.String("scenario", "scenario.json", "Scenario JSON file")
	workers := flag.Int("workers", scan.DefaultConfig().Workers, "Scan worker goroutines")
	timeout := flag.Duration("timeout", time.Minute, "Give up after this long")
	archiveDir := flag.String("archive", "", "If set, also write the result to a parquet batch in this directory")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	logger, err := logging.New(os.Stderr, "pretty", *logLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	sc, err := loadScenario(*scenarioPath)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	rep, err := searchScenario(ctx, sc, scan.Config{Workers: *workers, ChunkSize: scan.DefaultChunkSize}, logger)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}

	// Same shape the live feed sends, so scenarios and feed captures line up.
	out, _ := json.MarshalIndent(feed.Message{Type: "search", Search: feed.SearchFromReport(rep)}, "", "  ")
	fmt.Println(string(out))

	if *archiveDir != "" {
		path, err := store.WriteShotBatchAtomic(*archiveDir, []store.ShotRow{store.FromReport(rep)})
		if err != nil {
			log.Fatalf("Failed to archive result: %v", err)
		}
		log.Printf("Result written to: %s", path)
	}
}
