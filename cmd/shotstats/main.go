// Command shotstats summarises archived searches.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

func main() {
	dirs := flag.String("dirs", "data/shots", "Comma separated archive directories")
	timeout := flag.Duration("timeout", 30*time.Second, "Query timeout")
	flag.Parse()

	db, err := openShots(strings.Split(*dirs, ","))
	if err != nil {
		log.Fatalf("Failed to open archive: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	statuses, err := queryStatusSummary(ctx, db)
	if err != nil {
		log.Fatalf("Status summary failed: %v", err)
	}
	velocities, err := queryVelocities(ctx, db)
	if err != nil {
		log.Fatalf("Velocity summary failed: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tSEARCHES\tAVG MS\tAVG SAMPLES\tAVG CANDIDATES")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%d\t%.1f\t%.0f\t%.1f\n", s.Status, s.Searches, s.AvgDurationMs, s.AvgEvaluated, s.AvgCandidates)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "VELOCITY\tSHOTS")
	for _, v := range velocities {
		fmt.Fprintf(w, "%g\t%d\n", v.Velocity, v.Shots)
	}
	_ = w.Flush()
}
