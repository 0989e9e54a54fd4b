package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

type statusSummary struct {
	Status        string
	Searches      int64
	AvgDurationMs float64
	AvgEvaluated  float64
	AvgCandidates float64
}

type velocitySummary struct {
	Velocity float64
	Shots    int64
}

// shotsViewSQL defines the shots view over every archived batch under roots.
// Files still in a tmp/ directory are being written and are skipped.
func shotsViewSQL(roots []string) string {
	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "**", "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	if len(globs) == 0 {
		return `CREATE OR REPLACE VIEW shots AS
	SELECT * FROM (
		SELECT
			NULL::VARCHAR AS status,
			NULL::DOUBLE AS duration_ms,
			NULL::BIGINT AS evaluated,
			NULL::INTEGER AS candidates,
			NULL::DOUBLE AS velocity
	) WHERE 1=0`
	}
	return `CREATE OR REPLACE VIEW shots AS
	SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)
	WHERE NOT contains(filename, '/tmp/')`
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func openShots(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(shotsViewSQL(roots)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func queryStatusSummary(ctx context.Context, db *sql.DB) ([]statusSummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status, count(*), avg(duration_ms), avg(evaluated), avg(candidates)
		FROM shots
		GROUP BY status
		ORDER BY count(*) DESC, status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []statusSummary
	for rows.Next() {
		var s statusSummary
		if err := rows.Scan(&s.Status, &s.Searches, &s.AvgDurationMs, &s.AvgEvaluated, &s.AvgCandidates); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func queryVelocities(ctx context.Context, db *sql.DB) ([]velocitySummary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT velocity, count(*)
		FROM shots
		WHERE status = 'found'
		GROUP BY velocity
		ORDER BY velocity`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []velocitySummary
	for rows.Next() {
		var v velocitySummary
		if err := rows.Scan(&v.Velocity, &v.Shots); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
