// Package storage exports a point store to a SQLite database for offline
// analysis.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
)

const schema = `
	CREATE TABLE IF NOT EXISTS export_runs (
		run_id      INTEGER PRIMARY KEY,
		source      TEXT NOT NULL,
		exported_at TEXT NOT NULL,
		tags        INTEGER NOT NULL,
		points      INTEGER NOT NULL,
		significant INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS positions (
		run_id      INTEGER NOT NULL,
		tag_id      TEXT NOT NULL,
		ts_unix_ns  INTEGER NOT NULL,
		x           REAL,
		y           REAL,
		z           REAL,
		azimuth     REAL,
		elevation   REAL,
		significant INTEGER NOT NULL,
		FOREIGN KEY (run_id) REFERENCES export_runs(run_id)
	);

	CREATE INDEX IF NOT EXISTS idx_positions_tag ON positions(run_id, tag_id, ts_unix_ns);

	CREATE TABLE IF NOT EXISTS tag_stats (
		run_id        INTEGER NOT NULL,
		tag_id        TEXT NOT NULL,
		total_points  INTEGER NOT NULL,
		window_points INTEGER NOT NULL,
		significant   INTEGER NOT NULL,
		mean_x        REAL,
		mean_y        REAL,
		stddev_x      REAL,
		stddev_y      REAL,
		first_seen    TEXT,
		last_seen     TEXT,
		PRIMARY KEY (run_id, tag_id),
		FOREIGN KEY (run_id) REFERENCES export_runs(run_id)
	);
`

// ExportResult summarizes one export.
type ExportResult struct {
	RunID       int64
	Tags        int
	Points      int
	Significant int
}

// Export writes every logged point, the confirmed points and per-tag
// statistics of store into the database at path as a new run. Existing runs
// are kept.
func Export(ctx context.Context, path, source string, store *position.PointStore) (ExportResult, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return ExportResult{}, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return ExportResult{}, fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ExportResult{}, fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO export_runs (source, exported_at, tags, points, significant) VALUES (?, ?, 0, 0, 0)`,
		source, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return ExportResult{}, fmt.Errorf("insert run: %w", err)
	}
	out := ExportResult{}
	if out.RunID, err = res.LastInsertId(); err != nil {
		return ExportResult{}, fmt.Errorf("run id: %w", err)
	}

	ins, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (run_id, tag_id, ts_unix_ns, x, y, z, azimuth, elevation, significant)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return ExportResult{}, fmt.Errorf("prepare positions: %w", err)
	}
	defer ins.Close()

	insert := func(p position.PositionPoint) error {
		_, err := ins.ExecContext(ctx, out.RunID, p.TagID, p.Timestamp.UnixNano(),
			nullable(p.X), nullable(p.Y), nullable(p.Z), p.Azimuth, p.Elevation, p.Significant)
		return err
	}

	for _, id := range store.TagIDs() {
		for _, p := range store.AllPoints(id) {
			if err := insert(p); err != nil {
				return ExportResult{}, fmt.Errorf("insert point of %s: %w", id, err)
			}
			out.Points++
		}
		out.Tags++
	}
	// Confirmed points: synthesized ones never appear in the raw log.
	for _, p := range store.SignificantPoints("") {
		if err := insert(p); err != nil {
			return ExportResult{}, fmt.Errorf("insert significant point of %s: %w", p.TagID, err)
		}
		out.Significant++
	}

	for _, st := range store.Stats() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tag_stats (run_id, tag_id, total_points, window_points, significant,
				mean_x, mean_y, stddev_x, stddev_y, first_seen, last_seen)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			out.RunID, st.TagID, st.TotalPoints, st.WindowPoints, st.Significant,
			nullable(st.MeanX), nullable(st.MeanY), nullable(st.StdDevX), nullable(st.StdDevY),
			st.FirstSeen.UTC().Format(time.RFC3339Nano), st.LastSeen.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return ExportResult{}, fmt.Errorf("insert stats of %s: %w", st.TagID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE export_runs SET tags = ?, points = ?, significant = ? WHERE run_id = ?`,
		out.Tags, out.Points, out.Significant, out.RunID); err != nil {
		return ExportResult{}, fmt.Errorf("update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ExportResult{}, fmt.Errorf("commit export: %w", err)
	}

	logging.Info().
		Str("db", path).
		Int64("run", out.RunID).
		Int("tags", out.Tags).
		Int("points", out.Points).
		Int("significant", out.Significant).
		Msg("exported to sqlite")
	return out, nil
}

// nullable stores NaN and infinities as NULL; SQLite has no representation
// for them.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
