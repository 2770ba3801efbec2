package storage

import (
	"context"
	"database/sql"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atr-radar.klederson.com/internal/position"
)

func TestExport(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := position.NewPointStore(position.DefaultStoreConfig())
	add := func(tag string, x, y float64, ms int) {
		store.AddPositionPoint(position.PositionPoint{
			TagID: tag, X: x, Y: y, Z: 1, Timestamp: base.Add(time.Duration(ms) * time.Millisecond),
		})
	}
	add("A", 1, 1, 0)
	add("A", 2, 2, 100)
	add("A", 4, 4, 700) // releases the mean of the 100 ms point
	add("B", math.NaN(), 0, 0)

	path := filepath.Join(t.TempDir(), "export.db")
	res, err := Export(context.Background(), path, "test.csv", store)
	require.NoError(t, err)
	assert.Equal(t, ExportResult{RunID: 1, Tags: 2, Points: 4, Significant: 3}, res)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var tags, points, significant int
	var source string
	require.NoError(t, db.QueryRow(
		`SELECT source, tags, points, significant FROM export_runs WHERE run_id = 1`,
	).Scan(&source, &tags, &points, &significant))
	assert.Equal(t, "test.csv", source)
	assert.Equal(t, 2, tags)
	assert.Equal(t, 4, points)
	assert.Equal(t, 3, significant)

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM positions WHERE run_id = 1 AND tag_id = 'A' AND significant = 1`,
	).Scan(&n))
	assert.Equal(t, 2, n)

	var x sql.NullFloat64
	require.NoError(t, db.QueryRow(
		`SELECT x FROM positions WHERE tag_id = 'B' AND significant = 0`,
	).Scan(&x))
	assert.False(t, x.Valid)

	var ts int64
	require.NoError(t, db.QueryRow(
		`SELECT ts_unix_ns FROM positions WHERE tag_id = 'A' AND significant = 1 ORDER BY ts_unix_ns DESC LIMIT 1`,
	).Scan(&ts))
	assert.Equal(t, base.Add(700*time.Millisecond).UnixNano(), ts)

	var meanX float64
	require.NoError(t, db.QueryRow(
		`SELECT mean_x FROM tag_stats WHERE run_id = 1 AND tag_id = 'A'`,
	).Scan(&meanX))
	assert.InDelta(t, 7.0/3.0, meanX, 1e-9)

	// A second export appends a new run.
	res, err = Export(context.Background(), path, "again", store)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RunID)
}

func TestExportBadPath(t *testing.T) {
	store := position.NewPointStore(position.DefaultStoreConfig())
	_, err := Export(context.Background(), filepath.Join(t.TempDir(), "missing", "x.db"), "", store)
	assert.Error(t, err)
}
