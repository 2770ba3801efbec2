package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"atr-radar.klederson.com/internal/config"
	"atr-radar.klederson.com/internal/ingest"
	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
	"atr-radar.klederson.com/internal/report"
	"atr-radar.klederson.com/internal/storage"
)

type replayFlags struct {
	out       string
	format    string
	html      bool
	allPoints bool
	sqlite    string
	grid      int
	cell      float64
	capacity  int
}

func newReplayCmd() *cobra.Command {
	var f replayFlags

	cmd := &cobra.Command{
		Use:   "replay <file.csv>",
		Short: "Reprocess a recorded event log offline and print per-tag statistics",
		Long: `Replay reads a CSV event log (Raw_JSON and Timestamp columns), runs every
event through the position pipeline without pacing and prints per-tag
statistics. Optionally writes heatmap, trajectory and XY charts (--out)
and a SQLite export of all points (--sqlite).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.out, "out", "", "Write report images into this directory")
	fl.StringVar(&f.format, "format", "png", "Report image format: png, svg or pdf")
	fl.BoolVar(&f.html, "html", false, "Also write an interactive heatmap.html (with --out)")
	fl.BoolVar(&f.allPoints, "all-points", false, "Draw XY charts from every point instead of confirmed ones")
	fl.StringVar(&f.sqlite, "sqlite", "", "Export points and statistics to this SQLite database")
	fl.IntVar(&f.grid, "grid", 0, "Heatmap grid size in cells (default from config)")
	fl.Float64Var(&f.cell, "cell", 0, "Heatmap cell size in meters (default from config)")
	fl.IntVar(&f.capacity, "log-capacity", config.MaxAllPointsCeiling, "All-points log capacity per tag")

	return cmd
}

func runReplay(cmd *cobra.Command, path string, f replayFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if f.capacity < 1 || f.capacity > config.MaxAllPointsCeiling {
		return fmt.Errorf("--log-capacity must be in [1, %d]", config.MaxAllPointsCeiling)
	}
	if f.grid > 0 {
		cfg.Heatmap.GridSize = f.grid
	}
	if f.cell > 0 {
		cfg.Heatmap.MeterPerCell = f.cell
	}

	store := position.NewPointStore(position.StoreConfig{
		MaxSeries:             cfg.Store.MaxSeries,
		MaxPointsPerSeries:    cfg.Store.MaxPointsPerSeries,
		MaxAllPointsPerSeries: f.capacity,
	})
	calc := position.NewCalculator(cfg.Reader.HeightM, cfg.Reader.TagHeightM)
	in := ingest.New(calc, store, ingest.DefaultOptions())

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	started := time.Now()
	rows := 0
	err = ingest.ReadCSV(file, func(row ingest.Row) error {
		rows++
		received := row.Timestamp
		if received.IsZero() {
			received = time.Now()
		}
		if err := in.Process(row.RawJSON, received); err != nil {
			logging.Debug().Err(err).Int("line", row.Line).Msg("row skipped")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay %s: %w", path, err)
	}

	st := in.Stats()
	logging.Info().
		Int("rows", rows).
		Uint64("decoded", st.Decoded).
		Uint64("ignored", st.Ignored).
		Uint64("malformed", st.Malformed).
		Uint64("significant", st.Significant).
		Dur("elapsed", time.Since(started)).
		Msg("replay complete")

	out := cmd.OutOrStdout()
	if err := report.WriteStats(out, store.Stats()); err != nil {
		return err
	}

	if f.out != "" {
		files, err := report.WriteAll(f.out, store, report.Options{
			GridSize:     cfg.Heatmap.GridSize,
			MeterPerCell: cfg.Heatmap.MeterPerCell,
			Format:       f.format,
			AllPoints:    f.allPoints,
			HTML:         f.html,
		})
		if err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
		for _, name := range files {
			fmt.Fprintln(out, "wrote", name)
		}
	}

	if f.sqlite != "" {
		res, err := storage.Export(cmd.Context(), f.sqlite, path, store)
		if err != nil {
			return fmt.Errorf("sqlite export: %w", err)
		}
		fmt.Fprintf(out, "exported run %d to %s: %d tags, %d points, %d significant\n",
			res.RunID, f.sqlite, res.Tags, res.Points, res.Significant)
	}
	return nil
}
