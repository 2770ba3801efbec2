package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
)

// Options controls WriteAll.
type Options struct {
	GridSize     int
	MeterPerCell float64
	Format       string // Image extension: png (default), svg or pdf
	AllPoints    bool   // XY charts from the full log instead of confirmed points
	HTML         bool   // Also write heatmap.html
}

// WriteAll writes every report for store into dir and returns the files
// written. Tags without data are skipped.
func WriteAll(dir string, store *position.PointStore, o Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	ext := strings.TrimPrefix(strings.ToLower(o.Format), ".")
	if ext == "" {
		ext = "png"
	}

	var files []string
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(dir, name)
		if err := fn(path); err != nil {
			return err
		}
		files = append(files, path)
		return nil
	}

	if err := write("heatmap."+ext, func(p string) error {
		return SaveHeatmap(p, store, o.GridSize, o.MeterPerCell)
	}); err != nil {
		return files, err
	}

	if o.HTML {
		if err := write("heatmap.html", func(p string) error {
			f, err := os.Create(p)
			if err != nil {
				return err
			}
			if err := WriteHeatmapHTML(f, store, o.GridSize, o.MeterPerCell); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}); err != nil {
			return files, err
		}
	}

	if err := write("trajectory."+ext, func(p string) error {
		return SaveTrajectory(p, store)
	}); err != nil && !errors.Is(err, ErrNoData) {
		return files, err
	}

	for _, id := range store.TagIDs() {
		name := fmt.Sprintf("xy_%s.%s", safeName(id), ext)
		err := write(name, func(p string) error { return SaveXY(p, store, id, o.AllPoints) })
		if err != nil && !errors.Is(err, ErrNoData) {
			return files, err
		}
	}

	if err := write("stats.txt", func(p string) error {
		f, err := os.Create(p)
		if err != nil {
			return err
		}
		if err := WriteStats(f, store.Stats()); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}); err != nil {
		return files, err
	}

	logging.Info().Str("dir", dir).Int("files", len(files)).Msg("reports written")
	return files, nil
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}
