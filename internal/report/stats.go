package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"atr-radar.klederson.com/internal/position"
)

const statsTimeFormat = "15:04:05.000"

// StatsTable formats per-tag statistics as a plain text table.
func StatsTable(stats []position.TagStats) string {
	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		live := "evicted"
		if s.HasSeries {
			live = strconv.Itoa(s.Significant)
		}
		rows = append(rows, []string{
			s.TagID,
			strconv.Itoa(s.TotalPoints),
			live,
			fmt.Sprintf("%.3f", s.MeanX),
			fmt.Sprintf("%.3f", s.MeanY),
			fmt.Sprintf("%.3f", s.StdDevX),
			fmt.Sprintf("%.3f", s.StdDevY),
			s.FirstSeen.Format(statsTimeFormat),
			s.LastSeen.Format(statsTimeFormat),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TAG", "POINTS", "SIGNIFICANT", "MEAN X", "MEAN Y", "STD X", "STD Y", "FIRST", "LAST").
		Rows(rows...)
	return t.String()
}

// WriteStats writes the statistics table followed by a totals line.
func WriteStats(w io.Writer, stats []position.TagStats) error {
	total := 0
	for _, s := range stats {
		total += s.TotalPoints
	}
	if _, err := fmt.Fprintln(w, StatsTable(stats)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d tags, %d points\n", len(stats), total)
	return err
}
