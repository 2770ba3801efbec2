package ui

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"atr-radar.klederson.com/internal/position"
)

func snapshot(id string, confirmed bool) position.TagSnapshot {
	now := time.Now()
	return position.TagSnapshot{
		TagID:       id,
		Color:       "#1f77b4",
		FirstSeen:   now.Add(-time.Minute),
		LastSeen:    now,
		HasLatest:   confirmed,
		Latest:      position.PositionPoint{TagID: id, X: 3, Y: 4, Z: 1, Timestamp: now},
		Window:      5,
		Significant: 2,
		Logged:      9,
	}
}

func TestFilterMatch(t *testing.T) {
	tag := snapshot("3034AABBCC", false)

	assert.True(t, FilterState{}.Match(tag))
	assert.False(t, FilterState{ConfirmedOnly: true}.Match(tag))
	assert.True(t, FilterState{Search: "aabb"}.Match(tag))
	assert.False(t, FilterState{Search: "ffff"}.Match(tag))

	tag.HasLatest = true
	assert.True(t, FilterState{ConfirmedOnly: true, Search: "3034"}.Match(tag))
}

func TestRenderTagListHeight(t *testing.T) {
	tags := []position.TagSnapshot{
		snapshot("3034000000000000000000A1", true),
		snapshot("E28000000000000000000B2", false),
		snapshot("3034000000000000000000C3", true),
	}
	for _, h := range []int{6, 12, 30} {
		out := RenderTagList(tags, 40, h, 2, map[string]bool{tags[0].TagID: true}, tags[1].TagID, FilterState{})
		assert.Len(t, strings.Split(out, "\n"), h)
	}

	out := RenderTagList(tags, 40, 30, 0, nil, "", FilterState{})
	assert.Contains(t, out, "TAGS [3]")
	assert.Contains(t, out, "0000A1")
	assert.Contains(t, out, "SGTIN-96")
	assert.Contains(t, out, "pending 2/5")
	assert.Contains(t, out, "(3.00, 4.00) 5.0m 2/5")
}

func TestRenderTagListEmpty(t *testing.T) {
	out := RenderTagList(nil, 30, 10, 0, nil, "", FilterState{Active: true, Search: "E2"})
	assert.Contains(t, out, "No tags")
	assert.Contains(t, out, "/E2_")
}

func TestTruncRaw(t *testing.T) {
	assert.Equal(t, "abc  ", truncRaw("abc", 5))
	assert.Equal(t, "abcde", truncRaw("abcdefg", 5))
}

func TestRenderSparkline(t *testing.T) {
	assert.Equal(t, "_^", renderSparkline([]float64{0, 10}, 10))
	assert.Equal(t, "_ ^", renderSparkline([]float64{0, math.NaN(), 10}, 10))
	assert.Equal(t, "_^", renderSparkline([]float64{5, 5, 0, 10}, 2))
	assert.Empty(t, renderSparkline(nil, 10))
}

func TestAngleToDir(t *testing.T) {
	assert.Equal(t, "N", angleToDir(0))
	assert.Equal(t, "E", angleToDir(math.Pi/2))
	assert.Equal(t, "SW", angleToDir(5*math.Pi/4))
	assert.Equal(t, "W", angleToDir(-math.Pi/2))
}

func TestRangeFraction(t *testing.T) {
	assert.InDelta(t, 0.5, rangeFraction(4, 8), 1e-9)
	assert.Equal(t, 1.0, rangeFraction(20, 8))
	assert.Equal(t, 1.0, rangeFraction(math.NaN(), 8))
	assert.Equal(t, 1.0, rangeFraction(1, 0))
	assert.Equal(t, "#00FF41", proximityColor(0.1))
	assert.Equal(t, "#005511", proximityColor(1))
}

func TestRenderCompass(t *testing.T) {
	out := RenderCompass(21, 11, math.Pi/2, 2, 8)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 11)
	assert.Contains(t, out, "N")
	assert.Contains(t, out, ">")

	assert.Empty(t, RenderCompass(5, 3, 0, 1, 8))
}

func TestRenderHeatmapOrientation(t *testing.T) {
	m := [][]int{
		{0, 0, 0},
		{0, 0, 0},
		{0, 4, 0}, // y index 2: north row
	}
	lines := strings.Split(RenderHeatmap(m, 20, 10), "\n")
	if assert.Len(t, lines, 3) {
		assert.Contains(t, lines[0], "@@")
		assert.Contains(t, lines[1], "()")
		assert.NotContains(t, lines[2], "@@")
	}
	assert.Empty(t, RenderHeatmap(nil, 20, 10))
}

func TestRenderHeatmapCrop(t *testing.T) {
	m := position.NewPointStore(position.DefaultStoreConfig()).HeatmapMatrix(13, 1)
	out := RenderHeatmap(m, 10, 4)
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 4)
	for _, l := range lines {
		assert.Equal(t, 10, lipgloss.Width(l))
	}
}

func TestRenderDetailPanel(t *testing.T) {
	tag := snapshot("303400000000000000001234", true)
	out := RenderDetailPanel(tag, []float64{1, 2, 3}, []float64{3, 2, 1}, 60, 40, 8)
	assert.Contains(t, out, "TAG DETAIL")
	assert.Contains(t, out, "SGTIN-96")
	assert.Contains(t, out, "X 3.00  Y 4.00  Z 1.00 m")
	assert.Contains(t, out, "2 confirmed / 5 window / 9 logged")
	assert.Len(t, strings.Split(out, "\n"), 40)

	tag.HasLatest = false
	out = RenderDetailPanel(tag, nil, nil, 60, 30, 8)
	assert.Contains(t, out, "pending")
}

func TestStatusAndMenuBars(t *testing.T) {
	s := RenderStatusBar(160, StatusInfo{Live: false, Tags: 2, Points: 10, ReaderHeight: 3, TagHeight: 1, MaxRange: 8, Message: "exported 4 files"})
	assert.Contains(t, s, "[PAUSED]")
	assert.Contains(t, s, "Tags: 2")
	assert.Contains(t, s, "H: 3.0/1.0m")
	assert.Contains(t, s, "exported 4 files")

	m := RenderMenuBar(160, "demo", true, false)
	assert.Contains(t, m, "LIVE")
	assert.Contains(t, m, "OFFLINE")
	assert.Contains(t, m, "Source: demo")
}

func TestBarsStayOnOneRow(t *testing.T) {
	info := StatusInfo{Live: true, Tags: 12, Points: 340, Received: 9000, ReaderHeight: 3, TagHeight: 1, MaxRange: 8, Message: "exported 4 files"}
	for _, width := range []int{160, 130} {
		m := RenderMenuBar(width, "demo", true, true)
		assert.Equal(t, 1, lipgloss.Height(m), "menu bar at width %d", width)
		assert.Equal(t, width, lipgloss.Width(m), "menu bar at width %d", width)
		assert.Contains(t, m, "Source: demo")

		s := RenderStatusBar(width, info)
		assert.Equal(t, 1, lipgloss.Height(s), "status bar at width %d", width)
		assert.Equal(t, width, lipgloss.Width(s), "status bar at width %d", width)
		assert.Contains(t, s, "exported 4 files")
	}

	// Content wider than the terminal is cut, never wrapped.
	assert.Equal(t, 1, lipgloss.Height(RenderMenuBar(40, "ws://10.0.0.5/stream", false, false)))
	assert.Equal(t, 1, lipgloss.Height(RenderStatusBar(40, info)))
}
