package app

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"atr-radar.klederson.com/internal/config"
	"atr-radar.klederson.com/internal/ingest"
	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
	"atr-radar.klederson.com/internal/publish"
	"atr-radar.klederson.com/internal/radar"
	"atr-radar.klederson.com/internal/report"
	"atr-radar.klederson.com/internal/ui"
)

const noticeTTL = 5 * time.Second

type viewMode int

const (
	viewRadar viewMode = iota
	viewDetail
	viewHeatmap
)

// Options configures the model.
type Options struct {
	Config     *config.Config
	Source     ingest.Source
	SourceName string
	Publisher  *publish.Publisher // Optional
	ExportDir  string             // Parent directory for snapshot exports
}

// shared holds state shared between the Bubble Tea model copies and main.go.
// Because Bubble Tea uses value receivers, pointer fields ensure all copies
// see the same underlying data.
type shared struct {
	cfg       *config.Config
	store     *position.PointStore
	calc      *position.Calculator
	ingestor  *ingest.Ingestor
	source    ingest.Source
	publisher *publish.Publisher
	sweep     *radar.Sweep

	// Wall-clock time of the last confirmed position per tag
	seen map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// AppModel is the root Bubble Tea model for the ATR radar.
type AppModel struct {
	width  int
	height int

	live       bool
	connected  bool
	sourceName string
	exportDir  string
	mode       viewMode
	cursor     int
	hidden     map[string]bool
	isolate    string
	filter     ui.FilterState

	notice      string
	noticeErr   bool
	noticeUntil time.Time

	shared *shared

	// Cached snapshot, filtered for display
	tags []position.TagSnapshot
}

// New creates a new AppModel with its own store, calculator and ingestor.
func New(opts Options) AppModel {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	store := position.NewPointStore(position.StoreConfig{
		MaxSeries:             cfg.Store.MaxSeries,
		MaxPointsPerSeries:    cfg.Store.MaxPointsPerSeries,
		MaxAllPointsPerSeries: cfg.Store.MaxAllPointsPerSeries,
	})
	calc := position.NewCalculator(cfg.Reader.HeightM, cfg.Reader.TagHeightM)

	exportDir := opts.ExportDir
	if exportDir == "" {
		exportDir = "."
	}

	// Sources without a link to report on are always considered connected.
	_, notifies := opts.Source.(connectionNotifier)

	return AppModel{
		live:       true,
		connected:  opts.Source != nil && !notifies,
		sourceName: opts.SourceName,
		exportDir:  exportDir,
		hidden:     make(map[string]bool),
		shared: &shared{
			cfg:   cfg,
			store: store,
			calc:  calc,
			ingestor: ingest.New(calc, store, ingest.Options{
				Workers:   cfg.Stream.Workers,
				QueueSize: cfg.Stream.QueueSize,
			}),
			source:    opts.Source,
			publisher: opts.Publisher,
			sweep:     radar.NewSweep(),
			seen:      make(map[string]time.Time),
		},
	}
}

// Store exposes the point store backing the model.
func (m AppModel) Store() *position.PointStore { return m.shared.store }

// Ingestor exposes the ingestor feeding the store.
func (m AppModel) Ingestor() *ingest.Ingestor { return m.shared.ingestor }

func (m AppModel) Init() tea.Cmd {
	return tickCmd()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TickMsg:
		m.shared.sweep.Update()
		if m.live {
			m.refresh()
		}
		if !m.noticeUntil.IsZero() && time.Time(msg).After(m.noticeUntil) {
			m.notice, m.noticeUntil = "", time.Time{}
		}
		return m, tickCmd()

	case TagPositionMsg:
		m.shared.seen[msg.Point.TagID] = time.Now()
		return m, nil

	case ConnectionMsg:
		m.connected = msg.Connected
		return m, nil

	case ExportDoneMsg:
		if msg.Err != nil {
			m.setNotice("export failed: "+msg.Err.Error(), true)
		} else {
			m.setNotice(fmt.Sprintf("exported %d files to %s", len(msg.Files), msg.Dir), false)
		}
		return m, nil

	case SourceDoneMsg:
		m.setNotice("source finished", false)
		return m, nil

	case SourceErrorMsg:
		m.connected = false
		m.setNotice("source: "+msg.Err.Error(), true)
		return m, nil
	}

	return m, nil
}

func (m *AppModel) setNotice(s string, isErr bool) {
	m.notice = s
	m.noticeErr = isErr
	m.noticeUntil = time.Now().Add(noticeTTL)
}

// refresh re-reads the store and applies the list filter.
func (m *AppModel) refresh() {
	all := m.shared.store.Snapshot()
	tags := make([]position.TagSnapshot, 0, len(all))
	for _, t := range all {
		if m.filter.Match(t) {
			tags = append(tags, t)
		}
	}
	m.tags = tags
	if m.cursor >= len(m.tags) {
		m.cursor = max(0, len(m.tags)-1)
	}
}

func (m AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filter.Active {
		return m.handleFilterKey(msg)
	}

	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit

	case "s", "S":
		m.live = true

	case "p", "P":
		m.live = false

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.tags)-1 {
			m.cursor++
		}

	case "home":
		m.cursor = 0

	case "end":
		if len(m.tags) > 0 {
			m.cursor = len(m.tags) - 1
		}

	case " ":
		if t, ok := m.selected(); ok {
			m.hidden[t.TagID] = !m.hidden[t.TagID]
		}

	case "i", "I":
		if t, ok := m.selected(); ok {
			if m.isolate == t.TagID {
				m.isolate = ""
			} else {
				m.isolate = t.TagID
			}
		}

	case "enter":
		if _, ok := m.selected(); ok {
			m.mode = viewDetail
		}

	case "esc":
		m.mode = viewRadar

	case "m", "M":
		if m.mode == viewHeatmap {
			m.mode = viewRadar
		} else {
			m.mode = viewHeatmap
		}

	case "f", "F":
		m.filter.ConfirmedOnly = !m.filter.ConfirmedOnly
		m.refresh()

	case "/":
		m.filter.Active = true

	case "+", "=":
		m.adjustReader(config.HeightStep)
	case "-", "_":
		m.adjustReader(-config.HeightStep)
	case "]":
		m.adjustTag(config.HeightStep)
	case "[":
		m.adjustTag(-config.HeightStep)
	case "0":
		m.resetHeights()

	case "c", "C":
		m.shared.store.Clear()
		clear(m.shared.seen)
		m.isolate = ""
		clear(m.hidden)
		m.cursor = 0
		m.mode = viewRadar
		m.refresh()
		m.setNotice("store cleared", false)

	case "e", "E":
		dir := filepath.Join(m.exportDir, "atr-report-"+time.Now().Format("20060102-150405"))
		return m, exportCmd(m.shared.store, dir, m.shared.cfg)
	}

	return m, nil
}

func (m AppModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filter.Active = false
	case tea.KeyEsc:
		m.filter.Active = false
		m.filter.Search = ""
	case tea.KeyBackspace:
		if n := len(m.filter.Search); n > 0 {
			m.filter.Search = m.filter.Search[:n-1]
		}
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyRunes:
		m.filter.Search += string(msg.Runes)
	}
	m.cursor = 0
	m.refresh()
	return m, nil
}

func (m AppModel) adjustReader(delta float64) {
	h := m.shared.calc.Heights()
	m.shared.calc.SetReaderHeight(stepHeight(h.Reader, delta))
}

func (m AppModel) adjustTag(delta float64) {
	h := m.shared.calc.Heights()
	m.shared.calc.SetTagHeight(stepHeight(h.Tag, delta))
}

// resetHeights restores the mounting geometry from the loaded config.
func (m *AppModel) resetHeights() {
	r := m.shared.cfg.Reader
	m.shared.calc.SetHeights(position.Heights{Reader: r.HeightM, Tag: r.TagHeightM})
	m.setNotice(fmt.Sprintf("heights reset to %.1f/%.1fm", r.HeightM, r.TagHeightM), false)
}

// stepHeight applies delta, keeps one decimal and never goes below the floor.
func stepHeight(h, delta float64) float64 {
	return math.Max(0, math.Round((h+delta)*10)/10)
}

func (m AppModel) selected() (position.TagSnapshot, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tags) {
		return position.TagSnapshot{}, false
	}
	return m.tags[m.cursor], true
}

// blips builds the radar contents: hidden tags are skipped and an isolated
// tag suppresses all others.
func (m AppModel) blips(now time.Time) []radar.Blip {
	sel, _ := m.selected()
	out := make([]radar.Blip, 0, len(m.tags))
	for _, t := range m.tags {
		if m.hidden[t.TagID] || (m.isolate != "" && t.TagID != m.isolate) {
			continue
		}
		seen, ok := m.shared.seen[t.TagID]
		out = append(out, radar.Blip{
			Tag:      t,
			Stale:    !ok || now.Sub(seen) > config.TagStaleAfter,
			Selected: t.TagID == sel.TagID,
		})
	}
	return out
}

func displayRange(blips []radar.Blip) float64 {
	farthest := 0.0
	for _, b := range blips {
		if b.Tag.HasLatest && b.Tag.Latest.Finite() {
			farthest = math.Max(farthest, b.Tag.Latest.GroundDistance())
		}
	}
	return radar.AutoRange(farthest, config.MaxRange)
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing ATR Radar..."
	}

	menuH := 1
	statusH := 1
	bodyH := m.height - menuH - statusH
	if bodyH < 5 {
		bodyH = 5
	}

	mainW := m.width * 3 / 4
	if mainW < 30 {
		mainW = 30
	}
	listW := m.width - mainW
	if listW < 15 {
		listW = 15
		mainW = m.width - listW
	}

	innerW := max(5, mainW-4)
	innerH := max(3, bodyH-5)

	blips := m.blips(time.Now())
	maxRange := displayRange(blips)
	heights := m.shared.calc.Heights()
	cfg := m.shared.cfg

	var mainPanel string
	switch m.mode {
	case viewDetail:
		if t, ok := m.selected(); ok {
			_, xs, ys := m.shared.store.XYHistory(t.TagID, false)
			mainPanel = ui.RenderDetailPanel(t, xs, ys, mainW, bodyH, maxRange)
			break
		}
		fallthrough
	case viewRadar:
		content := radar.Render(innerW, innerH, blips, m.shared.sweep, maxRange)
		mainPanel = ui.RenderPanel(mainW, bodyH, "", content, radar.RenderLegend(innerW, maxRange, heights))
	case viewHeatmap:
		matrix := m.shared.store.HeatmapMatrix(cfg.Heatmap.GridSize, cfg.Heatmap.MeterPerCell)
		content := ui.RenderHeatmap(matrix, innerW, innerH-1)
		legend := ui.RenderHeatmapLegend(innerW, cfg.Heatmap.GridSize, cfg.Heatmap.MeterPerCell, position.MatrixMax(matrix))
		mainPanel = ui.RenderPanel(mainW, bodyH, "HEATMAP", content, legend)
	}

	menuBar := ui.RenderMenuBar(m.width, m.sourceName, m.live, m.connected)
	tagList := ui.RenderTagList(m.tags, listW, bodyH, m.cursor, m.hidden, m.isolate, m.filter)

	points := 0
	for _, t := range m.tags {
		points += t.Logged
	}
	stats := m.shared.ingestor.Stats()
	statusBar := ui.RenderStatusBar(m.width, ui.StatusInfo{
		Live:         m.live,
		Tags:         len(m.tags),
		Points:       points,
		Received:     stats.Received,
		Dropped:      stats.Dropped,
		ReaderHeight: heights.Reader,
		TagHeight:    heights.Tag,
		SweepDeg:     m.shared.sweep.Degrees(),
		MaxRange:     maxRange,
		Message:      m.notice,
		Error:        m.noticeErr,
	})

	return ui.ComposeLayout(menuBar, mainPanel, tagList, statusBar, m.width)
}

// Start wires the ingestor to the program and starts the ingestor and the
// source. Must be called before p.Run().
func (m AppModel) Start(p *tea.Program) error {
	s := m.shared
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.ingestor.OnSignificant(func(pt position.PositionPoint) {
		p.Send(TagPositionMsg{Point: pt})
	})
	if s.publisher != nil {
		s.ingestor.OnSignificant(s.publisher.Handler())
	}

	go func() {
		defer close(s.done)
		if err := s.ingestor.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("ingestor stopped")
		}
	}()

	if s.source == nil {
		return nil
	}
	if n, ok := s.source.(connectionNotifier); ok {
		n.OnConnectionChange(func(up bool) { p.Send(ConnectionMsg{Connected: up}) })
	}
	if err := s.source.Start(ctx, s.ingestor); err != nil {
		cancel()
		<-s.done
		return err
	}
	if f, ok := s.source.(finiteSource); ok {
		go func() {
			<-f.Done()
			if err := f.Err(); err != nil && ctx.Err() == nil {
				p.Send(SourceErrorMsg{Err: err})
			} else if ctx.Err() == nil {
				p.Send(SourceDoneMsg{})
			}
		}()
	}
	return nil
}

type connectionNotifier interface {
	OnConnectionChange(func(bool))
}

type finiteSource interface {
	Done() <-chan struct{}
	Err() error
}

// Stop halts the source, drains the ingestor and disconnects the publisher.
// Call it after p.Run() returns: handlers block on Program.Send while the
// program is running. Safe to call more than once.
func (m AppModel) Stop() {
	s := m.shared
	if s.cancel == nil {
		return
	}
	if s.source != nil {
		s.source.Stop()
	}
	s.cancel()
	<-s.done
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	s.cancel = nil
}

func exportCmd(store *position.PointStore, dir string, cfg *config.Config) tea.Cmd {
	return func() tea.Msg {
		files, err := report.WriteAll(dir, store, report.Options{
			GridSize:     cfg.Heatmap.GridSize,
			MeterPerCell: cfg.Heatmap.MeterPerCell,
			Format:       "png",
			HTML:         true,
		})
		if err == nil {
			logging.Info().Str("dir", dir).Int("files", len(files)).Msg("snapshot exported")
		}
		return ExportDoneMsg{Dir: dir, Files: files, Err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(config.TargetFPS), func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
