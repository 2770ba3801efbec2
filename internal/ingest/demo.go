package ingest

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// demoSchemes are EPC headers used for generated tags so the tag list shows a
// mix of schemes.
var demoSchemes = []byte{0x30, 0x30, 0x30, 0x31, 0x33, 0x34, 0xE2}

type demoTag struct {
	epc      string
	baseAz   float64 // degrees
	azSpeed  float64 // degrees per second
	baseEl   float64 // degrees
	elSwing  float64
	phase    float64
	baseRSSI float64
	antenna  int
	active   bool
}

// DemoSource generates RAW_DIRECTIONALITY frames for a handful of tags
// wandering around the reader.
type DemoSource struct {
	tags   []demoTag
	period time.Duration
	rng    *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDemoSource creates n random tags emitting every period.
func NewDemoSource(n int, period time.Duration) *DemoSource {
	if n < 1 {
		n = 1
	}
	if period <= 0 {
		period = 200 * time.Millisecond
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	tags := make([]demoTag, n)
	for i := range tags {
		tags[i] = demoTag{
			epc:      randomEPC(rng, demoSchemes[rng.Intn(len(demoSchemes))]),
			baseAz:   rng.Float64() * 360,
			azSpeed:  (rng.Float64() - 0.5) * 20, // -10..10 deg/s
			baseEl:   20 + rng.Float64()*50,      // 20..70 deg off nadir
			elSwing:  3 + rng.Float64()*10,
			phase:    rng.Float64() * 2 * math.Pi,
			baseRSSI: -45 - rng.Float64()*30,
			antenna:  1 + rng.Intn(4),
			active:   true,
		}
	}
	return &DemoSource{tags: tags, period: period, rng: rng}
}

// Start begins emitting frames.
func (s *DemoSource) Start(ctx context.Context, sink Sink) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx, sink)
	return nil
}

func (s *DemoSource) loop(ctx context.Context, sink Sink) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, frame := range s.frames(now.Sub(start).Seconds(), now) {
				sink.Submit(frame, now)
			}
		}
	}
}

type demoEvent struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	Data      demoData `json:"data"`
}

type demoData struct {
	EPC       string  `json:"epc"`
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	PeakRSSI  float64 `json:"peakRssi"`
	Antenna   int     `json:"antenna"`
}

// frames renders one JSON frame per visible tag at elapsed seconds t.
func (s *DemoSource) frames(t float64, now time.Time) [][]byte {
	out := make([][]byte, 0, len(s.tags))
	for i := range s.tags {
		d := &s.tags[i]

		// Tags occasionally leave and re-enter the field.
		if s.rng.Float64() < 0.005 {
			d.active = !d.active
		}
		if !d.active {
			continue
		}

		az := math.Mod(d.baseAz+d.azSpeed*t+(s.rng.Float64()-0.5)*4, 360)
		if az < 0 {
			az += 360
		}
		el := d.baseEl + d.elSwing*math.Sin(t*0.3+d.phase) + (s.rng.Float64()-0.5)*2

		ev := demoEvent{
			Type:      TypeRawDirectionality,
			Timestamp: now.UTC().Format(time.RFC3339Nano),
			Data: demoData{
				EPC:       d.epc,
				Azimuth:   math.Round(az*10) / 10,
				Elevation: math.Round(el*10) / 10,
				PeakRSSI:  math.Round(d.baseRSSI + (s.rng.Float64()-0.5)*6),
				Antenna:   d.antenna,
			},
		}
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Stop halts the generator.
func (s *DemoSource) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func randomEPC(rng *rand.Rand, header byte) string {
	b := make([]byte, 11)
	for i := range b {
		b[i] = byte(rng.Intn(256))
	}
	return fmt.Sprintf("%02X%X", header, b)
}
