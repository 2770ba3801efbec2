package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atr-radar.klederson.com/internal/position"
)

// recordingSink collects submitted frames.
type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *recordingSink) Submit(raw []byte, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), raw...))
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *recordingSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func frame(tag string, az, el float64, ms int) []byte {
	ts := base.Add(time.Duration(ms) * time.Millisecond).Format(time.RFC3339Nano)
	return []byte(fmt.Sprintf(`{"type":"RAW_DIRECTIONALITY","timestamp":%q,"data":{"epc":%q,"azimuth":%g,"elevation":%g}}`,
		ts, tag, az, el))
}

func newTestIngestor(opts Options) (*Ingestor, *position.PointStore) {
	store := position.NewPointStore(position.DefaultStoreConfig())
	calc := position.NewCalculator(position.DefaultReaderHeight, position.DefaultTagHeight)
	return New(calc, store, opts), store
}

func TestProcess(t *testing.T) {
	in, store := newTestIngestor(Options{Workers: 1, QueueSize: 8})

	var got []position.PositionPoint
	in.OnSignificant(func(p position.PositionPoint) { got = append(got, p) })

	require.NoError(t, in.Process(frame("A", 90, 45, 0), base))
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].TagID)
	assert.True(t, got[0].Significant)
	// reader 3 m, tag 1 m, 45 deg off nadir, due east
	assert.InDelta(t, 2.0, got[0].X, 1e-9)
	assert.InDelta(t, 0.0, got[0].Y, 1e-9)
	assert.Equal(t, 1.0, got[0].Z)

	// Within the gate: held back.
	require.NoError(t, in.Process(frame("A", 0, 45, 200), base))
	require.NoError(t, in.Process(frame("A", 0, 45, 400), base))
	assert.Len(t, got, 1)

	// Past the gate: the pending points are averaged.
	require.NoError(t, in.Process(frame("A", 0, 45, 700), base))
	require.Len(t, got, 2)
	assert.InDelta(t, 0.0, got[1].X, 1e-9)
	assert.InDelta(t, 2.0, got[1].Y, 1e-9)

	assert.Len(t, store.SignificantPoints("A"), 2)

	assert.ErrorIs(t, in.Process([]byte(`{"type":"HEARTBEAT"}`), base), ErrUnsupportedType)
	assert.ErrorIs(t, in.Process([]byte(`nope`), base), ErrMalformed)

	s := in.Stats()
	assert.Equal(t, Stats{Received: 6, Decoded: 4, Ignored: 1, Malformed: 1, Significant: 2}, s)
}

func TestRunPreservesPerTagOrder(t *testing.T) {
	in, store := newTestIngestor(Options{Workers: 4, QueueSize: 1024})

	tags := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
	for ms := 0; ms <= 1200; ms += 100 {
		for _, tag := range tags {
			in.Submit(frame(tag, 0, 45, ms), base)
		}
	}
	assert.Equal(t, 13*len(tags), in.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- in.Run(ctx) }()

	require.Eventually(t, func() bool { return in.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// In order, each tag confirms at 0, 600 and 1200 ms.
	for _, tag := range tags {
		sig := store.SignificantPoints(tag)
		require.Len(t, sig, 3, tag)
		assert.Equal(t, base, sig[0].Timestamp)
		assert.Equal(t, base.Add(600*time.Millisecond), sig[1].Timestamp)
		assert.Equal(t, base.Add(1200*time.Millisecond), sig[2].Timestamp)
	}
	assert.Equal(t, uint64(3*len(tags)), in.Stats().Significant)
}

func TestRunDrainsOnStop(t *testing.T) {
	in, store := newTestIngestor(Options{Workers: 2, QueueSize: 64})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in.Submit(frame("A", 10, 10, 0), base)
	in.Submit(frame("B", 20, 10, 0), base)
	require.NoError(t, in.Run(ctx))

	assert.Equal(t, 0, in.Pending())
	assert.Equal(t, []string{"A", "B"}, store.TagIDs())

	// Stopped: further readings are dropped.
	in.Submit(frame("C", 0, 0, 0), base)
	assert.Equal(t, uint64(1), in.Stats().Dropped)
	assert.Equal(t, 0, in.Pending())
}

func TestSubmitDropsWhenFull(t *testing.T) {
	in, _ := newTestIngestor(Options{Workers: 1, QueueSize: 2})
	for i := 0; i < 5; i++ {
		in.Submit(frame("A", 0, 0, i), base)
	}
	assert.Equal(t, 2, in.Pending())
	assert.Equal(t, uint64(3), in.Stats().Dropped)
}

func TestSubmitWaitBlocksWhenFull(t *testing.T) {
	in, _ := newTestIngestor(Options{Workers: 1, QueueSize: 1})
	require.NoError(t, in.SubmitWait(context.Background(), frame("A", 0, 0, 0), base))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := in.SubmitWait(ctx, frame("A", 0, 0, 1), base)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, in.Pending())
	assert.Equal(t, uint64(1), in.Stats().Dropped)

	// Malformed frames are counted, not returned.
	assert.NoError(t, in.SubmitWait(context.Background(), []byte("{"), base))
	assert.Equal(t, uint64(1), in.Stats().Malformed)
}

func TestSubmitWaitKeepsEveryReading(t *testing.T) {
	in, store := newTestIngestor(Options{Workers: 1, QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	const n = 200
	for i := 0; i < n; i++ {
		require.NoError(t, in.SubmitWait(context.Background(), frame("A", float64(i%90), 10, i), base))
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, uint64(0), in.Stats().Dropped)
	assert.Len(t, store.AllPoints("A"), n)
}

func TestSubmitArrayFrame(t *testing.T) {
	in, _ := newTestIngestor(Options{Workers: 1, QueueSize: 8})
	raw := "[" + string(frame("A", 0, 0, 0)) + "," + string(frame("B", 0, 0, 0)) + "]"
	in.Submit([]byte(raw), base)
	assert.Equal(t, 2, in.Pending())
	assert.Equal(t, uint64(1), in.Stats().Received)
	assert.Equal(t, uint64(2), in.Stats().Decoded)
}

func TestRunTwice(t *testing.T) {
	in, _ := newTestIngestor(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = in.Run(ctx) }()
	require.Eventually(t, func() bool { return in.running.Load() }, time.Second, time.Millisecond)
	assert.Error(t, in.Run(ctx))
}

func TestShardIsStable(t *testing.T) {
	in, _ := newTestIngestor(Options{Workers: 3})
	for _, tag := range []string{"A", "3034F8A1", "E2801160"} {
		s := in.shard(tag)
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, 3)
		assert.Equal(t, s, in.shard(tag))
	}
}
