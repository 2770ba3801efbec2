package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
)

// Sink accepts raw reader frames. Sources push into a Sink.
type Sink interface {
	Submit(raw []byte, received time.Time)
}

// WaitSink is a Sink that can apply backpressure. Replays use it so a
// fast file never overruns the shard queues.
type WaitSink interface {
	Sink
	SubmitWait(ctx context.Context, raw []byte, received time.Time) error
}

// Options sizes the worker pool.
type Options struct {
	Workers   int // Shards; readings of one tag always land on the same shard
	QueueSize int // Per-shard buffered readings before Submit starts dropping
}

// DefaultOptions mirrors the stream section of the default config.
func DefaultOptions() Options {
	return Options{Workers: 2, QueueSize: 4096}
}

// Stats is a snapshot of the ingestor counters.
type Stats struct {
	Received    uint64 // Frames handed to Submit or Process
	Decoded     uint64 // Readings decoded from those frames
	Ignored     uint64 // Frames of other message types
	Malformed   uint64 // Frames that failed to decode or had no tag id
	Dropped     uint64 // Readings discarded because a shard queue was full or stopped
	Significant uint64 // Points confirmed by the store
}

// Ingestor turns raw frames into positions: decode, project, store.
type Ingestor struct {
	calc  *position.Calculator
	store *position.PointStore
	log   zerolog.Logger

	shards []chan position.RawAngularReading

	handlersMu sync.RWMutex
	handlers   []func(position.PositionPoint)

	received    atomic.Uint64
	decoded     atomic.Uint64
	ignored     atomic.Uint64
	malformed   atomic.Uint64
	dropped     atomic.Uint64
	significant atomic.Uint64

	running atomic.Bool
	stopped atomic.Bool
}

// New creates an ingestor feeding store through calc.
func New(calc *position.Calculator, store *position.PointStore, opts Options) *Ingestor {
	def := DefaultOptions()
	if opts.Workers < 1 {
		opts.Workers = def.Workers
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = def.QueueSize
	}

	in := &Ingestor{
		calc:   calc,
		store:  store,
		log:    logging.With("ingest"),
		shards: make([]chan position.RawAngularReading, opts.Workers),
	}
	for i := range in.shards {
		in.shards[i] = make(chan position.RawAngularReading, opts.QueueSize)
	}
	return in
}

// OnSignificant registers fn to be called, from a worker goroutine, for every
// point the store confirms.
func (in *Ingestor) OnSignificant(fn func(position.PositionPoint)) {
	in.handlersMu.Lock()
	in.handlers = append(in.handlers, fn)
	in.handlersMu.Unlock()
}

// Submit decodes a frame on the caller's goroutine and queues its readings.
// It never blocks: readings that do not fit are counted as dropped.
func (in *Ingestor) Submit(raw []byte, received time.Time) {
	readings, err := in.decode(raw, received)
	if err != nil {
		return
	}
	for _, r := range readings {
		if in.stopped.Load() {
			in.dropped.Add(1)
			continue
		}
		select {
		case in.shards[in.shard(r.TagID)] <- r:
		default:
			if in.dropped.Add(1)%1000 == 1 {
				in.log.Warn().Str("tag", r.TagID).Uint64("dropped", in.dropped.Load()).Msg("shard queue full, dropping readings")
			}
		}
	}
}

// SubmitWait is Submit without drops: it blocks while a shard queue is full
// and gives up when ctx is done. Malformed frames are counted, not returned.
func (in *Ingestor) SubmitWait(ctx context.Context, raw []byte, received time.Time) error {
	readings, err := in.decode(raw, received)
	if err != nil {
		return nil
	}
	for i, r := range readings {
		if in.stopped.Load() {
			in.dropped.Add(uint64(len(readings) - i))
			return nil
		}
		select {
		case in.shards[in.shard(r.TagID)] <- r:
		case <-ctx.Done():
			in.dropped.Add(uint64(len(readings) - i))
			return ctx.Err()
		}
	}
	return nil
}

// Process decodes and applies a frame synchronously. Replays use it so the
// store sees readings in file order.
func (in *Ingestor) Process(raw []byte, received time.Time) error {
	readings, err := in.decode(raw, received)
	if err != nil {
		return err
	}
	for _, r := range readings {
		in.Apply(r)
	}
	return nil
}

// Apply projects one reading and stores it.
func (in *Ingestor) Apply(r position.RawAngularReading) {
	p := in.calc.CalculatePosition(r)
	sig, ok := in.store.AddPositionPoint(p)
	if !ok {
		return
	}
	in.significant.Add(1)
	in.log.Debug().
		Str("tag", sig.TagID).
		Float64("x", sig.X).
		Float64("y", sig.Y).
		Time("ts", sig.Timestamp).
		Msg("position confirmed")

	in.handlersMu.RLock()
	handlers := in.handlers
	in.handlersMu.RUnlock()
	for _, fn := range handlers {
		fn(sig)
	}
}

// Run starts one worker per shard and blocks until ctx is done. Readings
// already queued are applied before Run returns.
func (in *Ingestor) Run(ctx context.Context) error {
	if !in.running.CompareAndSwap(false, true) {
		return errors.New("ingestor already running")
	}
	defer in.running.Store(false)

	var wg sync.WaitGroup
	for _, ch := range in.shards {
		wg.Add(1)
		go func(ch chan position.RawAngularReading) {
			defer wg.Done()
			in.worker(ctx, ch)
		}(ch)
	}
	in.log.Info().Int("workers", len(in.shards)).Msg("ingestor started")

	<-ctx.Done()
	in.stopped.Store(true)
	wg.Wait()

	s := in.Stats()
	in.log.Info().
		Uint64("received", s.Received).
		Uint64("decoded", s.Decoded).
		Uint64("significant", s.Significant).
		Uint64("dropped", s.Dropped).
		Msg("ingestor stopped")
	return nil
}

func (in *Ingestor) worker(ctx context.Context, ch chan position.RawAngularReading) {
	for {
		select {
		case r := <-ch:
			in.Apply(r)
		case <-ctx.Done():
			for {
				select {
				case r := <-ch:
					in.Apply(r)
				default:
					return
				}
			}
		}
	}
}

// Stats returns the current counters.
func (in *Ingestor) Stats() Stats {
	return Stats{
		Received:    in.received.Load(),
		Decoded:     in.decoded.Load(),
		Ignored:     in.ignored.Load(),
		Malformed:   in.malformed.Load(),
		Dropped:     in.dropped.Load(),
		Significant: in.significant.Load(),
	}
}

// Pending is the number of readings waiting in shard queues.
func (in *Ingestor) Pending() int {
	n := 0
	for _, ch := range in.shards {
		n += len(ch)
	}
	return n
}

func (in *Ingestor) decode(raw []byte, received time.Time) ([]position.RawAngularReading, error) {
	in.received.Add(1)
	readings, err := DecodeAll(raw, received)
	if err != nil {
		in.countError(err)
		return nil, err
	}
	in.decoded.Add(uint64(len(readings)))
	return readings, nil
}

func (in *Ingestor) countError(err error) {
	if errors.Is(err, ErrUnsupportedType) {
		in.ignored.Add(1)
		return
	}
	in.malformed.Add(1)
	in.log.Debug().Err(err).Msg("discarding frame")
}

func (in *Ingestor) shard(tagID string) int {
	if len(in.shards) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(tagID))
	return int(h.Sum32() % uint32(len(in.shards)))
}
