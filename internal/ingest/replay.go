package ingest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"atr-radar.klederson.com/internal/logging"
)

// ReplaySource plays a recorded CSV event log into a Sink. With a positive
// speed, gaps between row timestamps are reproduced scaled by 1/speed; with
// speed <= 0 rows are submitted back to back.
type ReplaySource struct {
	path  string
	speed float64
	log   zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu   sync.Mutex
	err  error
	rows int
}

// NewReplaySource creates a replay of the CSV file at path.
func NewReplaySource(path string, speed float64) *ReplaySource {
	return &ReplaySource{
		path:  path,
		speed: speed,
		log:   logging.With("replay"),
		done:  make(chan struct{}),
	}
}

// Start opens the file and begins the replay in the background.
func (s *ReplaySource) Start(ctx context.Context, sink Sink) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		defer f.Close()

		err := s.play(ctx, f, sink)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		ev := s.log.Info()
		if err != nil && ctx.Err() == nil {
			ev = s.log.Error().Err(err)
		}
		ev.Str("file", s.path).Int("rows", s.Rows()).Msg("replay finished")
	}()
	return nil
}

func (s *ReplaySource) play(ctx context.Context, f *os.File, sink Sink) error {
	var prev time.Time
	return ReadCSV(f, func(row Row) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.speed > 0 && !prev.IsZero() && !row.Timestamp.IsZero() {
			if gap := row.Timestamp.Sub(prev); gap > 0 {
				select {
				case <-time.After(time.Duration(float64(gap) / s.speed)):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if !row.Timestamp.IsZero() {
			prev = row.Timestamp
		}

		received := row.Timestamp
		if received.IsZero() {
			received = time.Now()
		}
		if ws, ok := sink.(WaitSink); ok {
			if err := ws.SubmitWait(ctx, row.RawJSON, received); err != nil {
				return err
			}
		} else {
			sink.Submit(row.RawJSON, received)
		}

		s.mu.Lock()
		s.rows++
		s.mu.Unlock()
		return nil
	})
}

// Done is closed when the replay ends.
func (s *ReplaySource) Done() <-chan struct{} { return s.done }

// Err is the error that ended the replay, if any. Valid after Done.
func (s *ReplaySource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Rows is the number of rows submitted so far.
func (s *ReplaySource) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Stop cancels the replay and waits for it to end.
func (s *ReplaySource) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
