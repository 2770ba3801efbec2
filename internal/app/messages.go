package app

import (
	"time"

	"atr-radar.klederson.com/internal/position"
)

// TickMsg triggers a frame update for animation.
type TickMsg time.Time

// TagPositionMsg carries a newly confirmed position from the ingestor.
type TagPositionMsg struct {
	Point position.PositionPoint
}

// ConnectionMsg reports the reader link going up or down.
type ConnectionMsg struct {
	Connected bool
}

// ExportDoneMsg reports the result of a snapshot export.
type ExportDoneMsg struct {
	Dir   string
	Files []string
	Err   error
}

// SourceErrorMsg reports a source that failed to start or stopped with an error.
type SourceErrorMsg struct {
	Err error
}

// SourceDoneMsg reports a finite source (a replay) reaching its end.
type SourceDoneMsg struct{}
