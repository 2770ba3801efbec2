package ingest

import "context"

// Source produces raw reader frames into a Sink until stopped.
type Source interface {
	// Start begins producing in the background. It returns once the source
	// is ready or has failed to start.
	Start(ctx context.Context, sink Sink) error
	Stop()
}
