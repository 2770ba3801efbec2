// Package publish forwards confirmed tag positions to NATS.
package publish

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
)

// PositionMessage is the JSON payload published for every confirmed point.
type PositionMessage struct {
	TagID     string    `json:"tag_id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Z         float64   `json:"z"`
	Azimuth   float64   `json:"azimuth"`
	Elevation float64   `json:"elevation"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPositionMessage converts a point to its wire form.
func NewPositionMessage(p position.PositionPoint) PositionMessage {
	return PositionMessage{
		TagID:     p.TagID,
		X:         p.X,
		Y:         p.Y,
		Z:         p.Z,
		Azimuth:   p.Azimuth,
		Elevation: p.Elevation,
		Timestamp: p.Timestamp,
	}
}

// Publisher publishes positions on <subject>.<tag>. Until Connect succeeds
// every publish is a no-op.
type Publisher struct {
	conn    *nats.Conn
	subject string
	mu      sync.Mutex
	enabled bool
	log     zerolog.Logger
}

// NewPublisher creates a disconnected publisher for subject.
func NewPublisher(subject string) *Publisher {
	return &Publisher{
		subject: subject,
		log:     logging.With("nats"),
	}
}

// Connect connects to the NATS server at url and keeps reconnecting forever.
func (p *Publisher) Connect(url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []nats.Option{
		nats.Name("atr-radar"),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.log.Warn().Err(err).Msg("disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.log.Info().Str("url", nc.ConnectedUrl()).Msg("reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			p.log.Info().Msg("connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		p.enabled = false
		return fmt.Errorf("connect to nats: %w", err)
	}
	p.conn = conn
	p.enabled = true
	p.log.Info().Str("url", url).Str("subject", p.subject).Msg("connected")
	return nil
}

// Subject returns the subject a tag's positions are published on.
func (p *Publisher) Subject(tagID string) string {
	return p.subject + "." + subjectToken(tagID)
}

// Publish sends one confirmed point.
func (p *Publisher) Publish(pt position.PositionPoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || p.conn == nil {
		return nil
	}

	data, err := json.Marshal(NewPositionMessage(pt))
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	if err := p.conn.Publish(p.Subject(pt.TagID), data); err != nil {
		return fmt.Errorf("publish to %s: %w", p.Subject(pt.TagID), err)
	}
	return nil
}

// Handler adapts Publish to an OnSignificant callback; failures are logged.
func (p *Publisher) Handler() func(position.PositionPoint) {
	return func(pt position.PositionPoint) {
		if err := p.Publish(pt); err != nil {
			p.log.Warn().Err(err).Str("tag", pt.TagID).Msg("publish failed")
		}
	}
}

// Disconnect flushes and closes the connection.
func (p *Publisher) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		if err := p.conn.FlushTimeout(time.Second); err != nil {
			p.log.Warn().Err(err).Msg("flush failed")
		}
		p.conn.Close()
		p.conn = nil
		p.enabled = false
	}
}

// IsConnected reports whether the server connection is currently up.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled && p.conn != nil && p.conn.IsConnected()
}

// subjectToken replaces characters NATS reserves in subject tokens.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
