package ingest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"atr-radar.klederson.com/internal/logging"
)

const (
	wsHandshakeTimeout  = 10 * time.Second
	wsReadTimeout       = 60 * time.Second
	wsPingPeriod        = 30 * time.Second
	wsMinReconnectDelay = time.Second
	wsMaxReconnectDelay = 32 * time.Second
)

// WebSocketSource reads event frames from the reader's WebSocket stream and
// reconnects with exponential backoff when the connection drops.
type WebSocketSource struct {
	url   string
	token string
	log   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	connected func(bool)
}

// NewWebSocketSource creates a source for url. A non-empty token is sent as
// a bearer Authorization header.
func NewWebSocketSource(url, token string) *WebSocketSource {
	return &WebSocketSource{
		url:    url,
		token:  token,
		log:    logging.With("websocket"),
		stopCh: make(chan struct{}),
	}
}

// OnConnectionChange registers fn to be told when the stream connects or drops.
// Must be called before Start.
func (s *WebSocketSource) OnConnectionChange(fn func(connected bool)) {
	s.connected = fn
}

// Start dials the stream. The first dial error is returned so a bad URL is
// reported immediately; later drops are retried in the background.
func (s *WebSocketSource) Start(ctx context.Context, sink Sink) error {
	if err := s.dial(ctx); err != nil {
		return err
	}
	s.wg.Add(2)
	go s.listen(ctx, sink)
	go s.pingLoop(ctx)
	return nil
}

func (s *WebSocketSource) dial(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout:  wsHandshakeTimeout,
		EnableCompression: true,
	}
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	s.log.Info().Str("url", s.url).Msg("connecting")
	conn, resp, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	s.log.Info().Msg("connected")
	s.notify(true)
	return nil
}

func (s *WebSocketSource) listen(ctx context.Context, sink Sink) {
	defer s.wg.Done()

	delay := wsMinReconnectDelay
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			s.log.Info().Dur("delay", delay).Msg("connection lost, reconnecting")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			}
			delay = min(delay*2, wsMaxReconnectDelay)
			if err := s.dial(ctx); err != nil {
				s.log.Warn().Err(err).Msg("reconnect failed")
			}
			continue
		}

		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			switch {
			case ctx.Err() != nil || s.stopping():
				return
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.log.Info().Msg("connection closed by reader")
			default:
				s.log.Warn().Err(err).Msg("read error")
			}
			s.closeConn()
			continue
		}

		delay = wsMinReconnectDelay
		sink.Submit(msg, time.Now())
	}
}

func (s *WebSocketSource) pingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.connMu.Lock()
			conn := s.conn
			var err error
			if conn != nil {
				err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
			}
			s.connMu.Unlock()
			if err != nil {
				s.log.Warn().Err(err).Msg("ping failed")
				s.closeConn()
			}
		}
	}
}

func (s *WebSocketSource) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *WebSocketSource) closeConn() {
	s.connMu.Lock()
	conn := s.conn
	s.conn = nil
	s.connMu.Unlock()

	if conn == nil {
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = conn.Close()
	s.notify(false)
}

func (s *WebSocketSource) notify(connected bool) {
	if s.connected != nil {
		s.connected(connected)
	}
}

// Connected reports whether the stream is currently open.
func (s *WebSocketSource) Connected() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn != nil
}

// Stop closes the stream and waits for the background goroutines.
func (s *WebSocketSource) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.closeConn()
		s.wg.Wait()
		s.log.Info().Msg("stopped")
	})
}
