package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

const (
	pingInterval   = 20 * time.Second
	reconnectDelay = time.Second
	authTimeout    = 10 * time.Second
)

type StreamConfig struct {
	URL       string
	KeyID     string
	SecretKey string
	Symbol    string
	QueueSize int
	Session   SessionOptions
}

// Stream is a supervised market-data websocket. It reconnects on its own and
// hands closed bars to the pipeline through a bounded queue.
type Stream struct {
	cfg    StreamConfig
	dialer *websocket.Dialer
	seq    *Sequencer
	sess   *sessionTracker

	queue     chan models.FeedEvent
	connected atomic.Bool
	last      time.Time

	OnSkip  SkipFunc
	OnState func(connected bool)

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewStream(cfg StreamConfig, seq *Sequencer) *Stream {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if seq == nil {
		seq = NewSequencer()
	}
	return &Stream{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		seq:    seq,
		sess:   newSessionTracker(cfg.Session),
		queue:  make(chan models.FeedEvent, cfg.QueueSize),
	}
}

// Start launches the connection loop. Stop it with Close.
func (s *Stream) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.queue)
		s.run(ctx)
	}()
}

// SeedLast makes the stream ignore bars at or before t (already served by warmup).
func (s *Stream) SeedLast(t time.Time) {
	s.last = t
	s.sess.boundary(t)
}

func (s *Stream) Next(ctx context.Context) (models.FeedEvent, error) {
	select {
	case <-ctx.Done():
		return models.FeedEvent{}, ctx.Err()
	case ev, ok := <-s.queue:
		if !ok {
			return models.FeedEvent{}, io.EOF
		}
		return ev, nil
	}
}

func (s *Stream) Close() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
	return nil
}

func (s *Stream) Connected() bool { return s.connected.Load() }

func (s *Stream) setConnected(v bool) {
	if s.connected.Swap(v) != v && s.OnState != nil {
		s.OnState(v)
	}
}

func (s *Stream) run(ctx context.Context) {
	for {
		logger.Info("[WS] connect %s %s", s.cfg.URL, s.cfg.Symbol)
		err := s.session(ctx)
		s.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("[WS] stream dropped: %v", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// session runs one connection until it fails or ctx ends.
func (s *Stream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if err := s.handshake(conn); err != nil {
		return err
	}
	s.setConnected(true)

	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				// unblocks ReadMessage
				_ = conn.Close()
				return
			case <-stopPing:
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		msgs, err := decodeFrame(msg)
		if err != nil {
			logger.Warn("[WS] bad frame: %v", err)
			continue
		}
		for _, m := range msgs {
			switch m.T {
			case "b":
				if err := s.onBar(ctx, m.bar()); err != nil {
					return err
				}
			case "error":
				logger.Error("[WS] server error code=%d msg=%s", m.Code, m.Msg)
			}
		}
	}
}

func (s *Stream) handshake(conn *websocket.Conn) error {
	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	auth := map[string]string{"action": "auth", "key": s.cfg.KeyID, "secret": s.cfg.SecretKey}
	if err := conn.WriteJSON(auth); err != nil {
		return fmt.Errorf("auth write: %w", err)
	}

	for authed := false; !authed; {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("auth read: %w", err)
		}
		msgs, err := decodeFrame(msg)
		if err != nil {
			continue
		}
		for _, m := range msgs {
			switch {
			case m.T == "success" && m.Msg == "authenticated":
				authed = true
			case m.T == "error":
				return fmt.Errorf("auth rejected: code=%d msg=%s", m.Code, m.Msg)
			}
		}
	}

	sub := map[string]any{"action": "subscribe", "bars": []string{s.cfg.Symbol}}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *Stream) onBar(ctx context.Context, bar models.Bar) error {
	if bar.Symbol != s.cfg.Symbol {
		return nil
	}
	if err := bar.Validate(); err != nil {
		if s.OnSkip != nil {
			s.OnSkip(bar, err)
		}
		return nil
	}
	// replays after reconnect
	if !s.last.IsZero() && !bar.Time.After(s.last) {
		return nil
	}
	s.last = bar.Time

	c := s.seq.Stamp(bar)
	if day, ok := s.sess.boundary(bar.Time); ok {
		if err := s.push(ctx, models.FeedEvent{Kind: models.FeedSessionReset, Session: day}); err != nil {
			return err
		}
	}
	return s.push(ctx, models.FeedEvent{Kind: models.FeedCandle, Candle: c})
}

// push blocks when the pipeline lags; closed bars are never dropped.
func (s *Stream) push(ctx context.Context, ev models.FeedEvent) error {
	select {
	case s.queue <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type streamMsg struct {
	T    string    `json:"T"`
	Msg  string    `json:"msg"`
	Code int       `json:"code"`
	S    string    `json:"S"`
	O    float64   `json:"o"`
	H    float64   `json:"h"`
	L    float64   `json:"l"`
	C    float64   `json:"c"`
	V    float64   `json:"v"`
	Ts   time.Time `json:"t"`
}

func (m streamMsg) bar() models.Bar {
	return models.Bar{Symbol: m.S, Time: m.Ts, Open: m.O, High: m.H, Low: m.L, Close: m.C, Volume: m.V}
}

func decodeFrame(b []byte) ([]streamMsg, error) {
	var msgs []streamMsg
	if err := sonic.Unmarshal(b, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
