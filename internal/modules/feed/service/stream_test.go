package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fvg_bot/internal/models"
)

// fakeMarket speaks the auth, subscribe and bars exchange of the data stream.
func fakeMarket(t *testing.T, frames ...string) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"T":"success","msg":"connected"}]`))

		var auth map[string]string
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		if auth["key"] != "key" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"T":"error","code":402,"msg":"auth failed"}]`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"T":"success","msg":"authenticated"}]`))

		var sub map[string]any
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		for _, f := range frames {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func next(t *testing.T, s *Stream) models.FeedEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	return ev
}

func TestStream_DeliversValidBarsInOrder(t *testing.T) {
	srv := fakeMarket(t,
		`[{"T":"b","S":"SPY","o":470,"h":471,"l":469,"c":470.5,"v":100,"t":"2024-01-02T14:30:00Z"}]`,
		`[{"T":"b","S":"QQQ","o":400,"h":401,"l":399,"c":400.5,"v":100,"t":"2024-01-02T14:30:00Z"},`+
			`{"T":"b","S":"SPY","o":470,"h":471,"l":469,"c":470.5,"v":100,"t":"2024-01-02T14:30:00Z"},`+
			`{"T":"b","S":"SPY","o":470,"h":460,"l":469,"c":470.5,"v":100,"t":"2024-01-02T14:45:00Z"}]`,
		`not json`,
		`[{"T":"b","S":"SPY","o":470.5,"h":472,"l":470,"c":471.5,"v":120,"t":"2024-01-02T15:00:00Z"}]`,
	)
	defer srv.Close()

	var (
		mu      sync.Mutex
		skipped int
		states  []bool
	)
	s := NewStream(StreamConfig{URL: wsURL(srv), KeyID: "key", SecretKey: "secret", Symbol: "SPY"}, nil)
	s.OnSkip = func(models.Bar, error) { mu.Lock(); skipped++; mu.Unlock() }
	s.OnState = func(c bool) { mu.Lock(); states = append(states, c); mu.Unlock() }
	s.Start(context.Background())

	first := next(t, s)
	second := next(t, s)
	require.NoError(t, s.Close())

	assert.Equal(t, models.FeedCandle, first.Kind)
	assert.EqualValues(t, 0, first.Candle.Index)
	assert.Equal(t, 470.5, first.Candle.Close)
	assert.EqualValues(t, 1, second.Candle.Index)
	assert.Equal(t, 471.5, second.Candle.Close)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []bool{true, false}, states)
	assert.False(t, s.Connected())
}

func TestStream_SeedLastIgnoresWarmupBars(t *testing.T) {
	srv := fakeMarket(t,
		`[{"T":"b","S":"SPY","o":470,"h":471,"l":469,"c":470.5,"v":100,"t":"2024-01-02T14:30:00Z"}]`,
		`[{"T":"b","S":"SPY","o":470.5,"h":472,"l":470,"c":471.5,"v":120,"t":"2024-01-02T14:45:00Z"}]`,
	)
	defer srv.Close()

	seq := NewSequencer()
	for i := 0; i < 10; i++ {
		seq.Stamp(models.Bar{})
	}
	s := NewStream(StreamConfig{URL: wsURL(srv), KeyID: "key", Symbol: "SPY"}, seq)
	s.SeedLast(time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC))
	s.Start(context.Background())
	defer func() { _ = s.Close() }()

	ev := next(t, s)
	assert.Equal(t, 471.5, ev.Candle.Close)
	assert.EqualValues(t, 10, ev.Candle.Index)
}

func TestStream_SessionReset(t *testing.T) {
	srv := fakeMarket(t,
		`[{"T":"b","S":"SPY","o":470,"h":471,"l":469,"c":470.5,"v":100,"t":"2024-01-02T20:45:00Z"}]`,
		`[{"T":"b","S":"SPY","o":470.5,"h":472,"l":470,"c":471.5,"v":120,"t":"2024-01-03T14:30:00Z"}]`,
	)
	defer srv.Close()

	s := NewStream(StreamConfig{
		URL: wsURL(srv), KeyID: "key", Symbol: "SPY",
		Session: SessionOptions{Location: time.UTC, Enabled: true},
	}, nil)
	s.Start(context.Background())
	defer func() { _ = s.Close() }()

	assert.Equal(t, models.FeedCandle, next(t, s).Kind)
	reset := next(t, s)
	assert.Equal(t, models.FeedSessionReset, reset.Kind)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), reset.Session)
	assert.Equal(t, models.FeedCandle, next(t, s).Kind)
}

func TestStream_CloseEndsFeed(t *testing.T) {
	srv := fakeMarket(t)
	defer srv.Close()

	s := NewStream(StreamConfig{URL: wsURL(srv), KeyID: "key", Symbol: "SPY"}, nil)
	s.Start(context.Background())
	require.NoError(t, s.Close())

	_, err := s.Next(context.Background())
	assert.Error(t, err)
}
