package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"

	"fvg_bot/internal/models"
	"fvg_bot/pkg/logger"
)

type Publisher interface {
	Publish(ev models.Event)
}

// Client is one subscriber. Frames arrive already encoded.
type Client struct {
	send    chan []byte
	dropped atomic.Int64
}

func (c *Client) C() <-chan []byte { return c.send }

func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Hub fans events out to every subscriber without ever blocking the publisher.
// It numbers events per type and keeps the latest one of each type so a new
// subscriber starts from the current picture.
type Hub struct {
	bufSize int
	now     func() time.Time

	mu      sync.Mutex
	seq     map[models.EventType]uint64
	last    map[models.EventType][]byte
	order   []models.EventType
	clients map[*Client]struct{}

	dropped atomic.Int64
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		bufSize: bufSize,
		now:     time.Now,
		seq:     make(map[models.EventType]uint64),
		last:    make(map[models.EventType][]byte),
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) Publish(ev models.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq[ev.Type]++
	ev.Seq = h.seq[ev.Type]
	if ev.Time.IsZero() {
		ev.Time = h.now()
	}

	frame, err := sonic.Marshal(ev)
	if err != nil {
		logger.Error("[HUB] encode %s: %v", ev.Type, err)
		return
	}

	if _, seen := h.last[ev.Type]; !seen {
		h.order = append(h.order, ev.Type)
	}
	h.last[ev.Type] = frame

	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			c.dropped.Add(1)
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a client and queues the latest event of every type for it.
func (h *Hub) Subscribe() *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	size := h.bufSize
	if n := len(h.order); n > size {
		size = n
	}
	c := &Client{send: make(chan []byte, size)}
	for _, t := range h.order {
		c.send <- h.last[t]
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Last returns the latest encoded event of type t.
func (h *Hub) Last(t models.EventType) ([]byte, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.last[t]
	return b, ok
}

// Fanout publishes to every attached publisher in attach order. Publishers
// may be attached after the engine starts publishing.
type Fanout struct {
	mu   sync.RWMutex
	pubs []Publisher
}

func NewFanout(pubs ...Publisher) *Fanout {
	f := &Fanout{}
	for _, p := range pubs {
		f.Attach(p)
	}
	return f
}

func (f *Fanout) Attach(p Publisher) {
	if p == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, p)
}

func (f *Fanout) Publish(ev models.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, p := range f.pubs {
		p.Publish(ev)
	}
}
