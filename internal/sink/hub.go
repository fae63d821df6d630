package sink

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/interviewpilot/internal/observe"
	"github.com/MrWong99/interviewpilot/internal/pipeline"
	"github.com/MrWong99/interviewpilot/internal/speech"
)

// Message types sent on the feed.
const (
	TypeResult  = "result"
	TypePreview = "preview"
	TypeClear   = "clear"
)

// Message is one JSON frame on the results feed.
type Message struct {
	Type string `json:"type"`

	// Result fields.
	ID                string    `json:"id,omitempty"`
	Generation        uint64    `json:"generation,omitempty"`
	Original          string    `json:"original,omitempty"`
	Translation       string    `json:"translation,omitempty"`
	Answer            string    `json:"answer,omitempty"`
	TranslationStatus string    `json:"translation_status,omitempty"`
	AnswerStatus      string    `json:"answer_status,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitzero"`

	// Preview fields.
	Preview     string `json:"preview,omitempty"`
	PreviewKind string `json:"preview_kind,omitempty"`
}

func resultMessage(r pipeline.Result) Message {
	return Message{
		Type:              TypeResult,
		ID:                r.ID.String(),
		Generation:        r.Generation,
		Original:          r.Original,
		Translation:       r.Translation,
		Answer:            r.Answer,
		TranslationStatus: r.TranslationStatus.String(),
		AnswerStatus:      r.AnswerStatus.String(),
		CreatedAt:         r.CreatedAt,
	}
}

func previewKindName(k speech.PreviewKind) string {
	switch k {
	case speech.PreviewWaiting:
		return "waiting"
	case speech.PreviewIdle:
		return "idle"
	default:
		return "speech"
	}
}

// Default hub settings.
const (
	DefaultClientBuffer = 32
	DefaultWriteTimeout = 5 * time.Second
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithClientBuffer sets how many messages may queue per client before the
// client is disconnected as too slow.
func WithClientBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// WithOriginPatterns allows cross-origin websocket connections from hosts
// matching the given patterns.
func WithOriginPatterns(patterns ...string) HubOption {
	return func(h *Hub) { h.origins = patterns }
}

// WithHubMetrics sets the metrics recorder. Defaults to
// [observe.DefaultMetrics].
func WithHubMetrics(m *observe.Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

type client struct {
	send chan []byte
}

// Hub broadcasts results, previews and clear events to websocket clients.
// Broadcasting never blocks: every client has a bounded queue and a client
// whose queue is full is dropped.
//
// A newly connected client receives the latest result, if any, so an overlay
// opened mid-session is not blank.
type Hub struct {
	bufSize      int
	writeTimeout time.Duration
	origins      []string
	metrics      *observe.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	last    []byte
	closed  bool
}

var (
	_ Sink         = (*Hub)(nil)
	_ http.Handler = (*Hub)(nil)
)

// NewHub creates an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		bufSize:      DefaultClientBuffer,
		writeTimeout: DefaultWriteTimeout,
		clients:      make(map[*client]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// OnResult implements [pipeline.Sink].
func (h *Hub) OnResult(_ context.Context, r pipeline.Result) {
	data, ok := encode(resultMessage(r))
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	h.broadcastLocked(data)
}

// OnPreview implements [Sink].
func (h *Hub) OnPreview(kind speech.PreviewKind, text string) {
	data, ok := encode(Message{Type: TypePreview, Preview: text, PreviewKind: previewKindName(kind)})
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(data)
}

// Clear implements [Sink].
func (h *Hub) Clear() {
	data, ok := encode(Message{Type: TypeClear})
	if !ok {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = nil
	h.broadcastLocked(data)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

// ServeHTTP upgrades the request to a websocket and streams feed messages
// until the client goes away or the hub is closed. Client frames are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Debug("sink: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	c := &client{send: make(chan []byte, h.bufSize)}
	if !h.add(c) {
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	defer h.remove(c)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				if h.isClosed() {
					conn.Close(websocket.StatusGoingAway, "shutting down")
				} else {
					conn.Close(websocket.StatusPolicyViolation, "client too slow")
				}
				return
			}
			wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				slog.Debug("sink: websocket write failed", "err", err)
				return
			}
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.metrics.FeedClients.Add(context.Background(), 1)
	slog.Debug("sink: feed client connected", "clients", len(h.clients))
	return true
}

func (h *Hub) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.FeedClients.Add(context.Background(), -1)
}

func (h *Hub) broadcastLocked(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("sink: feed client too slow, disconnecting")
			h.removeLocked(c)
		}
	}
}

func encode(m Message) ([]byte, bool) {
	data, err := json.Marshal(m)
	if err != nil {
		slog.Error("sink: encode feed message", "type", m.Type, "err", err)
		return nil, false
	}
	return data, true
}
