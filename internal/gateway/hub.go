// Package gateway fans ledger and pairs events out to WebSocket clients.
//
// Channels:
//
//	exec:{strategy}:{symbol}    every execution appended to a ledger
//	order:{strategy}:{symbol}   every order close
//	error:{strategy}:{symbol}   failed execution requests
//	pair:{Y}/{X}                pair ledger transitions
//	fill:{symbol}               confirmed broker fills
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"trading-replay/internal/model"
)

// replayDepth is the number of envelopes kept per channel for backfill.
const replayDepth = 500

// Hub manages WebSocket clients. It implements strategy.Observer,
// pairs.Observer and model.FillSink, so it can be attached to replays,
// pairs cycles and the execution journal alike.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]bool
	latest      map[string]latestEntry
	seq         int64
	channelSeqs map[string]int64
	replayBufs  map[string]*ReplayBuffer

	upgrader    websocket.Upgrader
	broadcaster *Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

type latestEntry struct {
	Data json.RawMessage
	TS   time.Time
	Seq  int64
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		clients:     make(map[*Client]bool),
		latest:      make(map[string]latestEntry),
		channelSeqs: make(map[string]int64),
		replayBufs:  make(map[string]*ReplayBuffer),
		upgrader: websocket.Upgrader{
			CheckOrigin:       func(r *http.Request) bool { return true },
			EnableCompression: true,
		},
		log: log.With("component", "gateway"),
		now: func() time.Time { return time.Now().UTC() },
	}
	h.broadcaster = NewBroadcaster(h)
	return h
}

// ExecChannel names the channel carrying a strategy's executions.
func ExecChannel(strategy, symbol string) string { return "exec:" + strategy + ":" + symbol }

// OrderChannel names the channel carrying a strategy's order closes.
func OrderChannel(strategy, symbol string) string { return "order:" + strategy + ":" + symbol }

// ErrorChannel names the channel carrying failed execution requests.
func ErrorChannel(strategy, symbol string) string { return "error:" + strategy + ":" + symbol }

// PairChannel names the channel carrying a pair's transitions.
func PairChannel(y, x string) string { return "pair:" + y + "/" + x }

// FillChannel names the channel carrying a symbol's fills.
func FillChannel(symbol string) string { return "fill:" + symbol }

// ServeHTTP upgrades the request to a WebSocket and registers the client.
// A last_ts query parameter limits the initial state to newer entries.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "error", err)
		return
	}
	h.register(conn, r.URL.Query().Get("last_ts"))
}

func (h *Hub) register(conn *websocket.Conn, lastTS string) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]bool),
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("ws client connected", "clients", count)

	go client.sendInitialState(lastTS)
	go client.writePump()
	go client.readPump()
}

// RemoveClient removes a client from the hub and closes its queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}

// Latest returns the newest payload on every channel.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v.Data
	}
	return cp
}

// ReplayRange returns buffered envelopes for a channel in [fromSeq, toSeq].
func (h *Hub) ReplayRange(channel string, fromSeq, toSeq int64) [][]byte {
	h.mu.RLock()
	rb, ok := h.replayBufs[channel]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	entries := rb.Range(fromSeq, toSeq)
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.Data
	}
	return out
}

// ChannelSeq returns the current sequence number of a channel.
func (h *Hub) ChannelSeq(channel string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.channelSeqs[channel]
}

func (h *Hub) publish(channel string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("encode event", "channel", channel, "error", err)
		return
	}
	h.broadcaster.Broadcast(channel, data)
}

// OnExecution implements strategy.Observer.
func (h *Hub) OnExecution(strategy string, e model.Execution) {
	h.publish(ExecChannel(strategy, e.Symbol), e)
}

// OnOrderClosed implements strategy.Observer.
func (h *Hub) OnOrderClosed(strategy string, o model.OpenOrder) {
	h.publish(OrderChannel(strategy, o.Symbol), o)
}

// OnExecutionError implements strategy.Observer.
func (h *Hub) OnExecutionError(strategy, symbol string, err error) {
	h.publish(ErrorChannel(strategy, symbol), map[string]string{"error": err.Error()})
}

// OnReplay implements strategy.Observer. Replay completion is not broadcast.
func (h *Hub) OnReplay(string, string, int, time.Duration) {}

// OnPairTransition implements pairs.Observer.
func (h *Hub) OnPairTransition(p model.PairPosition, from model.PairStatus) {
	h.publish(PairChannel(p.SymbolY, p.SymbolX), struct {
		From model.PairStatus `json:"from"`
		model.PairPosition
	}{from, p})
}

// RecordFill implements model.FillSink.
func (h *Hub) RecordFill(_ context.Context, f model.Fill) error {
	h.publish(FillChannel(f.Symbol), f)
	return nil
}
