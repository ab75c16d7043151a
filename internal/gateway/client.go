package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// channel prefixes; empty means everything
	subMu sync.RWMutex
	subs  map[string]bool
}

// controlMsg is what clients send: SUBSCRIBE / UNSUBSCRIBE with channel
// prefixes such as "pair:" or "exec:simple_sma:", or a bare ping.
type controlMsg struct {
	Type     string   `json:"type"`
	ReqID    string   `json:"req_id,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Ping     int64    `json:"ping,omitempty"`
}

type controlReply struct {
	Type     string   `json:"type"`
	ReqID    string   `json:"req_id,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Ping     int64    `json:"ping,omitempty"`
	ServerTS int64    `json:"server_ts,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		if !c.matchesChannel(channel) {
			continue
		}
		msg, _ := json.Marshal(map[string]interface{}{
			"channel":     channel,
			"data":        entry.Data,
			"ts":          entry.TS.Format(time.RFC3339Nano),
			"channel_seq": entry.Seq,
			"initial":     true,
		})
		select {
		case c.send <- msg:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// queued messages go out in the same frame, newline separated
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		c.hub.log.Info("ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(controlReply{Type: "error", Error: "invalid message: " + err.Error()})
			continue
		}

		switch strings.ToUpper(msg.Type) {
		case "SUBSCRIBE":
			c.subMu.Lock()
			for _, ch := range msg.Channels {
				c.subs[ch] = true
			}
			c.subMu.Unlock()
			c.reply(controlReply{Type: "subscribed", ReqID: msg.ReqID, Channels: msg.Channels})
		case "UNSUBSCRIBE":
			c.subMu.Lock()
			for _, ch := range msg.Channels {
				delete(c.subs, ch)
			}
			c.subMu.Unlock()
			c.reply(controlReply{Type: "unsubscribed", ReqID: msg.ReqID, Channels: msg.Channels})
		default:
			if msg.Ping > 0 {
				c.reply(controlReply{Type: "pong", Ping: msg.Ping, ServerTS: time.Now().UnixMilli()})
				continue
			}
			c.reply(controlReply{Type: "error", ReqID: msg.ReqID, Error: "unknown message type " + msg.Type})
		}
	}
}

func (c *Client) reply(r controlReply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// matchesChannel reports whether the client wants messages on channel.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subs) == 0 {
		return true
	}
	for prefix := range c.subs {
		if strings.HasPrefix(channel, prefix) {
			return true
		}
	}
	return false
}
