package gateway

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
)

// RegisterRoutes mounts the WebSocket endpoint and the REST helpers:
//
//	/ws            event stream
//	/api/latest    newest payload per channel
//	/api/missed    buffered envelopes, ?channel=&from=&to=
func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	mux.Handle("/ws", hub)
	mux.HandleFunc("/api/latest", hub.handleLatest)
	mux.HandleFunc("/api/missed", hub.handleMissed)
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Latest())
}

func (h *Hub) handleMissed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}
	from, err := parseSeq(q.Get("from"), 1)
	if err != nil {
		http.Error(w, "bad from: "+err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseSeq(q.Get("to"), math.MaxInt64)
	if err != nil {
		http.Error(w, "bad to: "+err.Error(), http.StatusBadRequest)
		return
	}

	envs := h.ReplayRange(channel, from, to)
	out := make([]json.RawMessage, len(envs))
	for i, e := range envs {
		out[i] = e
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"channel":     channel,
		"channel_seq": h.ChannelSeq(channel),
		"envelopes":   out,
	})
}

func parseSeq(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
