package gateway

import (
	"context"
	"strings"

	goredis "github.com/go-redis/redis/v8"
)

// fillPattern matches the fill notifications the Redis store publishes.
const fillPattern = "pub:fill:*"

// PubSubRouter relays fills published on Redis by other processes (a live
// pairs cycle, say) to this hub's clients.
type PubSubRouter struct {
	hub *Hub
	rdb *goredis.Client
}

// NewPubSubRouter creates a router feeding hub from rdb.
func NewPubSubRouter(hub *Hub, rdb *goredis.Client) *PubSubRouter {
	return &PubSubRouter{hub: hub, rdb: rdb}
}

// Run subscribes to fill notifications and routes them until ctx is
// cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, fillPattern)
	defer pubsub.Close()

	r.hub.log.Info("relaying redis fills", "pattern", fillPattern)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.route(msg.Channel, msg.Payload)
		}
	}
}

func (r *PubSubRouter) route(channel, payload string) {
	symbol := strings.TrimPrefix(channel, "pub:fill:")
	if symbol == channel || symbol == "" {
		return
	}
	r.hub.broadcaster.Broadcast(FillChannel(symbol), []byte(payload))
}
