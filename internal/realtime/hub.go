package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// Event names pushed to the door dashboard.
const (
	EventCheckIn             = "checkin"
	EventRegistrationDeleted = "registration_deleted"
)

// Hub maintains the connected dashboard clients and broadcasts check-in events.
// With Redis configured every instance receives every event through pub/sub.
type Hub struct {
	clients     map[string]*Client
	unsub       func() // cancels the Redis subscription while clients are connected
	subscribing bool
	mu          sync.RWMutex
	logger      *zap.Logger
	redis       RedisPublisher
	redisSub    RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishEvent(event string, payload []byte) error
}

// RedisSubscriber subscribes to the check-in channel and invokes handler for incoming events.
type RedisSubscriber interface {
	Subscribe(handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:  make(map[string]*Client),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client. The first client starts the Redis subscription,
// which runs outside the lock so broadcasts are not held up by Redis.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	start := h.redisSub != nil && h.unsub == nil && !h.subscribing
	if start {
		h.subscribing = true
	}
	h.mu.Unlock()
	h.logger.Debug("dashboard client joined", zap.String("client_id", c.ID), zap.Int("clients", count))

	if start {
		h.subscribe()
	}
}

func (h *Hub) subscribe() {
	cancel, err := h.redisSub.Subscribe(func(event string, payload []byte) {
		h.Broadcast(event, json.RawMessage(payload))
	})

	h.mu.Lock()
	h.subscribing = false
	if err != nil {
		h.mu.Unlock()
		h.logger.Warn("redis subscribe failed", zap.Error(err))
		return
	}
	if len(h.clients) == 0 {
		// everyone left while subscribing
		h.mu.Unlock()
		cancel()
		return
	}
	h.unsub = cancel
	h.mu.Unlock()
}

// Unregister removes a client. Cancels the Redis subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.ID)
	var cancel func()
	if len(h.clients) == 0 {
		cancel, h.unsub = h.unsub, nil
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	h.logger.Debug("dashboard client left", zap.String("client_id", c.ID))
}

// Broadcast sends a message to all local clients.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Publish delivers an event to every dashboard. With Redis it publishes only,
// so the subscriber callback broadcasts once on every instance including this one.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event failed", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis != nil {
		if err := h.redis.PublishEvent(event, data); err != nil {
			h.logger.Warn("redis publish failed", zap.String("event", event), zap.Error(err))
			h.Broadcast(event, json.RawMessage(data))
		}
		return
	}
	h.Broadcast(event, json.RawMessage(data))
}

// ClientCount returns the number of connected local clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
