package notify

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/websocket"
)

// Sender forwards one event to whatever transport backs a bridge.
type Sender func(topic string, payload Event) error

// WSBridge forwards Bus events to a gorilla/websocket connection,
// deduping repeated (topic, key) pairs for a short TTL so a burst of
// identical events doesn't spam a freshly (re)connected client.
type WSBridge struct {
	sender     Sender
	dedupeTTL  time.Duration
	mu         sync.Mutex
	lastSent   map[dedupeKey]time.Time
	subs       []*Subscription
}

type dedupeKey struct {
	topic string
	key   string
}

// NewWSBridge wraps a raw send function (topic, payload) -> error.
func NewWSBridge(sender Sender, dedupeTTL time.Duration) *WSBridge {
	if dedupeTTL < 0 {
		dedupeTTL = 0
	}
	return &WSBridge{sender: sender, dedupeTTL: dedupeTTL, lastSent: make(map[dedupeKey]time.Time)}
}

// NewWSBridgeForConn builds a bridge that writes JSON text frames
// directly to a gorilla/websocket connection — one send call per event,
// serialized by an internal lock since *websocket.Conn is not safe for
// concurrent writers.
func NewWSBridgeForConn(conn *websocket.Conn, dedupeTTL time.Duration) *WSBridge {
	var writeMu sync.Mutex
	sender := func(topic string, payload Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		msg := map[string]interface{}{"topic": topic, "payload": payload}
		return conn.WriteJSON(msg)
	}
	return NewWSBridge(sender, dedupeTTL)
}

// Attach subscribes the bridge to all mempool topics on bus. Calling
// Attach again while already attached is a no-op.
func (w *WSBridge) Attach(bus *Bus) {
	w.mu.Lock()
	alreadyAttached := len(w.subs) > 0
	w.mu.Unlock()
	if alreadyAttached {
		return
	}

	subs := []*Subscription{
		bus.Subscribe(TopicPendingTx, w.forward),
		bus.Subscribe(TopicDroppedTx, w.forward),
		bus.Subscribe(TopicReplacedTx, w.forward),
		bus.Subscribe(TopicReorgSummary, w.forward),
	}
	w.mu.Lock()
	w.subs = subs
	w.mu.Unlock()

	log.Info("notify: ws bridge attached", "pendingTx", bus.Subscribers(TopicPendingTx),
		"droppedTx", bus.Subscribers(TopicDroppedTx), "replacedTx", bus.Subscribers(TopicReplacedTx),
		"reorgSummary", bus.Subscribers(TopicReorgSummary))
}

// Detach unsubscribes the bridge from every topic it joined.
func (w *WSBridge) Detach() {
	w.mu.Lock()
	subs := w.subs
	w.subs = nil
	w.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

func (w *WSBridge) forward(topic string, payload Event) {
	var key string
	switch topic {
	case TopicPendingTx, TopicDroppedTx:
		if h, ok := payload["hash"].(string); ok {
			key = h
		}
	case TopicReplacedTx:
		if h, ok := payload["new"].(string); ok {
			key = h
		} else if h, ok := payload["old"].(string); ok {
			key = h
		}
	}

	if w.dedupeTTL > 0 && key != "" {
		now := time.Now()
		k := dedupeKey{topic: topic, key: key}
		w.mu.Lock()
		last, seen := w.lastSent[k]
		if seen && now.Sub(last) < w.dedupeTTL {
			w.mu.Unlock()
			return
		}
		w.lastSent[k] = now
		w.mu.Unlock()
	}

	if err := w.sender(topic, payload); err != nil {
		log.Warn("notify: ws bridge send failed", "topic", topic, "err", err)
	}
}
