// Package notify implements the mempool event bus (spec.md §4.4): a
// synchronous, thread-safe pub-sub bus emitting pendingTx/droppedTx/
// replacedTx, plus a WebSocket bridge that forwards events to RPC
// subscribers. Grounded on mempool/notify.py.
package notify

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
)

const (
	TopicPendingTx    = "pendingTx"
	TopicDroppedTx    = "droppedTx"
	TopicReplacedTx   = "replacedTx"
	TopicReorgSummary = "reorgSummary"
)

// Event is a JSON-serializable payload delivered to subscribers.
type Event map[string]interface{}

// Subscriber receives events for topics it subscribed to.
type Subscriber func(topic string, payload Event)

// Subscription is an opaque handle allowing unsubscription.
type Subscription struct {
	id    string
	topic string
	bus   *Bus
}

// Unsubscribe removes this subscription's callback from the bus.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.topic, s.id)
}

type subEntry struct {
	id string
	cb Subscriber
}

// Bus is a synchronous, thread-safe pub-sub bus with per-topic
// subscriber lists and best-effort delivery: a subscriber panic is
// recovered and logged rather than propagated.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]subEntry
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subEntry)}
}

// Subscribe registers cb for topic and returns a handle to unsubscribe.
func (b *Bus) Subscribe(topic string, cb Subscriber) *Subscription {
	id := uuid.NewString()
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], subEntry{id: id, cb: cb})
	b.mu.Unlock()
	return &Subscription{id: id, topic: topic, bus: b}
}

func (b *Bus) unsubscribe(topic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lst := b.subs[topic]
	for i, e := range lst {
		if e.id == id {
			b.subs[topic] = append(lst[:i], lst[i+1:]...)
			break
		}
	}
	if len(b.subs[topic]) == 0 {
		delete(b.subs, topic)
	}
}

// Subscribers reports the current subscriber count for a topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Publish delivers payload to every current subscriber of topic,
// recovering from and logging any subscriber panic, and returns the
// number of subscribers successfully invoked.
func (b *Bus) Publish(topic string, payload Event) int {
	b.mu.RLock()
	subs := make([]subEntry, len(b.subs[topic]))
	copy(subs, b.subs[topic])
	b.mu.RUnlock()

	delivered := 0
	for _, e := range subs {
		if deliverOne(topic, payload, e.cb) {
			delivered++
		}
	}
	return delivered
}

func deliverOne(topic string, payload Event, cb Subscriber) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("notify: subscriber panicked", "topic", topic, "recover", r)
			ok = false
		}
	}()
	cb(topic, payload)
	return true
}

func nowTS() float64 { return float64(time.Now().UnixNano()) / 1e9 }

// NotifyPendingTx publishes a pendingTx event.
func NotifyPendingTx(b *Bus, hash string, sender string, nonce uint64, effectiveFee uint64, size uint64) int {
	return b.Publish(TopicPendingTx, Event{
		"hash":         hash,
		"sender":       sender,
		"nonce":        nonce,
		"effectiveFee": effectiveFee,
		"size":         size,
		"ts":           nowTS(),
	})
}

// NotifyDroppedTx publishes a droppedTx event with a reason code, e.g.
// "fee_too_low", "ttl", "evicted", "reorg", "ban".
func NotifyDroppedTx(b *Bus, hash string, reason string) int {
	return b.Publish(TopicDroppedTx, Event{
		"hash":   hash,
		"reason": reason,
		"ts":     nowTS(),
	})
}

// NotifyReplacedTx publishes a replacedTx event for an RBF-style swap.
func NotifyReplacedTx(b *Bus, oldHash, newHash string, reason string) int {
	return b.Publish(TopicReplacedTx, Event{
		"old":    oldHash,
		"new":    newHash,
		"reason": reason,
		"ts":     nowTS(),
	})
}

// NotifyReorgSummary publishes a consolidated reorgSummary event after a
// chain-tip swap has been reconciled against the pool, spec.md §4.4 step 6.
func NotifyReorgSummary(b *Bus, reinjected, droppedConfirmed, skippedDuplicate, skippedReplaced,
	nonceUpdates, sendersTouched int, elapsedMS float64) int {
	return b.Publish(TopicReorgSummary, Event{
		"reinjected":       reinjected,
		"droppedConfirmed": droppedConfirmed,
		"skippedDuplicate": skippedDuplicate,
		"skippedReplaced":  skippedReplaced,
		"nonceUpdates":     nonceUpdates,
		"sendersTouched":   sendersTouched,
		"elapsedMs":        elapsedMS,
		"ts":               nowTS(),
	})
}
