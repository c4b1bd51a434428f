package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()
	var got []Event
	bus.Subscribe(TopicPendingTx, func(topic string, payload Event) {
		got = append(got, payload)
	})

	n := NotifyPendingTx(bus, "0xabc", "0xsender", 1, 100, 64)
	require.Equal(t, 1, n)
	require.Len(t, got, 1)
	require.Equal(t, "0xabc", got[0]["hash"])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	count := 0
	sub := bus.Subscribe(TopicDroppedTx, func(topic string, payload Event) { count++ })
	NotifyDroppedTx(bus, "0x1", "ttl")
	sub.Unsubscribe()
	NotifyDroppedTx(bus, "0x2", "ttl")
	require.Equal(t, 1, count)
}

func TestPublishSurvivesSubscriberPanic(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(TopicReplacedTx, func(topic string, payload Event) { panic("boom") })
	delivered := NotifyReplacedTx(bus, "0xold", "0xnew", "rbf")
	require.Equal(t, 0, delivered)
}

func TestNotifyReorgSummaryReachesSubscriber(t *testing.T) {
	bus := NewBus()
	var got Event
	bus.Subscribe(TopicReorgSummary, func(topic string, payload Event) { got = payload })

	n := NotifyReorgSummary(bus, 3, 2, 1, 0, 4, 2, 5.5)
	require.Equal(t, 1, n)
	require.Equal(t, 3, got["reinjected"])
	require.Equal(t, 2, got["droppedConfirmed"])
}

func TestWSBridgeAttachesToAllFourTopics(t *testing.T) {
	bus := NewBus()
	var sent []string
	bridge := NewWSBridge(func(topic string, payload Event) error {
		sent = append(sent, topic)
		return nil
	}, 0)
	bridge.Attach(bus)

	require.Equal(t, 1, bus.Subscribers(TopicPendingTx))
	require.Equal(t, 1, bus.Subscribers(TopicDroppedTx))
	require.Equal(t, 1, bus.Subscribers(TopicReplacedTx))
	require.Equal(t, 1, bus.Subscribers(TopicReorgSummary))

	NotifyReorgSummary(bus, 1, 0, 0, 0, 0, 0, 0)
	require.Equal(t, []string{TopicReorgSummary}, sent)
}

func TestWSBridgeDedupesWithinTTL(t *testing.T) {
	bus := NewBus()
	var sent []string
	bridge := NewWSBridge(func(topic string, payload Event) error {
		sent = append(sent, topic)
		return nil
	}, 50*time.Millisecond)
	bridge.Attach(bus)

	NotifyPendingTx(bus, "0xabc", "", 0, 0, 0)
	NotifyPendingTx(bus, "0xabc", "", 0, 0, 0)
	require.Len(t, sent, 1)

	time.Sleep(60 * time.Millisecond)
	NotifyPendingTx(bus, "0xabc", "", 0, 0, 0)
	require.Len(t, sent, 2)
}

func TestWSBridgeDetachStopsForwarding(t *testing.T) {
	bus := NewBus()
	count := 0
	bridge := NewWSBridge(func(topic string, payload Event) error {
		count++
		return nil
	}, 0)
	bridge.Attach(bus)
	bridge.Detach()
	NotifyPendingTx(bus, "0xabc", "", 0, 0, 0)
	require.Equal(t, 0, count)
}
