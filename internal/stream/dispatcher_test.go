package stream

import (
	"encoding/json"
	"testing"
)

func TestDispatchFansOutToSubscribers(t *testing.T) {
	d := NewDispatcher()

	first := d.Subscribe("auction_update")
	second := d.Subscribe("auction_update")
	other := d.Subscribe("trade_status")

	d.Dispatch("auction_update", json.RawMessage(`{"id": 1}`))

	for _, sub := range []*Subscription{first, second} {
		select {
		case raw := <-sub.C:
			if string(raw) != `{"id": 1}` {
				t.Fatalf("unexpected payload %s", raw)
			}
		default:
			t.Fatal("subscriber did not receive event")
		}
	}

	select {
	case <-other.C:
		t.Fatal("trade_status subscriber received auction_update event")
	default:
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	d := NewDispatcher()

	sub := d.Subscribe("new_item")
	sub.Cancel()
	// Cancel is idempotent.
	sub.Cancel()

	d.Dispatch("new_item", json.RawMessage(`{}`))

	// Channel is closed after cancel; a receive yields the zero value
	// immediately rather than the dispatched event.
	if raw, ok := <-sub.C; ok {
		t.Fatalf("received %s on cancelled subscription", raw)
	}
}

func TestSetCancelsAllOnce(t *testing.T) {
	d := NewDispatcher()

	set := NewSet()
	trade := set.Add(d, "trade_status")
	auction := set.Add(d, "auction_update")

	set.Cancel()
	set.Cancel()

	d.Dispatch("trade_status", json.RawMessage(`{}`))
	d.Dispatch("auction_update", json.RawMessage(`{}`))

	if _, ok := <-trade.C; ok {
		t.Fatal("trade subscription still live after set cancel")
	}
	if _, ok := <-auction.C; ok {
		t.Fatal("auction subscription still live after set cancel")
	}
}

func TestDispatchDropsWhenBufferFull(t *testing.T) {
	d := NewDispatcher()
	sub := d.Subscribe("new_item")

	for i := 0; i < subscriptionBuffer+10; i++ {
		d.Dispatch("new_item", json.RawMessage(`{}`))
	}

	received := 0
	for {
		select {
		case <-sub.C:
			received++
			continue
		default:
		}
		break
	}

	if received != subscriptionBuffer {
		t.Fatalf("received %d events, want %d (overflow should be dropped, not block)", received, subscriptionBuffer)
	}
}

func TestCloseEndsAllSubscriptions(t *testing.T) {
	d := NewDispatcher()
	tradeStatus := d.Subscribe("trade_status")
	auctionUpdates := d.Subscribe("auction_update")

	d.Close()

	if _, ok := <-tradeStatus.C; ok {
		t.Fatal("trade_status subscription still open after close")
	}
	if _, ok := <-auctionUpdates.C; ok {
		t.Fatal("auction_update subscription still open after close")
	}

	// Dispatching and cancelling after close must be safe no-ops.
	d.Dispatch("trade_status", json.RawMessage(`{}`))
	tradeStatus.Cancel()
}
