package apiv2

import (
	"testing"
	"time"
)

func TestEventBrokerPublishDeliversToSubscriber(t *testing.T) {
	b := NewEventBroker()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	want := []ChangeEvent{{Type: "update", ID: "abc", Data: []resource{{"id": "abc", "type": "light"}}}}
	b.Publish(want)

	select {
	case got := <-ch:
		if len(got) != 1 || got[0].ID != "abc" {
			t.Fatalf("unexpected event batch: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestEventBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := NewEventBroker()
	ch, unsubscribe := b.Subscribe()
	unsubscribe()

	b.Publish([]ChangeEvent{{Type: "update", ID: "xyz"}})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestEventBrokerDropsWhenSubscriberQueueFull(t *testing.T) {
	b := NewEventBroker()
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberQueueSize+5; i++ {
		b.Publish([]ChangeEvent{{Type: "update", ID: "flood"}})
	}

	if len(ch) != subscriberQueueSize {
		t.Fatalf("expected queue saturated at %d, got %d", subscriberQueueSize, len(ch))
	}
}
