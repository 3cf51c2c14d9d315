package events

import (
	"encoding/json"
	"testing"
)

func TestPublishFanout(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish("one")

	if got := <-a; got != "one" {
		t.Errorf("subscriber a got %q", got)
	}
	if got := <-b; got != "one" {
		t.Errorf("subscriber b got %q", got)
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe()
	fast := h.Subscribe()
	defer h.Unsubscribe(slow)
	defer h.Unsubscribe(fast)

	// fill slow's buffer, then overflow; fast drains as it goes
	for i := 0; i < 40; i++ {
		h.Publish("evt")
		select {
		case <-fast:
		default:
			t.Fatal("fast subscriber missed an event")
		}
	}
	if n := len(slow); n != cap(slow) {
		t.Errorf("slow buffer = %d, want full at %d", n, cap(slow))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)
	// closed channel: publish must not panic, receive yields zero value
	h.Publish("after")
	if _, ok := <-ch; ok {
		t.Error("receive on unsubscribed channel should report closed")
	}
}

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent(TypeUnitSettled, "run-1", map[string]string{"property_id": "p1"})
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.Type != TypeUnitSettled || e.RunID != "run-1" {
		t.Errorf("event = %+v", e)
	}
	if e.At.IsZero() {
		t.Error("event missing timestamp")
	}
	var data map[string]string
	if err := json.Unmarshal(e.Data, &data); err != nil || data["property_id"] != "p1" {
		t.Errorf("data = %s, err %v", e.Data, err)
	}
}
