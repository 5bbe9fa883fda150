package events

import (
	"testing"
)

func TestEventHub_PublishSubscribe(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()

	h.Publish(StatusChanged, StatusChangedEvent{From: "OK", To: "PESSIMO", Ts: 1})

	ev := <-ch
	if ev.Name != StatusChanged {
		t.Fatalf("Name = %q, want %q", ev.Name, StatusChanged)
	}
	payload, err := DecodeAs[StatusChangedEvent](ev)
	if err != nil {
		t.Fatalf("DecodeAs() error = %v", err)
	}
	if payload.From != "OK" || payload.To != "PESSIMO" {
		t.Errorf("payload = %+v", payload)
	}

	h.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Errorf("channel still open after Unsubscribe")
	}
	// A second unsubscribe must not panic on a closed channel.
	h.Unsubscribe(ch)
}

func TestEventHub_SlowSubscriberDrops(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	for i := 0; i < 100; i++ {
		h.Publish(CommandReceived, CommandReceivedEvent{Topic: "ergosense/cmd"})
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("buffered = %d, want %d", got, cap(ch))
	}
}

func TestEventHub_NilPublish(t *testing.T) {
	var h *EventHub
	h.Publish(CycleCompleted, nil)
}

func TestDecodeAs_Empty(t *testing.T) {
	v, err := DecodeAs[CommandReceivedEvent](Event{Name: CommandReceived})
	if err != nil || v.Topic != "" {
		t.Errorf("DecodeAs(empty) = %+v, %v", v, err)
	}
}

func TestEventHub_Close(t *testing.T) {
	h := NewEventHub()
	ch := h.Subscribe()
	if got := len(h.subs); got != 1 {
		t.Fatalf("watchers = %d, want 1", got)
	}

	h.Close()
	if _, ok := <-ch; ok {
		t.Errorf("channel still open after Close")
	}
	if got := len(h.subs); got != 0 {
		t.Errorf("watchers after Close = %d, want 0", got)
	}

	late := h.Subscribe()
	if _, ok := <-late; ok {
		t.Errorf("subscription on a closed hub is open")
	}
	// Unsubscribing a channel closed by Close must not panic.
	h.Unsubscribe(ch)
	h.Publish(CycleCompleted, CycleCompletedEvent{Seq: 1})
}
