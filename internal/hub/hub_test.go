package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
}

func (f *fakeSubscriber) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection closed")
	}
	f.received = append(f.received, data)
	return nil
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.received)
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	h := New(nil)
	a := &fakeSubscriber{}
	b := &fakeSubscriber{}
	h.Register(a)
	h.Register(b)

	if err := h.Publish(map[string]string{"type": "update"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("expected both subscribers to receive, got %d and %d", a.count(), b.count())
	}

	var decoded map[string]string
	if err := json.Unmarshal(a.received[0], &decoded); err != nil {
		t.Fatalf("payload not valid JSON: %v", err)
	}
	if decoded["type"] != "update" {
		t.Errorf("unexpected payload: %v", decoded)
	}
}

func TestPublishDropsFailedSubscribers(t *testing.T) {
	h := New(nil)
	good := &fakeSubscriber{}
	bad := &fakeSubscriber{fail: true}
	h.Register(good)
	h.Register(bad)

	if err := h.Publish("first"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if h.SubscriberCount() != 1 {
		t.Errorf("expected failed subscriber to be dropped, count=%d", h.SubscriberCount())
	}

	if err := h.Publish("second"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if good.count() != 2 {
		t.Errorf("healthy subscriber should receive both publishes, got %d", good.count())
	}
}

func TestRegisterAndUnregisterAreIdempotent(t *testing.T) {
	h := New(nil)
	s := &fakeSubscriber{}

	h.Register(s)
	h.Register(s)
	if h.SubscriberCount() != 1 {
		t.Errorf("double register should keep one entry, got %d", h.SubscriberCount())
	}

	h.Unregister(s)
	h.Unregister(s)
	if h.SubscriberCount() != 0 {
		t.Errorf("expected empty hub, got %d", h.SubscriberCount())
	}

	// Unregister after a failed-send removal must also be harmless.
	failing := &fakeSubscriber{fail: true}
	h.Register(failing)
	h.Publish("x")
	h.Unregister(failing)
	if h.SubscriberCount() != 0 {
		t.Errorf("expected empty hub, got %d", h.SubscriberCount())
	}
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	h := New(nil)
	if err := h.Publish(make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}
