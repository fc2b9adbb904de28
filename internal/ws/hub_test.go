package ws

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errSendFailed = errors.New("send failed")

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	sendErr  error
	closed   bool
}

func (r *recordingSubscriber) Send(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingSubscriber) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestBroadcastReachesTopicSubscribers(t *testing.T) {
	hub := NewHub()
	a := &recordingSubscriber{}
	b := &recordingSubscriber{}
	hub.Register("user:1", a)
	hub.Register("user:2", b)

	hub.Broadcast("user:1", []byte("hello"))
	waitFor(t, func() bool { return a.count() == 1 })
	if b.count() != 0 {
		t.Fatalf("subscriber on another topic received %d payloads", b.count())
	}
}

func TestFailingSubscriberIsEvicted(t *testing.T) {
	hub := NewHub()
	broken := &recordingSubscriber{sendErr: errSendFailed}
	hub.Register("user:1", broken)

	hub.Broadcast("user:1", []byte("x"))
	waitFor(t, func() bool {
		broken.mu.Lock()
		defer broken.mu.Unlock()
		return broken.closed
	})
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := &recordingSubscriber{}
	hub.Register("user:1", sub)
	hub.Unregister("user:1", sub)

	hub.Broadcast("user:1", []byte("late"))
	time.Sleep(50 * time.Millisecond)
	if sub.count() != 0 {
		t.Fatalf("unregistered subscriber received %d payloads", sub.count())
	}
}
