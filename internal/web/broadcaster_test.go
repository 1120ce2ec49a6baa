package web

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan string) Message {
	t.Helper()
	select {
	case raw := <-ch:
		var m Message
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			t.Fatalf("unmarshal %q: %v", raw, err)
		}
		return m
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return Message{}
}

func TestHub_BroadcastReachesEveryClient(t *testing.T) {
	h := NewHub()
	_, ch1, unsub1 := h.Subscribe()
	defer unsub1()
	_, ch2, unsub2 := h.Subscribe()
	defer unsub2()

	h.Broadcast("new photos", []string{"photos/img_1.jpg"})

	for i, ch := range []<-chan string{ch1, ch2} {
		m := recv(t, ch)
		if m.Event != "new photos" || len(m.Args) != 1 {
			t.Errorf("subscriber %d: got %+v", i, m)
		}
	}
}

func TestHub_SendToOneClient(t *testing.T) {
	h := NewHub()
	id1, ch1, unsub1 := h.Subscribe()
	defer unsub1()
	_, ch2, unsub2 := h.Subscribe()
	defer unsub2()

	if !h.SendTo(id1, "print_success") {
		t.Fatal("SendTo returned false for a connected client")
	}
	if m := recv(t, ch1); m.Event != "print_success" {
		t.Errorf("got %+v", m)
	}
	select {
	case msg := <-ch2:
		t.Errorf("other client received %q", msg)
	default:
	}
}

func TestHub_SendToUnknownClient(t *testing.T) {
	h := NewHub()
	if h.SendTo("nope", "print_success") {
		t.Error("SendTo to an unknown client must return false")
	}
}

func TestHub_ClientIDsAreUnique(t *testing.T) {
	h := NewHub()
	id1, _, unsub1 := h.Subscribe()
	defer unsub1()
	id2, _, unsub2 := h.Subscribe()
	defer unsub2()
	if id1 == id2 || id1 == "" {
		t.Errorf("ids = %q, %q", id1, id2)
	}
	if !h.Connected(id1) || h.ClientCount() != 2 {
		t.Error("both clients should be connected")
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	id, ch, unsub := h.Subscribe()
	unsub()
	unsub() // idempotent

	if _, ok := <-ch; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
	if h.Connected(id) {
		t.Error("client still connected after unsubscribe")
	}
}

func TestHub_FullChannelDropsMessage(t *testing.T) {
	h := NewHub()
	id, _, unsub := h.Subscribe()
	defer unsub()

	for i := 0; i < 64; i++ {
		h.Broadcast("fill")
	}
	// Must not block.
	h.Broadcast("overflow")
	if h.SendTo(id, "overflow") {
		t.Error("SendTo on a full buffer must report failure")
	}
}

type recordingMirror struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingMirror) Publish(event string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func TestHub_MirrorGetsBroadcastsOnly(t *testing.T) {
	h := NewHub()
	m := &recordingMirror{}
	h.AddMirror(m)
	id, _, unsub := h.Subscribe()
	defer unsub()

	h.Broadcast("new photos", []string{"photos/a.jpg"})
	h.SendTo(id, "print_success")

	if len(m.events) != 1 || m.events[0] != "new photos" {
		t.Errorf("mirror events = %v", m.events)
	}
}

func TestHub_UnencodableArgsDropped(t *testing.T) {
	h := NewHub()
	_, ch, unsub := h.Subscribe()
	defer unsub()

	h.Broadcast("bad", make(chan int))
	select {
	case msg := <-ch:
		t.Errorf("received %q", msg)
	default:
	}
}
