package events

import (
	"sync"
	"testing"
	"time"
)

func TestHub_DeliversToAllSubscribers(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(8)
	b := h.Subscribe(8)

	h.Emit(Event{Kind: KindStart, TaskName: "deploy"})

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.C:
			if ev.Kind != KindStart || ev.TaskName != "deploy" {
				t.Errorf("got %+v", ev)
			}
			if ev.At.IsZero() {
				t.Error("emit should stamp At")
			}
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHub_FullSubscriberDropsWithoutBlocking(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe(1)
	fast := h.Subscribe(8)

	// Fill the slow subscriber's buffer, then emit more.
	h.Emit(Event{Kind: KindOutput, Data: "1"})
	h.Emit(Event{Kind: KindOutput, Data: "2"})
	h.Emit(Event{Kind: KindOutput, Data: "3"})

	if got := len(slow.C); got != 1 {
		t.Errorf("slow subscriber buffered %d events, want 1", got)
	}
	if got := len(fast.C); got != 3 {
		t.Errorf("fast subscriber buffered %d events, want 3", got)
	}
}

func TestHub_CancelClosesChannelAndDetaches(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe(1)

	sub.Cancel()
	sub.Cancel() // idempotent

	if _, open := <-sub.C; open {
		t.Error("channel should be closed after cancel")
	}

	// Emitting after cancel must not panic or deliver.
	h.Emit(Event{Kind: KindComplete})
}

func TestHub_ConcurrentEmitAndSubscribe(t *testing.T) {
	h := NewHub()

	var wg sync.WaitGroup
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h.Emit(Event{Kind: KindOutput})
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				sub := h.Subscribe(4)
				sub.Cancel()
			}
		}()
	}
	wg.Wait()
}
