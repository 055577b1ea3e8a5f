package driftwatch

import (
	"errors"
	"testing"
)

func classified(i int, v float64) ClassifiedSample {
	return ClassifiedSample{Sample: Sample{Timestamp: int64(i), Value: v}}
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(10, true)

	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}
	if sub.ID == "" {
		t.Error("expected subscription ID")
	}
	if hub.Count() != 1 {
		t.Errorf("expected 1 subscription, got %d", hub.Count())
	}

	hub.Unsubscribe(sub.ID)
	if hub.Count() != 0 {
		t.Errorf("expected 0 subscriptions, got %d", hub.Count())
	}

	// The channel is closed after unsubscribe.
	if _, ok := <-sub.C(); ok {
		t.Error("expected closed channel after unsubscribe")
	}
}

func TestHub_SingleConsumerLimit(t *testing.T) {
	hub := NewHub(10, false)

	first, err := hub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := hub.Subscribe(); !errors.Is(err, ErrSubscriberLimit) {
		t.Errorf("expected ErrSubscriberLimit, got %v", err)
	}

	// Detaching frees the slot.
	first.Close()
	if _, err := hub.Subscribe(); err != nil {
		t.Errorf("expected subscribe after close to succeed, got %v", err)
	}
}

func TestHub_DropOldestBackpressure(t *testing.T) {
	hub := NewHub(2, false)
	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}

	// Publish 5 without draining; only the 2 most recent remain.
	for i := 1; i <= 5; i++ {
		hub.Publish(classified(i, float64(i)))
	}

	got := []int64{}
	for {
		select {
		case cs := <-sub.C():
			got = append(got, cs.Sample.Timestamp)
		default:
			goto done
		}
	}
done:
	if len(got) != 2 || got[0] != 4 || got[1] != 5 {
		t.Errorf("expected [4 5], got %v", got)
	}
	if sub.Dropped() != 3 {
		t.Errorf("dropped = %d, want 3", sub.Dropped())
	}
}

func TestHub_OrderedDelivery(t *testing.T) {
	hub := NewHub(100, false)
	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		hub.Publish(classified(i, float64(i)))
	}

	prev := int64(-1)
	for i := 0; i < 50; i++ {
		cs := <-sub.C()
		if cs.Sample.Timestamp <= prev {
			t.Fatalf("out of order delivery: %d after %d", cs.Sample.Timestamp, prev)
		}
		prev = cs.Sample.Timestamp
	}
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(10, true)

	subs := make([]*Subscription, 3)
	for i := range subs {
		var err error
		subs[i], err = hub.Subscribe()
		if err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 5; i++ {
		hub.Publish(classified(i, float64(i)))
	}

	// Every subscriber receives every item.
	for n, sub := range subs {
		count := 0
		for {
			select {
			case <-sub.C():
				count++
			default:
				goto next
			}
		}
	next:
		if count != 5 {
			t.Errorf("subscriber %d received %d items, want 5", n, count)
		}
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(1, true)
	if _, err := hub.Subscribe(); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			hub.Publish(classified(i, 0))
		}
		close(done)
	}()

	// No consumer drains; the producer must still finish.
	<-done
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(10, true)
	sub, err := hub.Subscribe()
	if err != nil {
		t.Fatal(err)
	}

	hub.Close()

	if _, ok := <-sub.C(); ok {
		t.Error("expected closed subscription channel")
	}
	if _, err := hub.Subscribe(); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	// Publish after close is a no-op, not a panic.
	hub.Publish(classified(0, 0))
}
