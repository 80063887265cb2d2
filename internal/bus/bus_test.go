package bus

import (
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan Event, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatalf("subscription channel closed")
		}
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
	}
	return Event{}
}

func mustNoEvent(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRecipientFilterRouting(t *testing.T) {
	b := New(8)

	// Three subscriptions, two distinct recipients.
	subA := b.Subscribe(TopicMessage, ByRecipient(1))
	subB := b.Subscribe(TopicMessage, ByRecipient(2))
	subB2 := b.Subscribe(TopicMessage, ByRecipient(2))

	b.Publish(Event{Topic: TopicMessage, Recipient: 2, Payload: "hi"})

	for _, sub := range []*Subscription{subB, subB2} {
		ev := mustEvent(t, sub.Events(), time.Second)
		if ev.Recipient != 2 || ev.Payload != "hi" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
	mustNoEvent(t, subA.Events())
}

func TestPresenceReachesEverySubscription(t *testing.T) {
	b := New(8)

	subs := []*Subscription{
		b.Subscribe(TopicPresence, Unfiltered()),
		b.Subscribe(TopicPresence, Unfiltered()),
		b.Subscribe(TopicPresence, Unfiltered()),
	}

	b.Publish(Event{Topic: TopicPresence, Payload: "online"})

	for i, sub := range subs {
		ev := mustEvent(t, sub.Events(), time.Second)
		if ev.Payload != "online" {
			t.Fatalf("sub %d: unexpected event %+v", i, ev)
		}
	}
}

func TestPublishPreservesPerSubscriberOrder(t *testing.T) {
	b := New(64)
	sub := b.Subscribe(TopicMessage, ByRecipient(1))

	for i := 0; i < 50; i++ {
		b.Publish(Event{Topic: TopicMessage, Recipient: 1, Payload: i})
	}

	for i := 0; i < 50; i++ {
		ev := mustEvent(t, sub.Events(), time.Second)
		if ev.Payload != i {
			t.Fatalf("event %d out of order: got %v", i, ev.Payload)
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(8)
	sub := b.Subscribe(TopicMessage, ByRecipient(1))

	sub.Close()
	b.Publish(Event{Topic: TopicMessage, Recipient: 1, Payload: "late"})

	if _, ok := <-sub.Events(); ok {
		t.Fatalf("received event on closed subscription")
	}
	if sub.Dropped() != 0 {
		t.Fatalf("closed subscription counted drops: %d", sub.Dropped())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New(8)
	sub := b.Subscribe(TopicPresence, Unfiltered())

	sub.Close()
	sub.Close()
	b.Unsubscribe(sub)
}

func TestOverflowDropsOldest(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicMessage, ByRecipient(1))

	for i := 0; i < 10; i++ {
		b.Publish(Event{Topic: TopicMessage, Recipient: 1, Payload: i})
	}

	if got := sub.Dropped(); got != 6 {
		t.Fatalf("expected 6 dropped events, got %d", got)
	}

	// The buffer should hold the newest four events, in order.
	for want := 6; want < 10; want++ {
		ev := mustEvent(t, sub.Events(), time.Second)
		if ev.Payload != want {
			t.Fatalf("expected payload %d, got %v", want, ev.Payload)
		}
	}
}

func TestOverflowIsPerSubscriber(t *testing.T) {
	b := New(2)
	slow := b.Subscribe(TopicPresence, Unfiltered())

	fast := b.Subscribe(TopicPresence, Unfiltered())
	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range fast.Events() {
			received++
		}
	}()

	for i := 0; i < 20; i++ {
		b.Publish(Event{Topic: TopicPresence, Payload: i})
		time.Sleep(time.Millisecond)
	}
	fast.Close()
	<-done

	if received != 20 {
		t.Fatalf("fast subscriber missed events: got %d", received)
	}
	if slow.Dropped() == 0 {
		t.Fatalf("slow subscriber should have overflowed")
	}
}

func TestConcurrentSubscribePublishUnsubscribe(t *testing.T) {
	b := New(8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub := b.Subscribe(TopicMessage, ByRecipient(int64(n)))
				b.Publish(Event{Topic: TopicMessage, Recipient: int64(n), Payload: j})
				sub.Close()
			}
		}(i)
	}
	wg.Wait()
}
