package notify

import (
	"sync"
	"testing"
	"time"

	"whisperboard/pkg/models"
)

func TestPublishReachesTopicSubscribersOnly(t *testing.T) {
	h := NewHub(4)
	defer h.Close()

	life := h.Subscribe("life")
	work := h.Subscribe("work")

	h.Publish(models.Event{Kind: models.EventNewMessage, Topic: "life"})

	select {
	case ev := <-life.C:
		if ev.Topic != "life" {
			t.Fatalf("wrong topic: %s", ev.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("life subscriber did not receive the event")
	}
	select {
	case ev := <-work.C:
		t.Fatalf("work subscriber should not receive life events, got %+v", ev)
	default:
	}
}

func TestCancelDetachesSubscriber(t *testing.T) {
	h := NewHub(4)
	defer h.Close()

	sub := h.Subscribe("life")
	if h.SubscriberCount("life") != 1 {
		t.Fatal("expected one subscriber")
	}
	sub.Cancel()
	if h.SubscriberCount("life") != 0 {
		t.Fatal("cancel did not detach")
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("channel should be closed after cancel")
	}
	// double cancel is safe
	sub.Cancel()
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	h := NewHub(1)
	defer h.Close()

	slow := h.Subscribe("life")
	// fill the buffer, then overflow it
	h.Publish(models.Event{Kind: models.EventNewMessage, Topic: "life"})
	h.Publish(models.Event{Kind: models.EventNewMessage, Topic: "life"})

	if h.SubscriberCount("life") != 0 {
		t.Fatal("slow subscriber should have been dropped")
	}
	// the buffered event is still readable, then the channel closes
	if _, ok := <-slow.C; !ok {
		t.Fatal("expected one buffered event before close")
	}
	if _, ok := <-slow.C; ok {
		t.Fatal("channel should be closed after drop")
	}
}

func TestSendAfterCancelReportsClosed(t *testing.T) {
	h := NewHub(1)
	defer h.Close()

	sub := h.Subscribe("life")
	sub.Cancel()
	// a publisher holding a stale snapshot must see the closed state, not
	// a closed channel
	if got := sub.trySend(models.Event{Kind: models.EventNewMessage, Topic: "life"}); got != sendClosed {
		t.Fatalf("expected sendClosed after cancel, got %d", got)
	}
}

func TestCancelDuringConcurrentPublishes(t *testing.T) {
	h := NewHub(1)
	defer h.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					h.Publish(models.Event{Kind: models.EventNewMessage, Topic: "life"})
				}
			}
		}()
	}
	// churn subscribers while publishers run; a cancel landing between a
	// publisher's snapshot and its send must not panic the process
	for i := 0; i < 300; i++ {
		sub := h.Subscribe("life")
		sub.Cancel()
	}
	close(stop)
	wg.Wait()
}

func TestCloseRejectsFurtherPublishes(t *testing.T) {
	h := NewHub(4)
	sub := h.Subscribe("life")
	h.Close()
	if _, ok := <-sub.C; ok {
		t.Fatal("subscriber channel should close with the hub")
	}
	// must not panic
	h.Publish(models.Event{Kind: models.EventNewMessage, Topic: "life"})
	h.Close()
}
