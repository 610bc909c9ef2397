package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gestly/gestly/internal/app/domain/integration"
	"github.com/gestly/gestly/pkg/logger"
)

func TestSubscribeScopedByBusiness(t *testing.T) {
	hub := NewHub(8, nil)
	defer hub.Close()

	ch, cancel := hub.Subscribe("b1", 4)
	defer cancel()

	hub.Publish(context.Background(), "b2", AppointmentCreated, nil)
	hub.Publish(context.Background(), "b1", AppointmentConfirmed, map[string]string{"id": "a1"})

	select {
	case evt := <-ch:
		if evt.Type != AppointmentConfirmed || evt.BusinessID != "b1" {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
	select {
	case evt := <-ch:
		t.Fatalf("unexpected extra event %+v", evt)
	default:
	}
}

func TestSinksReceiveEvents(t *testing.T) {
	hub := NewHub(8, nil)
	var mu sync.Mutex
	var got []string
	hub.AddSink(SinkFunc(func(_ context.Context, evt integration.Event) {
		mu.Lock()
		got = append(got, evt.Type)
		mu.Unlock()
	}))

	hub.Publish(context.Background(), "b1", Ping, nil)
	hub.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != Ping {
		t.Fatalf("sink did not receive ping: %v", got)
	}
}

func TestRecentRingBuffer(t *testing.T) {
	hub := NewHub(3, nil)
	defer hub.Close()
	ctx := context.Background()
	for _, typ := range []string{"a", "b", "c", "d"} {
		hub.Publish(ctx, "b1", typ, nil)
	}
	hub.Publish(ctx, "b2", "x", nil)

	recent := hub.Recent("b1", 0)
	if len(recent) != 2 || recent[0].Type != "c" || recent[1].Type != "d" {
		t.Fatalf("unexpected recent events %+v", recent)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(4, nil)
	ch, cancel := hub.Subscribe("b1", 1)
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel")
	}
	hub.Close()
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	hub := NewHub(8, logger.NewDiscard())
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish(ctx, "b1", AppointmentCreated, nil)
				}
			}
		}()
	}

	for i := 0; i < 2000; i++ {
		_, cancel := hub.Subscribe("b1", 1)
		cancel()
	}
	close(stop)
	wg.Wait()
	hub.Close()
}

func TestPublishDuringClose(t *testing.T) {
	for i := 0; i < 50; i++ {
		hub := NewHub(8, logger.NewDiscard())
		for j := 0; j < 4; j++ {
			hub.Subscribe("b1", 1)
		}
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hub.Publish(context.Background(), "b1", Ping, nil)
			}
		}()
		hub.Close()
		wg.Wait()
	}
}
