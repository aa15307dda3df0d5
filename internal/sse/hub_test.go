package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/waypointcpa/taskpool-backend/internal/logger"
	"github.com/waypointcpa/taskpool-backend/internal/realtime"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewHub(log)
}

func TestHubBroadcast_ReachesEveryClient(t *testing.T) {
	hub := testHub(t)
	a := hub.NewClient(uuid.New())
	b := hub.NewClient(uuid.New())
	defer hub.CloseClient(a)
	defer hub.CloseClient(b)

	event := realtime.TaskEvent{
		Type:       realtime.EventTaskCreated,
		TaskID:     uuid.New(),
		Title:      "Send W-2 to Maria Santos",
		OccurredAt: time.Now().UTC(),
	}
	hub.Broadcast(event)

	for _, c := range []*Client{a, b} {
		select {
		case got := <-c.Outbound:
			if got.TaskID != event.TaskID {
				t.Fatalf("expected task %s, got %s", event.TaskID, got.TaskID)
			}
		default:
			t.Fatalf("client %s received nothing", c.ID)
		}
	}
}

func TestHubBroadcast_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient(uuid.New())
	defer hub.CloseClient(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < cap(client.Outbound)+5; i++ {
			hub.Broadcast(realtime.TaskEvent{Type: realtime.EventTaskCreated, TaskID: uuid.New()})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broadcast blocked on a slow client")
	}
	if len(client.Outbound) != cap(client.Outbound) {
		t.Fatalf("expected a full buffer, got %d of %d", len(client.Outbound), cap(client.Outbound))
	}
}

func TestHubCloseClient_SecondCloseIsNoOp(t *testing.T) {
	hub := testHub(t)
	client := hub.NewClient(uuid.New())

	hub.CloseClient(client)
	hub.CloseClient(client)

	// Closed clients never receive new events.
	hub.Broadcast(realtime.TaskEvent{Type: realtime.EventTaskClaimed, TaskID: uuid.New()})
	select {
	case _, ok := <-client.Outbound:
		if ok {
			t.Fatalf("expected no delivery after close")
		}
	default:
	}
}
