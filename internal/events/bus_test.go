package events

import (
	"fmt"
	"testing"
	"time"
)

// TestPublishSubscribe verifies basic publish/subscribe functionality.
func TestPublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 10)

	bus.Publish(TaskStartedEvent{
		Run:       "run-1",
		ID:        "weather",
		Name:      "Fetch weather",
		Agent:     "weather",
		Timestamp: time.Now(),
	})

	select {
	case received := <-ch:
		if received.RunID() != "run-1" {
			t.Errorf("expected run ID 'run-1', got '%s'", received.RunID())
		}
		if received.EventType() != EventTypeTaskStarted {
			t.Errorf("expected event type '%s', got '%s'", EventTypeTaskStarted, received.EventType())
		}
		started, ok := received.(TaskStartedEvent)
		if !ok || started.ID != "weather" {
			t.Errorf("unexpected event payload: %#v", received)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

// TestMultipleSubscribers verifies multiple subscribers receive the same event.
func TestMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch1 := bus.Subscribe(TopicTask, 10)
	ch2 := bus.Subscribe(TopicTask, 10)

	bus.Publish(TaskSucceededEvent{
		Run:       "run-2",
		ID:        "email",
		Output:    "sent",
		Duration:  100 * time.Millisecond,
		Timestamp: time.Now(),
	})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			if received.EventType() != EventTypeTaskSucceeded {
				t.Errorf("subscriber %d: got %s", i+1, received.EventType())
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("subscriber %d: timeout waiting for event", i+1)
		}
	}
}

// TestNonBlockingSend verifies that publishing doesn't block when channels are full.
func TestNonBlockingSend(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	ch := bus.Subscribe(TopicTask, 1)

	done := make(chan bool)
	go func() {
		for i := range 10 {
			bus.Publish(TaskStartedEvent{Run: "run", ID: fmt.Sprintf("task-%d", i)})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if len(ch) != 1 {
		t.Errorf("expected 1 buffered event, got %d", len(ch))
	}
	if got := bus.Dropped(); got != 9 {
		t.Errorf("Dropped() = %d, want 9", got)
	}
}

// TestTopicRouting verifies events only reach their own topic.
func TestTopicRouting(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	runCh := bus.Subscribe(TopicRun, 10)
	taskCh := bus.Subscribe(TopicTask, 10)

	bus.Publish(WaveStartedEvent{Run: "r", Index: 0, TaskIDs: []string{"a", "b"}})
	bus.Publish(TaskFailedEvent{Run: "r", ID: "a", Err: "boom"})
	bus.Publish(RunCompletedEvent{Run: "r", Success: false})

	if len(runCh) != 2 {
		t.Errorf("run topic got %d events, want 2", len(runCh))
	}
	if len(taskCh) != 1 {
		t.Errorf("task topic got %d events, want 1", len(taskCh))
	}
}

// TestSubscribeAll verifies cross-topic consumption.
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	defer bus.Close()

	all := bus.SubscribeAll(0)

	bus.Publish(RunStartedEvent{Run: "r", Tasks: 3, Waves: 2})
	bus.Publish(TaskStartedEvent{Run: "r", ID: "a"})
	bus.Publish(RunProgressEvent{Run: "r", Total: 3, Running: 1, Pending: 2})

	want := []string{EventTypeRunStarted, EventTypeTaskStarted, EventTypeRunProgress}
	for i, w := range want {
		select {
		case ev := <-all:
			if ev.EventType() != w {
				t.Errorf("event %d: got %s, want %s", i, ev.EventType(), w)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for event %d", i)
		}
	}
}

// TestCloseSignalsSubscribers verifies Close closes channels and is idempotent.
func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe(TopicRun, 1)
	all := bus.SubscribeAll(1)

	bus.Close()
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected topic channel to be closed")
	}
	if _, ok := <-all; ok {
		t.Error("expected all-topics channel to be closed")
	}
}

// TestPublishAfterClose verifies publishing to a closed or nil bus is harmless.
func TestPublishAfterClose(t *testing.T) {
	bus := NewEventBus()
	bus.Close()

	bus.Publish(TaskStartedEvent{Run: "r", ID: "a"})

	late := bus.Subscribe(TopicTask, 1)
	if _, ok := <-late; ok {
		t.Error("expected subscription on closed bus to be closed")
	}

	var nilBus *EventBus
	nilBus.Publish(TaskStartedEvent{Run: "r", ID: "a"})
}
