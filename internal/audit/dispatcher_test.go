package audit

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	block  chan struct{}
}

func (s *recordingSink) Emit(_ context.Context, event Event) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{BufferSize: 8}, sink)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		d.Emit(ctx, Event{EventType: "code_request", Identity: "alice"})
	}

	d.Close()

	if got := sink.count(); got != 5 {
		t.Fatalf("expected 5 delivered events, got %d", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", d.Dropped())
	}
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{BufferSize: 16}, sink)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d.Emit(ctx, Event{EventType: "code_verify"})
	}

	close(sink.block)
	d.Close()

	if got := sink.count(); got != 10 {
		t.Fatalf("expected all buffered events drained, got %d", got)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{BufferSize: 2, DropIfFull: true}, sink)

	ctx := context.Background()
	// The relay goroutine may hold one event in flight; overfill well past
	// the buffer to force drops.
	for i := 0; i < 10; i++ {
		d.Emit(ctx, Event{EventType: "code_request"})
	}

	if d.Dropped() == 0 {
		t.Fatal("expected dropped events with full buffer")
	}

	close(sink.block)
	d.Close()
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(DispatcherConfig{BufferSize: 2}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "code_request"})

	time.Sleep(10 * time.Millisecond)
	if got := sink.count(); got != 0 {
		t.Fatalf("expected no delivery after close, got %d", got)
	}
}

func TestDispatcherCloseTwice(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, NoOpSink{})
	d.Close()
	d.Close()
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)
	sink.Emit(context.Background(), Event{EventType: "code_request", Identity: "alice"})

	select {
	case event := <-sink.Events():
		if event.Identity != "alice" {
			t.Fatalf("unexpected event: %+v", event)
		}
	default:
		t.Fatal("expected buffered event")
	}
}
