package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestEventEmission(t *testing.T) {
	var c collector
	logger := New(10, WithHandler(c.handle))

	logger.Log(Event{
		Action: ActionLogin,
		Result: ResultSuccess,
		UserID: "user123",
		Email:  "sec@x.com",
	})

	// Close flushes the queue.
	logger.Close()

	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].UserID != "user123" {
		t.Errorf("expected user123, got %s", events[0].UserID)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if events[0].ID == "" {
		t.Error("id should be set")
	}
}

func TestMultipleHandlers(t *testing.T) {
	var c1, c2 collector
	logger := New(10, WithHandler(c1.handle), WithHandler(c2.handle))

	logger.Log(Event{Action: ActionLogout, Result: ResultSuccess})
	logger.Close()

	if n := len(c1.snapshot()); n != 1 {
		t.Fatalf("handler1: expected 1 event, got %d", n)
	}
	if n := len(c2.snapshot()); n != 1 {
		t.Fatalf("handler2: expected 1 event, got %d", n)
	}
}

func TestContextStorage(t *testing.T) {
	logger := New(10)
	defer logger.Close()

	ctx := WithContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("logger not found in context")
	}
	if FromContext(context.Background()) != nil {
		t.Error("empty context should yield nil logger")
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	var logger *Logger
	logger.Log(Event{Action: ActionLogin})
}

func TestEventTimestamp(t *testing.T) {
	var c collector
	logger := New(10, WithHandler(c.handle))

	now := time.Now()
	logger.Log(Event{Action: ActionRestore, Result: ResultSuccess})
	logger.Close()

	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Timestamp.Before(now) || events[0].Timestamp.After(now.Add(1*time.Second)) {
		t.Error("timestamp not properly set")
	}
}

func TestQueueBuffer(t *testing.T) {
	var mu sync.Mutex
	var count int

	logger := New(5, WithHandler(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
		time.Sleep(10 * time.Millisecond) // Simulate slow handler
	}))

	for i := 0; i < 5; i++ {
		logger.Log(Event{Action: ActionLogin, Result: ResultSuccess})
	}
	logger.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 5 {
		t.Errorf("expected 5 events processed, got %d", count)
	}
}

func TestErrorEvent(t *testing.T) {
	var c collector
	logger := New(10, WithHandler(c.handle))

	logger.Log(Event{
		Action: ActionLogin,
		Result: ResultFailure,
		Error:  "Invalid email or password",
		Email:  "a@x.com",
	})
	logger.Close()

	events := c.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Error != "Invalid email or password" {
		t.Errorf("expected 'Invalid email or password', got %s", events[0].Error)
	}
	if events[0].Result != ResultFailure {
		t.Errorf("expected 'failure', got %s", events[0].Result)
	}
}

func TestWriterHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := New(10, WithWriterHandler(&buf))

	logger.Log(Event{Action: ActionLogout, Result: ResultSuccess, UserID: "7"})
	logger.Close()

	var got Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if got.Action != ActionLogout || got.UserID != "7" {
		t.Errorf("event = %+v", got)
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, nil))
	logger := New(10, WithSlogHandler(l))

	logger.Log(Event{Action: ActionLogin, Result: ResultFailure, Email: "a@x.com"})
	logger.Close()

	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Errorf("failure should log at WARN: %s", out)
	}
	if !strings.Contains(out, `"action":"login"`) {
		t.Errorf("missing action: %s", out)
	}
}

func TestCloseTwice(t *testing.T) {
	logger := New(1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
}
