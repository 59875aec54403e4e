package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestMemoryHandler_BasicOperations(t *testing.T) {
	handler := NewMemoryHandler()
	ctx := context.Background()

	sessionID := "test-session-id"
	testData := []byte("test session data")

	if err := handler.Write(ctx, sessionID, testData); err != nil {
		t.Fatalf("Failed to write session data: %v", err)
	}

	readData, err := handler.Read(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to read session data: %v", err)
	}
	if string(readData) != string(testData) {
		t.Errorf("Expected %s, got %s", string(testData), string(readData))
	}

	// Mutating the returned slice must not affect the stored copy
	readData[0] = 'X'
	again, _ := handler.Read(ctx, sessionID)
	if string(again) != string(testData) {
		t.Error("Stored data was modified through a returned slice")
	}

	exists, err := handler.Exists(ctx, sessionID)
	if err != nil || !exists {
		t.Errorf("Session should exist (err=%v)", err)
	}

	missing, err := handler.Read(ctx, "non-existent")
	if err != nil || len(missing) != 0 {
		t.Errorf("Expected empty data for unknown session, got %q (err=%v)", missing, err)
	}

	if err := handler.Destroy(ctx, sessionID); err != nil {
		t.Fatalf("Failed to destroy session: %v", err)
	}
	if exists, _ := handler.Exists(ctx, sessionID); exists {
		t.Error("Session should not exist after Destroy")
	}
}

func TestMemoryHandler_GC(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	handler := NewMemoryHandler().WithClock(func() time.Time { return now })

	_ = handler.Write(ctx, "old", []byte("a"))
	now = now.Add(90 * time.Minute)
	_ = handler.Write(ctx, "fresh", []byte("b"))
	now = now.Add(40 * time.Minute)

	removed, err := handler.GC(ctx, time.Hour)
	if err != nil {
		t.Fatalf("GC failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 session removed, got %d", removed)
	}

	count, _ := handler.Count(ctx)
	if count != 1 {
		t.Errorf("Expected 1 session left, got %d", count)
	}
	if exists, _ := handler.Exists(ctx, "fresh"); !exists {
		t.Error("Fresh session should survive GC")
	}
}

func TestMemoryHandler_CancelledContext(t *testing.T) {
	handler := NewMemoryHandler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := handler.Write(ctx, "id", []byte("x")); err == nil {
		t.Error("Expected error for cancelled context")
	}
	if _, err := handler.Read(ctx, "id"); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestMemoryHandler_Concurrency(t *testing.T) {
	handler := NewMemoryHandler()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i%10)
			_ = handler.Write(ctx, id, []byte(id))
			_, _ = handler.Read(ctx, id)
		}(i)
	}
	wg.Wait()

	count, _ := handler.Count(ctx)
	if count != 10 {
		t.Errorf("Expected 10 sessions, got %d", count)
	}
}
