package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSessionBasicOperations(t *testing.T) {
	session := NewSession("test-id", NewMemoryHandler())

	session.Put("key1", "value1")
	session.Put("key2", 42)

	if value := session.Get("key1"); value != "value1" {
		t.Errorf("Expected 'value1', got %v", value)
	}
	if value := session.Get("key2"); value != 42 {
		t.Errorf("Expected 42, got %v", value)
	}
	if !session.Has("key1") {
		t.Error("Expected session to have key1")
	}
	if session.Has("nonexistent") {
		t.Error("Expected session not to have nonexistent key")
	}

	session.Remove("key1")
	if session.Has("key1") {
		t.Error("Expected key1 to be removed")
	}

	session.Token()
	all := session.All()
	if len(all) != 1 {
		t.Errorf("Expected 1 visible key in session, got %d", len(all))
	}

	session.Flush()
	if len(session.All()) != 0 {
		t.Error("Expected empty session after Flush")
	}
}

func TestSessionToken(t *testing.T) {
	session := NewSession("test-id", nil)

	token := session.Token()
	if len(token) != 40 {
		t.Fatalf("Expected 40 character token, got %q", token)
	}
	if again := session.Token(); again != token {
		t.Errorf("Token should be stable, got %q then %q", token, again)
	}

	regenerated := session.RegenerateToken()
	if regenerated == token {
		t.Error("RegenerateToken should produce a new token")
	}
	if session.Token() != regenerated {
		t.Error("Token should return the regenerated token")
	}
}

func TestSessionRegenerate(t *testing.T) {
	ctx := context.Background()
	handler := NewMemoryHandler()
	session := NewSession(GenerateSessionID(), handler)
	session.Put("user", "ada")
	if err := session.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	oldID := session.ID()
	if err := session.Regenerate(ctx); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	if session.ID() == oldID {
		t.Error("Regenerate should change the ID")
	}
	if session.Get("user") != "ada" {
		t.Error("Regenerate should keep data")
	}
	if exists, _ := handler.Exists(ctx, oldID); exists {
		t.Error("Old session record should be destroyed")
	}

	if err := session.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if session.Has("user") {
		t.Error("Invalidate should flush data")
	}
}

func TestSessionFlashLifecycle(t *testing.T) {
	ctx := context.Background()
	handler := NewMemoryHandler()
	manager := NewManager(handler, DefaultConfig())

	first, err := manager.Start(ctx, httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	first.Flash("status", "saved")
	cookie, err := manager.Save(ctx, first)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	next := func() *DefaultSession {
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(cookie)
		s, err := manager.Start(ctx, req)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		return s
	}

	second := next()
	if second.ID() != first.ID() {
		t.Fatalf("Expected session %s to be resumed, got %s", first.ID(), second.ID())
	}
	if second.GetFlash("status") != "saved" {
		t.Errorf("Expected flash value on the next request, got %v", second.GetFlash("status"))
	}
	if _, err := manager.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	third := next()
	if third.GetFlash("status") != nil {
		t.Errorf("Flash value should be gone after one request, got %v", third.GetFlash("status"))
	}
}

func TestManagerStartWithUnknownCookie(t *testing.T) {
	ctx := context.Background()
	manager := NewManager(NewMemoryHandler(), DefaultConfig())

	for _, value := range []string{"not-hex", GenerateSessionID()} {
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: "dispatch_session", Value: value})

		s, err := manager.Start(ctx, req)
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if s.ID() == value {
			t.Errorf("Unknown session %q should not be adopted", value)
		}
		if !s.IsStarted() {
			t.Error("Session should be started")
		}
	}
}

func TestManagerCookies(t *testing.T) {
	config := DefaultConfig()
	config.Secure = true
	config.Lifetime = 30 * time.Minute
	manager := NewManager(NewMemoryHandler(), config)

	cookie := manager.Cookie("abc")
	if cookie.Name != "dispatch_session" || cookie.Value != "abc" {
		t.Errorf("Unexpected cookie %v", cookie)
	}
	if !cookie.Secure || !cookie.HttpOnly {
		t.Error("Cookie should be secure and http-only")
	}
	if cookie.MaxAge != 1800 {
		t.Errorf("Expected MaxAge 1800, got %d", cookie.MaxAge)
	}

	s := NewSession("abc", manager.Handler())
	expired, err := manager.Destroy(context.Background(), s)
	if err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if expired.MaxAge != -1 {
		t.Errorf("Expected expired cookie, got MaxAge %d", expired.MaxAge)
	}
}

func TestValidateSessionID(t *testing.T) {
	if !ValidateSessionID(GenerateSessionID()) {
		t.Error("Generated IDs should validate")
	}
	for _, id := range []string{"", "short", "zz" + GenerateSessionID()[2:]} {
		if ValidateSessionID(id) {
			t.Errorf("ID %q should not validate", id)
		}
	}
	if !SecureCompare("token", "token") || SecureCompare("token", "other") {
		t.Error("SecureCompare returned the wrong result")
	}
}
