package cache

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New(time.Minute)

	if _, ok := c.Get("tok"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("tok", "BEGIN:VCALENDAR")
	got, ok := c.Get("tok")
	if !ok {
		t.Fatal("expected hit")
	}
	if got != "BEGIN:VCALENDAR" {
		t.Errorf("value = %q", got)
	}
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("tok", "doc")

	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("tok"); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	c.Set("tok", "doc")
	c.Invalidate("tok")
	if _, ok := c.Get("tok"); ok {
		t.Error("expected miss after invalidate")
	}
}

func TestCleanup(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.Set("a", "1")
	c.Set("b", "2")
	time.Sleep(20 * time.Millisecond)
	c.Set("c", "3")

	c.Cleanup()

	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	if n != 1 {
		t.Errorf("entries after cleanup = %d, want 1", n)
	}
}
