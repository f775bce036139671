package state

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestStoreExpiry(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore[int64, string](time.Minute).WithClock(c.now)

	s.Put(1, "a")
	s.Put(2, "b")
	if v, ok := s.Get(1); !ok || v != "a" {
		t.Fatalf("Get(1) = %q, %v", v, ok)
	}

	c.t = c.t.Add(45 * time.Second)
	s.Put(2, "b2")
	c.t = c.t.Add(30 * time.Second)

	if _, ok := s.Get(1); ok {
		t.Fatal("entry 1 must have expired")
	}
	if v, ok := s.Get(2); !ok || v != "b2" {
		t.Fatalf("Get(2) = %q, %v", v, ok)
	}

	c.t = c.t.Add(time.Hour)
	if n := s.Sweep(); n != 1 || s.Len() != 0 {
		t.Fatalf("Sweep = %d, Len = %d", n, s.Len())
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore[string, int](0)
	s.Put("k", 1)
	if !s.Delete("k") {
		t.Fatal("Delete of live key must report true")
	}
	if s.Delete("k") {
		t.Fatal("second Delete must report false")
	}
	if _, ok := s.Get("k"); ok {
		t.Fatal("deleted key still present")
	}
}
