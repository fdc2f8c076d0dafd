package auth

import (
	"sync"
	"testing"
	"time"
)

func testKey(b byte) SessionKey {
	var k SessionKey
	for i := range k {
		k[i] = b + byte(i)
	}
	return k
}

func TestSessionStore_StoreAndLoad(t *testing.T) {
	s := NewSessionStore()
	key := testKey(1)

	s.Store("Player", key)

	// аккаунты регистронезависимы
	got, ok := s.Load("PLAYER", time.Hour)
	if !ok {
		t.Fatal("expected stored key")
	}
	if got != key {
		t.Error("loaded key differs from stored key")
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestSessionStore_LoadNonExistent(t *testing.T) {
	s := NewSessionStore()
	if _, ok := s.Load("nobody", 0); ok {
		t.Error("expected miss for unknown account")
	}
}

func TestSessionStore_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	s.Store("a", testKey(1))
	now = now.Add(10 * time.Minute)
	s.Store("b", testKey(2))

	if _, ok := s.Load("a", 5*time.Minute); ok {
		t.Error("expected expired key to be hidden")
	}
	if _, ok := s.Load("a", 0); !ok {
		t.Error("ttl 0 must disable the age check")
	}

	s.CleanExpired(5 * time.Minute)
	if s.Count() != 1 {
		t.Fatalf("Count after CleanExpired = %d, want 1", s.Count())
	}
	if _, ok := s.Load("b", 5*time.Minute); !ok {
		t.Error("fresh key must survive CleanExpired")
	}
}

func TestSessionStore_CleanExpiredZeroTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore()
	s.now = func() time.Time { return now }

	s.Store("a", testKey(1))
	now = now.Add(24 * time.Hour)

	s.CleanExpired(0)
	if s.Count() != 1 {
		t.Errorf("Count after CleanExpired(0) = %d, want 1", s.Count())
	}
}

func TestSessionStore_Replace(t *testing.T) {
	s := NewSessionStore()
	s.Store("a", testKey(1))
	s.Store("a", testKey(9))

	got, _ := s.Load("a", 0)
	if got != testKey(9) {
		t.Error("Store must replace the previous key")
	}
	s.Remove("A")
	if s.Count() != 0 {
		t.Errorf("Count after Remove = %d, want 0", s.Count())
	}
}

func TestSessionStore_Concurrent(t *testing.T) {
	s := NewSessionStore()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Go(func() {
			name := string(rune('a' + i%8))
			s.Store(name, testKey(byte(i)))
			s.Load(name, time.Minute)
			s.Count()
		})
	}
	wg.Wait()
	if s.Count() != 8 {
		t.Errorf("Count = %d, want 8", s.Count())
	}
}
