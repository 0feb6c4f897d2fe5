package useragent

import "testing"

func TestPool_NextRoundRobin(t *testing.T) {
	p := NewPool([]string{"a", "b", "c"})
	got := []string{p.Next(), p.Next(), p.Next(), p.Next()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPool_DefaultFallback(t *testing.T) {
	p := NewPool(nil)
	if p.Next() == "" {
		t.Errorf("expected a default User-Agent")
	}
}

func TestPool_Random(t *testing.T) {
	p := NewPool([]string{"only"})
	for i := 0; i < 5; i++ {
		if p.Random() != "only" {
			t.Errorf("single-entry pool must always return it")
		}
	}
}
