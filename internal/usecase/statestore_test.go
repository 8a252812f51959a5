package usecase

import (
	"testing"

	"murmur/internal/domain"
)

func TestStateStoreStartsIdle(t *testing.T) {
	s := NewStateStore()
	if got := s.Get(); got != domain.StateIdle {
		t.Fatalf("initial state = %q, want %q", got, domain.StateIdle)
	}
}

func TestStateStoreNotifiesObserversInOrder(t *testing.T) {
	s := NewStateStore()

	var order []string
	s.Subscribe(func(state domain.RecorderState) {
		order = append(order, "first:"+string(state))
	})
	s.Subscribe(func(state domain.RecorderState) {
		order = append(order, "second:"+string(state))
	})

	s.set(domain.StateSession)
	s.set(domain.StateSessionRecording)

	want := []string{
		"first:SESSION", "second:SESSION",
		"first:SESSION+RECORDING", "second:SESSION+RECORDING",
	}
	if len(order) != len(want) {
		t.Fatalf("observer calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestStateStoreSkipsRedundantTransitions(t *testing.T) {
	s := NewStateStore()

	calls := 0
	s.Subscribe(func(domain.RecorderState) { calls++ })

	s.set(domain.StateIdle)
	s.set(domain.StateSession)
	s.set(domain.StateSession)

	if calls != 1 {
		t.Fatalf("observer calls = %d, want 1", calls)
	}
	if got := s.Get(); got != domain.StateSession {
		t.Fatalf("state = %q, want %q", got, domain.StateSession)
	}
}
