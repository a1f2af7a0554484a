package flood

import (
	"fmt"
	"testing"
)

func TestAllowWithinLimit(t *testing.T) {
	gate := NewGate(3)

	for i := 0; i < 3; i++ {
		if !gate.Allow("C1", "U1") {
			t.Fatalf("message %d should be allowed", i+1)
		}
	}
	if gate.Allow("C1", "U1") {
		t.Error("message over the limit should be dropped")
	}
}

func TestAllowPerSenderIsolation(t *testing.T) {
	gate := NewGate(1)

	if !gate.Allow("C1", "U1") {
		t.Fatal("first sender should be allowed")
	}
	if gate.Allow("C1", "U1") {
		t.Error("first sender should now be limited")
	}
	if !gate.Allow("C1", "U2") {
		t.Error("a different sender must not be affected")
	}
	if !gate.Allow("C2", "U1") {
		t.Error("the same user in a different channel must not be affected")
	}
}

func TestAllowDisabledGate(t *testing.T) {
	for _, limit := range []int{0, -1} {
		gate := NewGate(limit)
		for i := 0; i < 100; i++ {
			if !gate.Allow("C1", "U1") {
				t.Fatalf("limit %d should disable the gate", limit)
			}
		}
	}
}

func TestAllowWindowSlides(t *testing.T) {
	gate := NewGate(2)

	gate.Allow("C1", "U1")
	gate.Allow("C1", "U1")
	if gate.Allow("C1", "U1") {
		t.Fatal("third message should be dropped")
	}

	// Age the recorded timestamps past the window.
	entry := gate.senders["C1:U1"]
	for i := range entry.timestamps {
		entry.timestamps[i] = entry.timestamps[i].Add(-2 * window)
	}

	if !gate.Allow("C1", "U1") {
		t.Error("sender should be allowed again after the window passes")
	}
}

func TestDropIdle(t *testing.T) {
	gate := NewGate(5)

	for i := 0; i < 10; i++ {
		gate.Allow("C1", fmt.Sprintf("U%d", i))
	}
	if got := len(gate.senders); got != 10 {
		t.Fatalf("expected 10 tracked senders, got %d", got)
	}

	for _, entry := range gate.senders {
		entry.lastSeen = entry.lastSeen.Add(-2 * idleTimeout)
	}
	gate.dropIdle()

	if got := len(gate.senders); got != 0 {
		t.Errorf("idle senders should be dropped, %d left", got)
	}
}
