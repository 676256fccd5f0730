package dialogue

import "testing"

func TestAppendTruncatesToCtxTurns(t *testing.T) {
	m := NewMemory(2, false)
	m.Append("user", "one")
	m.Append("assistant", "two")
	m.Append("user", "three")

	turns := m.Turns()
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d, want 2", len(turns))
	}
	if turns[0].Text != "two" || turns[1].Text != "three" {
		t.Errorf("turns = %+v, want the two most recent", turns)
	}
}

func TestAppendUnboundedWhenCtxTurnsZero(t *testing.T) {
	m := NewMemory(0, false)
	for i := 0; i < 10; i++ {
		m.Append("user", "x")
	}
	if len(m.Turns()) != 10 {
		t.Errorf("len(turns) = %d, want 10 (unbounded)", len(m.Turns()))
	}
}

func TestOnWakeResetsWhenConfigured(t *testing.T) {
	m := NewMemory(5, true)
	m.Append("user", "hi")
	m.OnWake()
	if len(m.Turns()) != 0 {
		t.Errorf("len(turns) = %d, want 0 after OnWake with resetOnWake=true", len(m.Turns()))
	}
}

func TestOnWakeKeepsHistoryWhenNotConfigured(t *testing.T) {
	m := NewMemory(5, false)
	m.Append("user", "hi")
	m.OnWake()
	if len(m.Turns()) != 1 {
		t.Errorf("len(turns) = %d, want 1 after OnWake with resetOnWake=false", len(m.Turns()))
	}
}

func TestTurnsReturnsACopy(t *testing.T) {
	m := NewMemory(0, false)
	m.Append("user", "hi")
	turns := m.Turns()
	turns[0].Text = "mutated"
	if m.Turns()[0].Text != "hi" {
		t.Error("mutating the returned slice leaked into Memory's internal state")
	}
}
