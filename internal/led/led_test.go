package led

import "testing"

func TestNoopSetterNeverErrors(t *testing.T) {
	var s Setter = NoopSetter{}
	for _, state := range []State{Off, Listening, Thinking, Speaking, AwaitFollowup, ErrorState, Sleep} {
		if err := s.Set(state); err != nil {
			t.Errorf("NoopSetter.Set(%v) = %v, want nil", state, err)
		}
	}
}

type recordingSetter struct{ last State }

func (r *recordingSetter) Set(s State) error {
	r.last = s
	return nil
}

func TestSetterInterfaceIsSatisfiedByCustomImplementations(t *testing.T) {
	var s Setter = &recordingSetter{}
	if err := s.Set(Thinking); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if s.(*recordingSetter).last != Thinking {
		t.Error("custom Setter did not record the state change")
	}
}
