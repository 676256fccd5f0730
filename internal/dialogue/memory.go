package dialogue

// Turn is one conversation turn (data model §3).
type Turn struct {
	Role string // "user" | "assistant"
	Text string
}

// Memory is a bounded-length conversation history, ported from
// coglet-pi.py's ConversationMemory: truncated to CtxTurns, optionally
// reset on each wake.
type Memory struct {
	turns        []Turn
	ctxTurns     int
	resetOnWake  bool
}

// NewMemory builds a Memory bounded to ctxTurns turns.
func NewMemory(ctxTurns int, resetOnWake bool) *Memory {
	return &Memory{ctxTurns: ctxTurns, resetOnWake: resetOnWake}
}

// Append adds a turn and truncates to the context window.
func (m *Memory) Append(role, text string) {
	m.turns = append(m.turns, Turn{Role: role, Text: text})
	if m.ctxTurns > 0 && len(m.turns) > m.ctxTurns {
		m.turns = m.turns[len(m.turns)-m.ctxTurns:]
	}
}

// Turns returns the current bounded history.
func (m *Memory) Turns() []Turn {
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// OnWake resets history if ResetOnWake is set, otherwise truncates to
// CtxTurns (both already-enforced invariants, called explicitly at the
// IDLE/DEEP_SLEEP->WAKING transition for clarity).
func (m *Memory) OnWake() {
	if m.resetOnWake {
		m.turns = nil
		return
	}
	if m.ctxTurns > 0 && len(m.turns) > m.ctxTurns {
		m.turns = m.turns[len(m.turns)-m.ctxTurns:]
	}
}
