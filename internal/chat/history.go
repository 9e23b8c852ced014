package chat

// History is the ordered sequence of turns for one session, append-only
// during an active orchestration run.
//
// Thread safety: History itself is not synchronized. The session store
// serializes orchestration runs per session id, so at most one run mutates
// a given history at a time.
type History struct {
	turns []*Turn
}

// NewHistory creates a history seeded with the given preamble turns.
// Exactly one preamble pair (instruction + acknowledgement) prefixes every
// history; see DefaultPreamble and CustomPreamble.
func NewHistory(preamble ...*Turn) *History {
	h := &History{turns: make([]*Turn, 0, len(preamble)+8)}
	h.turns = append(h.turns, preamble...)
	return h
}

// Append adds a turn to the end of the history.
func (h *History) Append(t *Turn) {
	if t == nil {
		return
	}
	h.turns = append(h.turns, t)
}

// Turns returns the underlying turn slice. Callers must not mutate it
// outside an orchestration run that owns the session.
func (h *History) Turns() []*Turn {
	return h.turns
}

// Snapshot returns a copy of the turn slice that is safe to read after
// the session lock is released. Turns are immutable once appended, so a
// shallow copy suffices.
func (h *History) Snapshot() []*Turn {
	out := make([]*Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns, preamble included.
func (h *History) Len() int {
	return len(h.turns)
}
