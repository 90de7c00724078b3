// Package sequence owns per-channel message ordering: duplicate and gap
// detection over the monotonic uid stream.
package sequence

import "fmt"

type Kind int

const (
	// Duplicate: the id was already processed or is stale; ignore silently.
	Duplicate Kind = iota + 1
	// Accepted: the id is the next expected one.
	Accepted
	// Gap: one or more ids were skipped. The missing messages are not
	// recoverable; the tracker advances anyway so the channel cannot
	// live-lock on a permanently skipped id.
	Gap
)

func (k Kind) String() string {
	switch k {
	case Duplicate:
		return "duplicate"
	case Accepted:
		return "accepted"
	case Gap:
		return "gap"
	}
	return fmt.Sprintf("sequence.Kind(%d)", int(k))
}

// Decision is the outcome of offering one candidate id to the tracker.
type Decision struct {
	Kind    Kind
	GapFrom uint64 // first missing id, set when Kind == Gap
	GapTo   uint64 // candidate id that exposed the gap
}

// Tracker owns the last accepted sequence id for one channel. It starts at
// zero and never moves backwards. Each session gets its own tracker so
// multiple agents in one process do not share sequencing state.
type Tracker struct {
	last uint64
}

func NewTracker() *Tracker { return &Tracker{} }

// Last returns the last accepted sequence id.
func (t *Tracker) Last() uint64 { return t.last }

// Accept validates a candidate id and advances the tracker when the
// candidate is new. Accept is the only mutation point.
func (t *Tracker) Accept(seq uint64) Decision {
	switch {
	case seq <= t.last:
		return Decision{Kind: Duplicate}
	case seq == t.last+1:
		t.last = seq
		return Decision{Kind: Accepted}
	default:
		from := t.last + 1
		t.last = seq
		return Decision{Kind: Gap, GapFrom: from, GapTo: seq}
	}
}
