// Package action turns controller decisions into the command text the
// simulation consumes.
package action

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Decision is one controller-produced action for one agent in one tick:
// a free-form key/value command. It lives for a single tick and is never
// persisted.
type Decision map[string]any

// PartialError reports that a decision could not be encoded canonically
// and a degraded textual description was produced instead. The tick still
// completes; the caller logs and moves on.
type PartialError struct {
	Partial string
	Cause   error
}

func (e *PartialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("partial decision (%v): %s", e.Cause, e.Partial)
	}
	return "partial decision: " + e.Partial
}

func (e *PartialError) Unwrap() error { return e.Cause }

// Encode produces the canonical command text for a decision. Encoding is
// deterministic: equal decisions yield equal text. A malformed decision
// never fails hard; Encode returns a best-effort partial description plus
// a *PartialError so the caller can report without aborting the tick.
func Encode(d Decision) (string, error) {
	if len(d) == 0 {
		partial := partialText(d)
		return partial, &PartialError{Partial: partial, Cause: fmt.Errorf("empty decision")}
	}
	b, err := json.Marshal(d)
	if err != nil {
		partial := partialText(d)
		return partial, &PartialError{Partial: partial, Cause: err}
	}
	return string(b), nil
}

// Parse decodes a raw decision payload from a command message.
func Parse(raw json.RawMessage) (Decision, error) {
	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	return d, nil
}

func partialText(d Decision) string {
	if len(d) == 0 {
		return "(empty decision)"
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d[k]))
	}
	return "(partial content: " + strings.Join(parts, " ") + ")"
}
