package protocol

// Error codes carried in Error envelopes. None of these is fatal: the host
// simulation is never blocked or crashed by a bad external message.
const (
	// Channel payload could not be parsed; the message is dropped.
	ErrDecode = "E_DECODE"

	// A sequence id was skipped; the id is advanced anyway.
	ErrSequenceGap = "E_SEQUENCE_GAP"

	// Action encoding produced a degraded command; the tick still completes.
	ErrPartialAction = "E_PARTIAL_ACTION"

	// Outbound emit failed; the envelope is lost, the tick continues.
	ErrEmit = "E_EMIT"
)

var knownCodes = map[string]struct{}{
	ErrDecode:        {},
	ErrSequenceGap:   {},
	ErrPartialAction: {},
	ErrEmit:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
