package protocol

const Version = "1.0"

// Team ids as the simulation reports them.
const (
	TeamRadiant = 2
	TeamDire    = 3
)

// Envelope tags. Outbound messages are single-key JSON objects; the key is
// the tag, the value is the payload. Inbound command messages are the
// exception: they carry a "uid" field instead of a tag.
const (
	TagAck     = "A"
	TagStatus  = "S"
	TagError   = "E"
	TagRoster  = "P"
	TagCommand = "C"
)

// Status codes.
const (
	StatusReady    = "ready"
	StatusShutdown = "shutdown"
)

func TeamName(team int) string {
	switch team {
	case TeamRadiant:
		return "Radiant"
	case TeamDire:
		return "Dire"
	}
	return "Unknown"
}
