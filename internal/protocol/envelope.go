package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Player is one roster entry, captured once at startup and sent once.
type Player struct {
	ID     int    `json:"id"`
	IsBot  bool   `json:"is_bot"`
	TeamID int    `json:"team_id"`
	Hero   string `json:"hero"`
}

// TeamCommands maps an agent id to its raw decision payload.
type TeamCommands map[int]json.RawMessage

// CommandMsg is the controller-to-agent message: a sequence id plus
// per-team, per-agent decision payloads. Keys the codec does not interpret
// (e.g. session configuration) are preserved in Extra.
type CommandMsg struct {
	UID   uint64
	Teams map[int]TeamCommands
	Extra map[string]json.RawMessage
}

// Decision returns the payload addressed to one agent, if any.
func (c *CommandMsg) Decision(team, agentID int) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	agents, ok := c.Teams[team]
	if !ok {
		return nil, false
	}
	raw, ok := agents[agentID]
	return raw, ok
}

func (c *CommandMsg) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c.Teams)+len(c.Extra)+1)
	m["uid"] = c.UID
	for team, agents := range c.Teams {
		tm := make(map[string]json.RawMessage, len(agents))
		for id, raw := range agents {
			tm[strconv.Itoa(id)] = raw
		}
		m[strconv.Itoa(team)] = tm
	}
	for k, raw := range c.Extra {
		m[k] = raw
	}
	return json.Marshal(m)
}

func (c *CommandMsg) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	uidRaw, ok := m["uid"]
	if !ok {
		return fmt.Errorf("command message missing uid")
	}
	if err := json.Unmarshal(uidRaw, &c.UID); err != nil {
		return fmt.Errorf("command uid: %w", err)
	}
	delete(m, "uid")

	c.Teams = nil
	c.Extra = nil
	for k, raw := range m {
		team, err := strconv.Atoi(k)
		if err != nil {
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[k] = raw
			continue
		}
		var agents map[string]json.RawMessage
		if err := json.Unmarshal(raw, &agents); err != nil {
			return fmt.Errorf("team %d payload: %w", team, err)
		}
		tm := make(TeamCommands, len(agents))
		for ks, v := range agents {
			id, err := strconv.Atoi(ks)
			if err != nil {
				return fmt.Errorf("team %d: bad agent id %q", team, ks)
			}
			tm[id] = v
		}
		if c.Teams == nil {
			c.Teams = make(map[int]TeamCommands)
		}
		c.Teams[team] = tm
	}
	return nil
}

// Envelope is a single tagged message unit exchanged over the channel.
// Exactly one tag is set per message.
type Envelope struct {
	Ack     *uint64
	Status  string
	Error   string
	Roster  []Player
	Command *CommandMsg
}

func AckOf(seq uint64) Envelope        { return Envelope{Ack: &seq} }
func StatusOf(code string) Envelope    { return Envelope{Status: code} }
func ErrorOf(text string) Envelope     { return Envelope{Error: text} }
func RosterOf(ps []Player) Envelope    { return Envelope{Roster: ps} }
func CommandOf(c *CommandMsg) Envelope { return Envelope{Command: c} }

// Tag reports which variant is set, or "" when the envelope is empty or
// ambiguous.
func (e Envelope) Tag() string {
	tag := ""
	set := func(t string) {
		if tag != "" {
			tag = ""
			return
		}
		tag = t
	}
	if e.Ack != nil {
		set(TagAck)
	}
	if e.Status != "" {
		set(TagStatus)
	}
	if e.Error != "" {
		set(TagError)
	}
	if e.Roster != nil {
		set(TagRoster)
	}
	if e.Command != nil {
		set(TagCommand)
	}
	return tag
}

// Encode serializes an envelope to its wire text. Encoding is deterministic:
// equal envelopes produce equal text.
func Encode(e Envelope) (string, error) {
	var (
		b   []byte
		err error
	)
	switch e.Tag() {
	case TagAck:
		b, err = json.Marshal(map[string]uint64{TagAck: *e.Ack})
	case TagStatus:
		b, err = json.Marshal(map[string]string{TagStatus: e.Status})
	case TagError:
		b, err = json.Marshal(map[string]string{TagError: e.Error})
	case TagRoster:
		b, err = json.Marshal(map[string][]Player{TagRoster: e.Roster})
	case TagCommand:
		b, err = json.Marshal(e.Command)
	default:
		return "", fmt.Errorf("envelope must set exactly one tag")
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeError reports a malformed channel payload. It is never fatal: the
// caller drops the message and surfaces an Error envelope instead.
type DecodeError struct {
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode: %s: %v", e.Reason, e.Cause)
	}
	return "decode: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode parses wire text into an envelope. Command messages are recognized
// by their "uid" field; everything else must be a single-tag object.
func Decode(text string) (Envelope, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Envelope{}, &DecodeError{Reason: "empty payload"}
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &m); err != nil {
		return Envelope{}, &DecodeError{Reason: "not a json object", Cause: err}
	}

	if _, ok := m["uid"]; ok {
		var c CommandMsg
		if err := json.Unmarshal([]byte(trimmed), &c); err != nil {
			return Envelope{}, &DecodeError{Reason: "bad command message", Cause: err}
		}
		return Envelope{Command: &c}, nil
	}

	if len(m) != 1 {
		return Envelope{}, &DecodeError{Reason: fmt.Sprintf("expected one tag, got %d keys", len(m))}
	}
	for tag, raw := range m {
		switch tag {
		case TagAck:
			var seq uint64
			if err := json.Unmarshal(raw, &seq); err != nil {
				return Envelope{}, &DecodeError{Reason: "bad ack seq", Cause: err}
			}
			return Envelope{Ack: &seq}, nil
		case TagStatus:
			var code string
			if err := json.Unmarshal(raw, &code); err != nil {
				return Envelope{}, &DecodeError{Reason: "bad status code", Cause: err}
			}
			return Envelope{Status: code}, nil
		case TagError:
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return Envelope{}, &DecodeError{Reason: "bad error text", Cause: err}
			}
			return Envelope{Error: text}, nil
		case TagRoster:
			var ps []Player
			if err := json.Unmarshal(raw, &ps); err != nil {
				return Envelope{}, &DecodeError{Reason: "bad roster", Cause: err}
			}
			return Envelope{Roster: ps}, nil
		default:
			return Envelope{}, &DecodeError{Reason: "unknown tag " + strconv.Quote(tag)}
		}
	}
	return Envelope{}, &DecodeError{Reason: "empty object"}
}
