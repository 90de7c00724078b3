package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		env  Envelope
	}{
		{"ack", AckOf(7)},
		{"ack_zero", AckOf(0)},
		{"status", StatusOf(StatusReady)},
		{"error", ErrorOf("skipped message")},
		{"roster", RosterOf([]Player{
			{ID: 0, IsBot: true, TeamID: TeamRadiant, Hero: "npc_dota_hero_antimage"},
			{ID: 7, IsBot: true, TeamID: TeamDire, Hero: "npc_dota_hero_juggernaut"},
		})},
		{"command", CommandOf(&CommandMsg{
			UID: 3,
			Teams: map[int]TeamCommands{
				TeamRadiant: {0: json.RawMessage(`{"move":{"x":1,"y":2}}`)},
				TeamDire:    {7: json.RawMessage(`{}`)},
			},
		})},
		{"command_extra", CommandOf(&CommandMsg{
			UID:   1,
			Extra: map[string]json.RawMessage{"draft_start_wait": json.RawMessage(`10`)},
		})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Encode(tc.env)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(text)
			if err != nil {
				t.Fatalf("Decode(%s): %v", text, err)
			}
			if !reflect.DeepEqual(got, tc.env) {
				t.Fatalf("round trip mismatch:\n in: %#v\nout: %#v\nwire: %s", tc.env, got, text)
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	env := CommandOf(&CommandMsg{
		UID: 9,
		Teams: map[int]TeamCommands{
			TeamRadiant: {0: json.RawMessage(`{"a":1}`), 1: json.RawMessage(`{"b":2}`)},
			TeamDire:    {5: json.RawMessage(`{"c":3}`)},
		},
	})
	first, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Encode(env)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if again != first {
			t.Fatalf("non-deterministic encode:\n%s\n%s", first, again)
		}
	}
}

func TestEncode_RejectsAmbiguous(t *testing.T) {
	seq := uint64(1)
	bad := []Envelope{
		{},
		{Ack: &seq, Status: StatusReady},
		{Error: "x", Status: StatusReady},
	}
	for _, env := range bad {
		if _, err := Encode(env); err == nil {
			t.Fatalf("expected encode error for %#v", env)
		}
	}
}

func TestEncodeError_NeverFailsForText(t *testing.T) {
	for _, text := range []string{"", "plain", `quotes " and \ slashes`, "unicode é"} {
		env := Envelope{Error: text}
		if text == "" {
			continue // empty error text is the empty envelope, skip
		}
		if _, err := Encode(env); err != nil {
			t.Fatalf("Encode(Error %q): %v", text, err)
		}
	}
}

func TestDecode_Command(t *testing.T) {
	env, err := Decode(`{"uid":1,"2":{"0":{"move":{"x":1,"y":2}}},"3":{"7":{}}}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Tag() != TagCommand {
		t.Fatalf("tag = %q, want command", env.Tag())
	}
	if env.Command.UID != 1 {
		t.Fatalf("uid = %d, want 1", env.Command.UID)
	}
	raw, ok := env.Command.Decision(TeamRadiant, 0)
	if !ok {
		t.Fatalf("missing radiant/0 decision")
	}
	if !strings.Contains(string(raw), `"x":1`) {
		t.Fatalf("unexpected decision payload: %s", raw)
	}
	if _, ok := env.Command.Decision(TeamDire, 9); ok {
		t.Fatalf("unexpected decision for absent agent")
	}
}

func TestDecode_Malformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"not json",
		`[1,2,3]`,
		`{"A":1,"S":"ready"}`,
		`{"Z":1}`,
		`{"A":"not a number"}`,
		`{"2":{"0":{}}}`, // command shape without uid
	}
	for _, text := range cases {
		_, err := Decode(text)
		if err == nil {
			t.Fatalf("Decode(%q): expected error", text)
		}
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("Decode(%q): error type %T, want *DecodeError", text, err)
		}
	}
}

func TestScriptFraming(t *testing.T) {
	payload := `{"uid":1,"2":{"0":{}}}`
	wrapped := WrapScript(payload)
	if wrapped != "return '"+payload+"'" {
		t.Fatalf("unexpected wrap: %s", wrapped)
	}
	if got := UnwrapScript(wrapped); got != payload {
		t.Fatalf("unwrap = %q, want %q", got, payload)
	}
	// Unframed text passes through.
	if got := UnwrapScript(payload); got != payload {
		t.Fatalf("unwrap passthrough = %q", got)
	}
}
