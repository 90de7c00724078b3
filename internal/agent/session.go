// Package agent implements the simulation-side half of the channel: a
// per-agent session the host invokes once per tick. The host blocks on
// every call, so nothing here waits; a tick with no inbound message is the
// steady-state "waiting for controller" condition, not an error.
package agent

import (
	"fmt"
	"log"
	"os"

	"botlink.gg/internal/action"
	"botlink.gg/internal/mailbox"
	"botlink.gg/internal/protocol"
	"botlink.gg/internal/protocol/sequence"
	"botlink.gg/internal/worldstate"
)

type State int

const (
	Uninitialized State = iota
	Ready
	Polling
	Validating
	Delivering
	Idle
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Polling:
		return "polling"
	case Validating:
		return "validating"
	case Delivering:
		return "delivering"
	case Idle:
		return "idle"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("agent.State(%d)", int(s))
}

// noopCommand is what Act returns when there is nothing to do this tick.
// The boundary contract is "always return some command representation".
const noopCommand = "{}"

type Config struct {
	AgentID int
	TeamID  int

	// Inbox is the controller-to-agent mailbox, Outbox the reverse path.
	Inbox  mailbox.Transport
	Outbox mailbox.Transport

	// FilterOwned restricts observations to units the agent owns. Off by
	// default: the source system enumerated every unit.
	FilterOwned bool

	Logger *log.Logger
}

// Session ties the codec, sequencer, transport and schema mapping together
// for one agent. Each session owns its own sequence tracker; sessions in
// the same process never share sequencing state.
type Session struct {
	cfg Config
	log *log.Logger
	seq *sequence.Tracker

	state      State
	rosterSent bool
}

func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, fmt.Sprintf("[agent %d] ", cfg.AgentID), log.LstdFlags|log.Lmicroseconds)
	}
	return &Session{
		cfg: cfg,
		log: logger,
		seq: sequence.NewTracker(),
	}
}

func (s *Session) State() State    { return s.state }
func (s *Session) LastSeq() uint64 { return s.seq.Last() }

// Init performs the one-time roster capture and emits the roster envelope.
// It never fails: a partial emit leaves the session usable.
func (s *Session) Init(roster []protocol.Player) {
	if s.state != Uninitialized {
		s.log.Printf("Init called twice (state: %s)", s.state)
		return
	}
	s.log.Printf("Init (team: %d)", s.cfg.TeamID)
	if !s.rosterSent {
		s.emit(protocol.RosterOf(roster))
		s.rosterSent = true
	}
	s.state = Ready
}

// Observe is the pure per-tick read of the world state. It tolerates an
// empty snapshot and never mutates it.
func (s *Session) Observe(snap worldstate.Snapshot) worldstate.Observation {
	obs := worldstate.Project(snap, s.cfg.AgentID, worldstate.Options{FilterOwned: s.cfg.FilterOwned})
	for _, u := range obs.Units {
		s.log.Printf("PlayerID: %d loc: x=%v y=%v", u.PlayerID, u.Location.X, u.Location.Y)
	}
	return obs
}

// Act runs one tick of the channel state machine and always returns some
// command text, degraded if need be. Nothing escapes past this boundary.
func (s *Session) Act(snap worldstate.Snapshot) (cmd string) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("Act recovered: %v", r)
			s.state = Ready
			cmd = noopCommand
		}
	}()

	if s.state == ShuttingDown || s.state == Terminated {
		return noopCommand
	}

	s.state = Polling
	text, ok := s.cfg.Inbox.Poll()
	if !ok {
		s.state = Idle
		s.emit(protocol.StatusOf(protocol.StatusReady))
		s.state = Ready
		return noopCommand
	}

	s.state = Validating
	env, err := protocol.Decode(protocol.UnwrapScript(text))
	if err != nil {
		s.emit(protocol.ErrorOf(fmt.Sprintf("%s: %v", protocol.ErrDecode, err)))
		s.state = Ready
		return noopCommand
	}
	if env.Tag() != protocol.TagCommand {
		s.emit(protocol.ErrorOf(fmt.Sprintf("%s: unexpected %q envelope on command channel", protocol.ErrDecode, env.Tag())))
		s.state = Ready
		return noopCommand
	}
	msg := env.Command

	switch d := s.seq.Accept(msg.UID); d.Kind {
	case sequence.Duplicate:
		// Already processed or stale; ignore silently, no re-delivery.
		s.state = Ready
		return noopCommand
	case sequence.Gap:
		// Report the skip, then keep going: the id already advanced so
		// the channel cannot live-lock on the missing message.
		s.emit(protocol.ErrorOf(fmt.Sprintf("%s: skipped %d..%d", protocol.ErrSequenceGap, d.GapFrom, d.GapTo)))
	}

	// Acknowledge exactly once per accepted id, before delivery.
	s.emit(protocol.AckOf(msg.UID))

	s.state = Delivering
	obs := s.Observe(snap)
	_ = obs // observation feeds local logging; the decision comes from the controller

	raw, addressed := msg.Decision(s.cfg.TeamID, s.cfg.AgentID)
	if !addressed {
		s.state = Ready
		return noopCommand
	}

	decision, err := action.Parse(raw)
	if err != nil {
		s.emit(protocol.ErrorOf(fmt.Sprintf("%s: decision payload: %v", protocol.ErrDecode, err)))
		s.state = Ready
		return noopCommand
	}

	cmdText, err := action.Encode(decision)
	if err != nil {
		// Degraded command; report and still complete the tick.
		s.emit(protocol.ErrorOf(fmt.Sprintf("%s: %v", protocol.ErrPartialAction, err)))
	}
	s.state = Ready
	if cmdText == "" {
		cmdText = noopCommand
	}
	return cmdText
}

// Shutdown stops the session. No further polling happens; final log only.
func (s *Session) Shutdown() {
	if s.state == Terminated {
		return
	}
	s.state = ShuttingDown
	s.log.Printf("Shutdown")
	s.state = Terminated
}

func (s *Session) emit(env protocol.Envelope) {
	text, err := protocol.Encode(env)
	if err != nil {
		s.log.Printf("encode %s envelope: %v", env.Tag(), err)
		return
	}
	if err := s.cfg.Outbox.Emit(text); err != nil {
		s.log.Printf("emit %s envelope: %v", env.Tag(), err)
	}
}
