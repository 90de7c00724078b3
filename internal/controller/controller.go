// Package controller implements the external half of the channel: it
// assigns sequence ids to outbound command messages, polls each agent's
// outbox for envelopes, and keeps the acknowledgment and roster books.
package controller

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"botlink.gg/internal/mailbox"
	"botlink.gg/internal/protocol"
)

// TranscriptEntry is one recorded channel event. Every send and every
// received envelope becomes an entry; sinks (transcript log, index db,
// inspect feed) fan out from here.
type TranscriptEntry struct {
	At        time.Time `json:"at"`
	Direction string    `json:"direction"` // "send" or "recv"
	Tag       string    `json:"tag"`
	UID       uint64    `json:"uid,omitempty"`
	Team      int       `json:"team,omitempty"`
	AgentID   int       `json:"agent_id,omitempty"`
	Raw       string    `json:"raw"`
}

const (
	DirSend = "send"
	DirRecv = "recv"
)

// Sink consumes transcript entries. Implementations must not block: the
// controller tick shares the caller's loop.
type Sink interface {
	Record(TranscriptEntry)
}

// Stats mirrors what the channel has seen so far.
type Stats struct {
	Sent       int `json:"sent"`
	Received   int `json:"received"`
	Acks       int `json:"acks"`
	Errors     int `json:"errors"`
	DoubleRead int `json:"double_read"`
	Decode     int `json:"decode_failures"`
}

type peer struct {
	team      int
	agentID   int
	box       mailbox.Transport
	announced bool
	lastRaw   string
}

// StatusSnapshot is the inspect-facing view of the controller.
type StatusSnapshot struct {
	ProtocolVersion string            `json:"protocol_version"`
	UID             uint64            `json:"uid"`
	Ready           bool              `json:"ready"`
	BotCount        int               `json:"bot_count"`
	Roster          []protocol.Player `json:"roster,omitempty"`
	PendingAcks     map[uint64]int    `json:"pending_acks,omitempty"`
	Stats           Stats             `json:"stats"`
}

type Controller struct {
	log  *log.Logger
	send mailbox.Transport

	mu         sync.Mutex
	peers      []*peer
	uid        uint64
	replyCount map[uint64]int
	heroes     map[int]protocol.Player
	roster     []protocol.Player
	botCount   int
	ready      bool
	stats      Stats
	sinks      []Sink
}

func New(send mailbox.Transport, logger *log.Logger, sinks ...Sink) *Controller {
	if logger == nil {
		logger = log.New(os.Stdout, "[controller] ", log.LstdFlags|log.Lmicroseconds)
	}
	return &Controller{
		log:        logger,
		send:       send,
		replyCount: make(map[uint64]int),
		heroes:     make(map[int]protocol.Player),
		sinks:      sinks,
	}
}

// AddSink attaches another transcript consumer. Like peers, sinks are
// fixed before the loop starts.
func (c *Controller) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

// AddPeer registers one agent outbox to poll. Peers are fixed before the
// loop starts; there is no mid-game join.
func (c *Controller) AddPeer(team, agentID int, box mailbox.Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peers = append(c.peers, &peer{team: team, agentID: agentID, box: box})
}

// Send writes one command message to the shared inbound mailbox, assigning
// the next sequence id. The previous unread message, if any, is simply
// overwritten; that loss is what the sequencing layer reports as a gap.
func (c *Controller) Send(teams map[int]protocol.TeamCommands) (uint64, error) {
	return c.sendMsg(teams, nil)
}

// SendConfig delivers free-form session configuration (e.g. draft timing)
// over the same channel.
func (c *Controller) SendConfig(extra map[string]json.RawMessage) (uint64, error) {
	return c.sendMsg(nil, extra)
}

func (c *Controller) sendMsg(teams map[int]protocol.TeamCommands, extra map[string]json.RawMessage) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.uid++
	msg := protocol.CommandMsg{UID: c.uid, Teams: teams, Extra: extra}
	text, err := protocol.Encode(protocol.CommandOf(&msg))
	if err != nil {
		c.uid--
		return 0, fmt.Errorf("encode command: %w", err)
	}
	if err := c.send.Emit(protocol.WrapScript(text)); err != nil {
		return 0, fmt.Errorf("emit command: %w", err)
	}
	c.stats.Sent++
	c.record(TranscriptEntry{
		At:        time.Now().UTC(),
		Direction: DirSend,
		Tag:       protocol.TagCommand,
		UID:       msg.UID,
		Raw:       text,
	})
	return msg.UID, nil
}

// PollOnce drains whatever is new on every peer outbox. The single-slot
// medium re-reads the same message until it is overwritten, so unchanged
// content is skipped rather than re-processed.
func (c *Controller) PollOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.peers {
		raw, ok := p.box.Poll()
		if !ok {
			continue
		}
		if raw == p.lastRaw {
			c.stats.DoubleRead++
			continue
		}
		p.lastRaw = raw

		env, err := protocol.Decode(raw)
		if err != nil {
			c.stats.Decode++
			c.log.Printf("recv %s %d: %v", protocol.TeamName(p.team), p.agentID, err)
			continue
		}
		c.stats.Received++
		c.record(TranscriptEntry{
			At:        time.Now().UTC(),
			Direction: DirRecv,
			Tag:       env.Tag(),
			UID:       ackSeq(env),
			Team:      p.team,
			AgentID:   p.agentID,
			Raw:       raw,
		})
		c.handle(p, env)
	}
}

func ackSeq(env protocol.Envelope) uint64 {
	if env.Ack != nil {
		return *env.Ack
	}
	return 0
}

func (c *Controller) handle(p *peer, env protocol.Envelope) {
	switch env.Tag() {
	case protocol.TagError:
		// Errors are far from critical if we were able to receive them.
		c.stats.Errors++
		c.log.Printf("recv %s %d %s", protocol.TeamName(p.team), p.agentID, env.Error)

	case protocol.TagRoster:
		if len(c.heroes) == 0 {
			c.setRoster(env.Roster)
		}
		if !p.announced {
			p.announced = true
			if c.allAnnounced() {
				c.ready = true
				c.log.Printf("all bots accounted for, game is ready")
			}
		}

	case protocol.TagAck:
		seq := *env.Ack
		c.replyCount[seq]++
		if c.botCount > 0 && c.replyCount[seq] >= c.botCount {
			c.log.Printf("(uid: %d) message received by all %d bots", seq, c.botCount)
			delete(c.replyCount, seq)
		}

	case protocol.TagStatus:
		// Steady-state "waiting for controller"; nothing to book.

	default:
		c.log.Printf("recv %s %d: unexpected %q envelope", protocol.TeamName(p.team), p.agentID, env.Tag())
	}
}

func (c *Controller) setRoster(players []protocol.Player) {
	c.roster = append([]protocol.Player(nil), players...)
	bots := 0
	for _, pl := range players {
		c.heroes[pl.ID] = pl
		if pl.IsBot {
			bots++
		}
	}
	c.botCount = bots
}

func (c *Controller) allAnnounced() bool {
	for _, p := range c.peers {
		if !p.announced {
			return false
		}
	}
	return len(c.peers) > 0
}

// Ready reports whether every peer has announced its roster.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Hero returns the roster entry for one agent id.
func (c *Controller) Hero(agentID int) (protocol.Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pl, ok := c.heroes[agentID]
	return pl, ok
}

// PendingAcks returns how many acknowledgments are still outstanding per
// sequence id.
func (c *Controller) PendingAcks() map[uint64]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]int, len(c.replyCount))
	for k, v := range c.replyCount {
		out[k] = v
	}
	return out
}

// Status returns the inspect-facing snapshot.
func (c *Controller) Status() StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return StatusSnapshot{
		ProtocolVersion: protocol.Version,
		UID:             c.uid,
		Ready:           c.ready,
		BotCount:        c.botCount,
		Roster:          append([]protocol.Player(nil), c.roster...),
		PendingAcks:     copyCounts(c.replyCount),
		Stats:           c.stats,
	}
}

func copyCounts(m map[uint64]int) map[uint64]int {
	out := make(map[uint64]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (c *Controller) record(e TranscriptEntry) {
	for _, s := range c.sinks {
		s.Record(e)
	}
}
