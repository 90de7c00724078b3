package action

import (
	"encoding/json"
	"fmt"

	"botlink.gg/internal/protocol"
)

// Builder assembles the per-team, per-agent command payload the controller
// sends each tick. Usage:
//
//	b := action.NewBuilder()
//	b.Player(protocol.TeamRadiant, 0).MoveToLocation(120, -45)
//	teams, err := b.Build()
type Builder struct {
	teams map[int]map[int]Decision
}

func NewBuilder() *Builder {
	return &Builder{teams: make(map[int]map[int]Decision)}
}

// Player returns the command set for one agent, creating it on first use.
func (b *Builder) Player(team, id int) *PlayerCommands {
	agents, ok := b.teams[team]
	if !ok {
		agents = make(map[int]Decision)
		b.teams[team] = agents
	}
	d, ok := agents[id]
	if !ok {
		d = make(Decision)
		agents[id] = d
	}
	return &PlayerCommands{d: d}
}

// Build marshals every decision into the wire payload shape.
func (b *Builder) Build() (map[int]protocol.TeamCommands, error) {
	out := make(map[int]protocol.TeamCommands, len(b.teams))
	for team, agents := range b.teams {
		tc := make(protocol.TeamCommands, len(agents))
		for id, d := range agents {
			raw, err := json.Marshal(d)
			if err != nil {
				return nil, fmt.Errorf("player %d/%d: %w", team, id, err)
			}
			tc[id] = raw
		}
		out[team] = tc
	}
	return out, nil
}

// PlayerCommands accumulates actions for one agent.
type PlayerCommands struct {
	d Decision
}

func (p *PlayerCommands) MoveToLocation(x, y float64) *PlayerCommands {
	p.d["move"] = map[string]float64{"x": x, "y": y}
	return p
}

func (p *PlayerCommands) MoveDirectly(x, y float64) *PlayerCommands {
	p.d["move_directly"] = map[string]float64{"x": x, "y": y}
	return p
}

func (p *PlayerCommands) AttackMove(x, y float64) *PlayerCommands {
	p.d["attack_move"] = map[string]float64{"x": x, "y": y}
	return p
}

func (p *PlayerCommands) UseAbility(slot int) *PlayerCommands {
	p.d["use_ability"] = map[string]int{"slot": slot}
	return p
}

func (p *PlayerCommands) UseAbilityOnLocation(slot int, x, y float64) *PlayerCommands {
	p.d["use_ability_on_location"] = map[string]any{"slot": slot, "x": x, "y": y}
	return p
}

func (p *PlayerCommands) Buyback() *PlayerCommands {
	p.d["buyback"] = true
	return p
}

func (p *PlayerCommands) CourierReturn() *PlayerCommands {
	p.d["courier"] = "return"
	return p
}
