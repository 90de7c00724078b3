// Package worldstate maps the simulation's per-tick snapshot into the view
// one agent gets to see.
package worldstate

import "encoding/json"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Unit is one entity record in a snapshot. Fields beyond identity and
// position are opaque to the channel layer and ride along in Extra.
type Unit struct {
	Handle   int             `json:"handle"`
	PlayerID int             `json:"player_id"`
	Location Vec3            `json:"location"`
	Extra    json.RawMessage `json:"extra,omitempty"`
}

// Snapshot is one tick's full structured world state as supplied by the
// simulation. It is borrowed for the duration of a call and never retained.
type Snapshot struct {
	Units []Unit `json:"units"`
}

// Observation is the per-agent projection of a snapshot, built fresh each
// tick and discarded after consumption.
type Observation struct {
	AgentID int
	Units   []Unit
}

// Options selects the projection policy. The source system enumerated all
// units regardless of ownership, so FilterOwned defaults to off; flipping
// it restricts the observation to the units the agent owns.
type Options struct {
	FilterOwned bool
}

// Project is a pure filter over the snapshot. An empty snapshot yields an
// empty observation, never an error.
func Project(snap Snapshot, agentID int, opts Options) Observation {
	obs := Observation{AgentID: agentID}
	if len(snap.Units) == 0 {
		return obs
	}
	obs.Units = make([]Unit, 0, len(snap.Units))
	for _, u := range snap.Units {
		if opts.FilterOwned && u.PlayerID != agentID {
			continue
		}
		obs.Units = append(obs.Units, u)
	}
	return obs
}
