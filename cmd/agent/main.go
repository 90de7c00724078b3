// Shim harness: runs every configured agent session against the mailbox
// files with a synthetic world, standing in for the game host during
// controller development.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botlink.gg/internal/agent"
	"botlink.gg/internal/config"
	"botlink.gg/internal/mailbox"
	"botlink.gg/internal/protocol"
	"botlink.gg/internal/worldstate"
)

func main() {
	var (
		configPath = flag.String("config", "./configs/botlink.yaml", "config path")
		ticks      = flag.Uint64("ticks", 0, "stop after this many ticks (0 = run until interrupt)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[shim] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	roster := make([]protocol.Player, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		roster = append(roster, protocol.Player{
			ID:     a.ID,
			IsBot:  true,
			TeamID: a.TeamID,
			Hero:   fmt.Sprintf("npc_dota_hero_bot_%d", a.ID),
		})
	}

	inbox := mailbox.New(cfg.SendPath)
	sessions := make([]*agent.Session, 0, len(cfg.Agents))
	for _, a := range cfg.Agents {
		sess := agent.New(agent.Config{
			AgentID:     a.ID,
			TeamID:      a.TeamID,
			Inbox:       inbox,
			Outbox:      mailbox.New(cfg.RecvPath(a.ID)),
			FilterOwned: cfg.FilterOwnedUnits,
		})
		sess.Init(roster)
		sessions = append(sessions, sess)
	}
	logger.Printf("running %d sessions against %s at %d Hz", len(sessions), cfg.SendPath, cfg.TickRateHz)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRateHz))
	defer ticker.Stop()

	var tick uint64
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ticker.C:
		}

		tick++
		snap := syntheticSnapshot(tick, cfg.Agents)
		for _, sess := range sessions {
			cmd := sess.Act(snap)
			if tick%100 == 0 && cmd != "{}" {
				logger.Printf("tick=%d cmd=%s", tick, cmd)
			}
		}
		if *ticks != 0 && tick >= *ticks {
			break
		}
	}

	for _, sess := range sessions {
		sess.Shutdown()
	}
	logger.Printf("stopped after %d ticks", tick)
}

// syntheticSnapshot places one unit per agent on a slow circle so the
// observation path has something to enumerate.
func syntheticSnapshot(tick uint64, agents []config.AgentSpec) worldstate.Snapshot {
	units := make([]worldstate.Unit, 0, len(agents))
	phase := float64(tick) / 100
	for i, a := range agents {
		theta := phase + float64(i)*2*math.Pi/float64(len(agents))
		units = append(units, worldstate.Unit{
			Handle:   100 + a.ID,
			PlayerID: a.ID,
			Location: worldstate.Vec3{
				X: 500 * math.Cos(theta),
				Y: 500 * math.Sin(theta),
			},
		})
	}
	return worldstate.Snapshot{Units: units}
}
