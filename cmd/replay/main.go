// Replay prints a recorded channel transcript, optionally filtered by
// tag, direction, agent or sequence id range.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"botlink.gg/internal/controller"
	"botlink.gg/internal/persistence/translog"
)

func main() {
	var (
		dir     = flag.String("dir", "./data/transcript", "transcript directory")
		tag     = flag.String("tag", "", "only entries with this tag (A, S, E, P, C)")
		dirFlag = flag.String("direction", "", "only this direction (send, recv)")
		agentID = flag.Int("agent", -1, "only entries for this agent id")
		fromUID = flag.Uint64("from_uid", 0, "only entries with uid >= this (0 = no lower bound)")
		toUID   = flag.Uint64("to_uid", 0, "only entries with uid <= this (0 = no upper bound)")
		asJSON  = flag.Bool("json", false, "print entries as JSON lines")
		stats   = flag.Bool("stats", false, "print per-tag counts instead of entries")
	)
	flag.Parse()

	entries, err := translog.ReadDir(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read transcript:", err)
		os.Exit(1)
	}

	counts := map[string]int{}
	matched := 0
	for _, e := range entries {
		if !match(e, *tag, *dirFlag, *agentID, *fromUID, *toUID) {
			continue
		}
		matched++
		counts[e.Tag]++
		if *stats {
			continue
		}
		if *asJSON {
			b, err := json.Marshal(e)
			if err != nil {
				continue
			}
			fmt.Println(string(b))
			continue
		}
		fmt.Printf("%s %-4s %s uid=%d team=%d agent=%d %s\n",
			e.At.Format("15:04:05.000"), e.Direction, e.Tag, e.UID, e.Team, e.AgentID, e.Raw)
	}

	if *stats {
		for tag, n := range counts {
			fmt.Printf("%s: %d\n", tag, n)
		}
	}
	fmt.Fprintf(os.Stderr, "%d/%d entries\n", matched, len(entries))
}

func match(e controller.TranscriptEntry, tag, direction string, agentID int, fromUID, toUID uint64) bool {
	if tag != "" && e.Tag != tag {
		return false
	}
	if direction != "" && e.Direction != direction {
		return false
	}
	if agentID >= 0 && e.AgentID != agentID {
		return false
	}
	if fromUID != 0 && e.UID < fromUID {
		return false
	}
	if toUID != 0 && e.UID > toUID {
		return false
	}
	return true
}
