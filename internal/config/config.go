// Package config loads the botlink runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"botlink.gg/internal/protocol"
)

type Config struct {
	// SendPath is the single slot the controller writes commands to and
	// every agent polls from.
	SendPath string `yaml:"send_path"`
	// RecvDir holds one reply slot per agent, recv_<id>.
	RecvDir string `yaml:"recv_dir"`

	TickRateHz int `yaml:"tick_rate_hz"`

	Agents           []AgentSpec `yaml:"agents"`
	FilterOwnedUnits bool        `yaml:"filter_owned_units"`

	TranscriptDir string `yaml:"transcript_dir"`
	IndexDBPath   string `yaml:"index_db_path"`
	DisableDB     bool   `yaml:"disable_db"`

	InspectAddr string `yaml:"inspect_addr"`
}

type AgentSpec struct {
	ID     int `yaml:"id"`
	TeamID int `yaml:"team_id"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("botlink.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("botlink.yaml: %w", err)
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		SendPath:   "ipc/send.lua",
		TickRateHz: 30,
		Agents: []AgentSpec{
			{ID: 0, TeamID: protocol.TeamRadiant},
			{ID: 1, TeamID: protocol.TeamRadiant},
			{ID: 2, TeamID: protocol.TeamRadiant},
			{ID: 3, TeamID: protocol.TeamRadiant},
			{ID: 4, TeamID: protocol.TeamRadiant},
			{ID: 5, TeamID: protocol.TeamDire},
			{ID: 6, TeamID: protocol.TeamDire},
			{ID: 7, TeamID: protocol.TeamDire},
			{ID: 8, TeamID: protocol.TeamDire},
			{ID: 9, TeamID: protocol.TeamDire},
		},
		FilterOwnedUnits: true,
		TranscriptDir:    "data/transcript",
		IndexDBPath:      "data/index.db",
		InspectAddr:      "127.0.0.1:7575",
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.TickRateHz > 240 {
		c.TickRateHz = 240
	}
	if strings.TrimSpace(c.RecvDir) == "" {
		c.RecvDir = filepath.Dir(c.SendPath)
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.SendPath) == "" {
		return fmt.Errorf("send_path must not be empty")
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("agents must not be empty")
	}
	seen := map[int]bool{}
	for i, a := range c.Agents {
		if a.ID < 0 {
			return fmt.Errorf("agents[%d] id must be >= 0", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id: %d", a.ID)
		}
		seen[a.ID] = true
		if a.TeamID != protocol.TeamRadiant && a.TeamID != protocol.TeamDire {
			return fmt.Errorf("agents[%d] team_id %d is not a playing team", i, a.TeamID)
		}
	}
	if strings.TrimSpace(c.TranscriptDir) == "" {
		return fmt.Errorf("transcript_dir must not be empty")
	}
	if !c.DisableDB && strings.TrimSpace(c.IndexDBPath) == "" {
		return fmt.Errorf("index_db_path must not be empty unless disable_db is set")
	}
	return nil
}

// RecvPath returns the reply slot path for one agent.
func (c Config) RecvPath(agentID int) string {
	return filepath.Join(c.RecvDir, fmt.Sprintf("recv_%d.txt", agentID))
}
