package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"botlink.gg/internal/controller"
	"botlink.gg/internal/protocol"
)

func TestSQLiteIndex_RecordMessageAndAck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}

	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	idx.Record(controller.TranscriptEntry{
		At:        at,
		Direction: controller.DirSend,
		Tag:       protocol.TagCommand,
		UID:       1,
		Raw:       `{"uid":1,"2":{"0":{}}}`,
	})
	idx.Record(controller.TranscriptEntry{
		At:        at.Add(time.Second),
		Direction: controller.DirRecv,
		Tag:       protocol.TagAck,
		UID:       1,
		Team:      protocol.TeamRadiant,
		AgentID:   0,
		Raw:       `{"A":1}`,
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var messages int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&messages); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if messages != 2 {
		t.Fatalf("messages = %d, want 2", messages)
	}

	var agentID int64
	row := db.QueryRow(`SELECT agent_id FROM acks WHERE uid=1`)
	if err := row.Scan(&agentID); err != nil {
		t.Fatalf("Scan ack: %v", err)
	}
	if agentID != 0 {
		t.Fatalf("ack agent_id = %d, want 0", agentID)
	}
}

func TestSQLiteIndex_UpsertRoster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	idx.UpsertRoster([]protocol.Player{
		{ID: 0, IsBot: true, TeamID: protocol.TeamRadiant, Hero: "npc_dota_hero_antimage"},
		{ID: 5, IsBot: false, TeamID: protocol.TeamDire, Hero: "npc_dota_hero_drow_ranger"},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var (
		isBot int
		hero  string
	)
	row := db.QueryRow(`SELECT is_bot,hero FROM roster WHERE id=5`)
	if err := row.Scan(&isBot, &hero); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if isBot != 0 || hero != "npc_dota_hero_drow_ranger" {
		t.Fatalf("roster row = (%d, %q)", isBot, hero)
	}
}

func TestSQLiteIndex_RecordAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	idx.Record(controller.TranscriptEntry{Direction: controller.DirSend, Tag: protocol.TagCommand, UID: 9})
	idx.UpsertRoster([]protocol.Player{{ID: 1}})
}
