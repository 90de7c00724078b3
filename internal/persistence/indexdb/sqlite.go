// Package indexdb maintains a queryable SQLite index of channel traffic.
// It is a secondary read model: the zstd transcript remains the source of
// truth, so writes are buffered and dropped under backpressure rather
// than ever stalling the channel loop.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"botlink.gg/internal/controller"
	"botlink.gg/internal/protocol"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqEntry reqKind = iota + 1
	reqRoster
)

type req struct {
	kind   reqKind
	entry  controller.TranscriptEntry
	roster []protocol.Player
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: bursty polling (many peers answering at once) must
		// not stall the controller loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			direction TEXT NOT NULL,
			tag TEXT NOT NULL,
			uid INTEGER NOT NULL,
			team INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_uid ON messages(uid, direction);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent_id, at);`,
		`CREATE TABLE IF NOT EXISTS acks (
			uid INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			at TEXT NOT NULL,
			PRIMARY KEY (uid, agent_id)
		);`,
		`CREATE TABLE IF NOT EXISTS roster (
			id INTEGER PRIMARY KEY,
			is_bot INTEGER NOT NULL,
			team_id INTEGER NOT NULL,
			hero TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Record implements controller.Sink.
func (s *SQLiteIndex) Record(e controller.TranscriptEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEntry, entry: e}:
	default:
		// Drop if the indexer falls behind; the transcript log remains
		// the source of truth.
	}
}

// UpsertRoster stores the one-shot roster message.
func (s *SQLiteIndex) UpsertRoster(players []protocol.Player) {
	if s == nil || s.closed.Load() || len(players) == 0 {
		return
	}
	select {
	case s.ch <- req{kind: reqRoster, roster: players}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertMessage, _ := s.db.Prepare(`INSERT INTO messages(at,direction,tag,uid,team,agent_id,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertAck, _ := s.db.Prepare(`INSERT OR REPLACE INTO acks(uid,agent_id,at) VALUES(?,?,?)`)
	insertRoster, _ := s.db.Prepare(`INSERT OR REPLACE INTO roster(id,is_bot,team_id,hero) VALUES(?,?,?,?)`)
	defer func() {
		if insertMessage != nil {
			_ = insertMessage.Close()
		}
		if insertAck != nil {
			_ = insertAck.Close()
		}
		if insertRoster != nil {
			_ = insertRoster.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqEntry:
			e := r.entry
			at := e.At.UTC().Format(time.RFC3339Nano)
			if insertMessage != nil {
				if _, err := tx.Stmt(insertMessage).Exec(at, e.Direction, e.Tag, int64(e.UID), e.Team, e.AgentID, e.Raw); err != nil {
					rollback()
					continue
				}
				opCount++
			}
			if e.Tag == protocol.TagAck && e.Direction == controller.DirRecv && insertAck != nil {
				if _, err := tx.Stmt(insertAck).Exec(int64(e.UID), e.AgentID, at); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqRoster:
			for _, pl := range r.roster {
				if insertRoster == nil {
					break
				}
				isBot := 0
				if pl.IsBot {
					isBot = 1
				}
				if _, err := tx.Stmt(insertRoster).Exec(pl.ID, isBot, pl.TeamID, pl.Hero); err != nil {
					rollback()
					break
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
