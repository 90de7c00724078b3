package mailbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPoll_MissingMediumIsNoMessage(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing", "ipc.txt"))
	if text, ok := m.Poll(); ok {
		t.Fatalf("Poll on missing file = (%q, true), want no message", text)
	}
}

func TestEmitPoll_LastWriteWins(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "ipc.txt"))

	if err := m.Emit("first"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := m.Emit("second"); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	text, ok := m.Poll()
	if !ok || text != "second" {
		t.Fatalf("Poll = (%q, %v), want (second, true)", text, ok)
	}

	// Polling again re-reads the same slot; dedup is the sequencer's job.
	text, ok = m.Poll()
	if !ok || text != "second" {
		t.Fatalf("second Poll = (%q, %v), want (second, true)", text, ok)
	}
}

func TestEmit_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "ipc.txt")
	m := New(path)
	if err := m.Emit("payload"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat after Emit: %v", err)
	}
}

func TestEmit_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	m := New(filepath.Join(dir, "ipc.txt"))
	if err := m.Emit("payload"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(ents) != 1 || ents[0].Name() != "ipc.txt" {
		t.Fatalf("unexpected dir contents: %v", ents)
	}
}

func TestClear(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "ipc.txt"))
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
	if err := m.Emit("payload"); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := m.Poll(); ok {
		t.Fatalf("Poll after Clear returned a message")
	}
}

func TestEmptyFileIsNoMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	m := New(path)
	if text, ok := m.Poll(); ok {
		t.Fatalf("Poll on empty file = (%q, true), want no message", text)
	}
}
