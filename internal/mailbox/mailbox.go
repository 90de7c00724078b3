// Package mailbox implements the channel transport: a single-slot,
// last-write-wins mailbox polled by one reader and overwritten by one
// writer. The file backing is the default medium; anything satisfying
// Transport can replace it without touching the codec or sequencing layers.
package mailbox

import (
	"os"
	"path/filepath"
)

// Transport is the polling primitive the agent loop and the controller
// share. Poll must return immediately; the host tick cannot be kept
// waiting. Delivery guarantee is "most recent write wins" only; the
// sequencing layer compensates for duplicate and lost reads.
type Transport interface {
	// Poll reads whatever the last-written message is. A missing or
	// unreadable medium is the steady-state "no message" condition,
	// never an error.
	Poll() (string, bool)

	// Emit overwrites any previous unread outbound content.
	Emit(text string) error
}

// Mailbox is a file-backed Transport. Writes go through a temp file and a
// rename so a racing reader observes either the old or the new content,
// never a torn write.
type Mailbox struct {
	path string
}

func New(path string) *Mailbox { return &Mailbox{path: path} }

func (m *Mailbox) Path() string { return m.path }

func (m *Mailbox) Poll() (string, bool) {
	b, err := os.ReadFile(m.path)
	if err != nil || len(b) == 0 {
		return "", false
	}
	return string(b), true
}

func (m *Mailbox) Emit(text string) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := m.path + "_tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

// Clear removes any pending message so a fresh run does not pick up
// garbage from the previous one. Missing medium is fine.
func (m *Mailbox) Clear() error {
	err := os.Remove(m.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
