package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Deduper rejects immediate re-execution of identical code within a
// session. It remembers only the most recent code hash per session:
// submitting A, then B, then A again runs all three.
type Deduper struct {
	mu   sync.Mutex
	last map[string]string // session -> hash of last executed code
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{last: make(map[string]string)}
}

// CheckAndRecord reports whether code is identical to the previous
// submission for the session, and records it as the new most recent
// submission. The check and the record are one atomic step.
func (d *Deduper) CheckAndRecord(session, code string) bool {
	hash := hashCode(code)

	d.mu.Lock()
	defer d.mu.Unlock()

	dup := d.last[session] == hash
	d.last[session] = hash
	return dup
}

// Forget drops the remembered hash for a session.
func (d *Deduper) Forget(session string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.last, session)
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
