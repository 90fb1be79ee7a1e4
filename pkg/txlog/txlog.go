// Package txlog records coordinator decisions before they are broadcast,
// so the outcome of a transaction can be served to participants that were
// left prepared.
package txlog

import (
	"context"
	"sync"
	"time"

	"github.com/farbod-bigdeli/banking-2pc/pkg/protocol"
)

// Entry is one recorded decision
type Entry struct {
	TransactionID string
	Decision      protocol.Decision
	Reason        string
	DecidedAt     time.Time
}

// Log persists the coordinator's per-transaction decision. Record must be
// idempotent: the first decision recorded for a transaction wins.
type Log interface {
	Record(ctx context.Context, txID string, decision protocol.Decision, reason string) error
	Lookup(ctx context.Context, txID string) (Entry, bool, error)
}

// MemoryLog keeps decisions in process memory
type MemoryLog struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryLog creates an empty in-memory decision log
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string]Entry)}
}

// Record stores the decision unless one already exists for the transaction
func (l *MemoryLog) Record(_ context.Context, txID string, decision protocol.Decision, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[txID]; ok {
		return nil
	}

	l.entries[txID] = Entry{
		TransactionID: txID,
		Decision:      decision,
		Reason:        reason,
		DecidedAt:     time.Now().UTC(),
	}
	return nil
}

// Lookup returns the recorded decision for a transaction, if any
func (l *MemoryLog) Lookup(_ context.Context, txID string) (Entry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[txID]
	return entry, ok, nil
}
