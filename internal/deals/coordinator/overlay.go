package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// OverlayState is the lifecycle of an optimistic stage assignment.
type OverlayState int

const (
	// StatePending means the durable write is still in flight.
	StatePending OverlayState = iota
	// StateCommitted means the write succeeded; the entry lingers for a
	// short grace period so readers never observe a snap-back.
	StateCommitted
	// StateRolledBack means the write failed and the entry was discarded.
	StateRolledBack
)

func (s OverlayState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolledBack"
	default:
		return "unknown"
	}
}

// OverlayEntry is one deal's optimistic stage assignment. EnteredAt is the
// moment the transition was accepted, so readers see the dwell clock reset
// immediately instead of the durable timestamp of the previous stage.
type OverlayEntry struct {
	StageID   uuid.UUID
	EnteredAt time.Time
	State     OverlayState
	Seq       uint64
}

// OverlayStore holds at most one optimistic entry per deal. A newer request
// for the same deal replaces the entry (last writer wins); the superseded
// request's commit or rollback is then a no-op against the overlay.
type OverlayStore struct {
	mu      sync.Mutex
	seq     uint64
	entries map[uuid.UUID]OverlayEntry
	grace   time.Duration
}

// NewOverlayStore creates an overlay store. grace is how long a committed
// entry remains visible before it is cleared in favor of durable state.
func NewOverlayStore(grace time.Duration) *OverlayStore {
	return &OverlayStore{
		entries: make(map[uuid.UUID]OverlayEntry),
		grace:   grace,
	}
}

// Begin records a pending entry for the deal and returns its sequence
// number. Any existing entry for the deal is replaced.
func (o *OverlayStore) Begin(dealID, stageID uuid.UUID) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	o.entries[dealID] = OverlayEntry{
		StageID:   stageID,
		EnteredAt: time.Now().UTC(),
		State:     StatePending,
		Seq:       o.seq,
	}
	return o.seq
}

// Commit marks the entry committed and schedules its removal after the
// grace period. Does nothing if a newer request superseded this one.
func (o *OverlayStore) Commit(dealID uuid.UUID, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.entries[dealID]
	if !ok || entry.Seq != seq {
		return
	}
	entry.State = StateCommitted
	o.entries[dealID] = entry
	time.AfterFunc(o.grace, func() {
		o.clear(dealID, seq)
	})
}

// Rollback discards the entry. Does nothing if a newer request superseded
// this one, so the newer optimistic stage stays visible.
func (o *OverlayStore) Rollback(dealID uuid.UUID, seq uint64) {
	o.clear(dealID, seq)
}

// Get returns the deal's live overlay entry, if any.
func (o *OverlayStore) Get(dealID uuid.UUID) (OverlayEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.entries[dealID]
	return entry, ok
}

func (o *OverlayStore) clear(dealID uuid.UUID, seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if entry, ok := o.entries[dealID]; ok && entry.Seq == seq {
		delete(o.entries, dealID)
	}
}
