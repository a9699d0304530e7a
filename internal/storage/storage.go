package storage

import (
	"context"
	"time"

	"github.com/pantheonmod/pantheon/pkg/world"
)

// CooldownStore is the atomic check-then-act gate for prayer cooldowns.
// Two near-simultaneous prayers for the same (requester, deity, type)
// triple must never both claim a single window.
type CooldownStore interface {
	// Reserve claims the cooldown window for a triple. It returns false
	// without error while an earlier reservation is still live. A zero
	// window always succeeds and reserves nothing.
	Reserve(ctx context.Context, requesterID, deityID, prayerType string, window time.Duration) (bool, error)

	// Release frees a reservation early, e.g. when the provider call it
	// guarded never produced a response.
	Release(ctx context.Context, requesterID, deityID, prayerType string) error
}

// AuditOutcome classifies how an extracted action left the pipeline.
type AuditOutcome string

const (
	OutcomeDispatched AuditOutcome = "dispatched"
	OutcomeRejected   AuditOutcome = "rejected"
	OutcomeTruncated  AuditOutcome = "truncated"
)

// AuditEntry records one extracted action's fate. Rejected actions are
// dropped from execution but never from the audit trail.
type AuditEntry struct {
	InteractionID string       `json:"interaction_id"`
	RequesterID   string       `json:"requester_id"`
	DeityID       string       `json:"deity_id"`
	PrayerType    string       `json:"prayer_type"`
	Action        string       `json:"action"`
	Outcome       AuditOutcome `json:"outcome"`
	Reason        string       `json:"reason,omitempty"`
	At            time.Time    `json:"at"`
}

// AuditLog persists action audit entries.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// RelationshipWriter extends the read-only collaborator view with the
// mutations the host-side adapters need. The pipeline itself only ever
// reads.
type RelationshipWriter interface {
	world.RelationshipStore
	SetScore(ctx context.Context, requesterID, deityID string, score float64) error
	AddScore(ctx context.Context, requesterID, deityID string, delta float64) (float64, error)
	SetPatron(ctx context.Context, requesterID, deityID string) error
}

// Store bundles every persistence concern the server wires together.
type Store interface {
	RelationshipWriter
	CooldownStore
	AuditLog

	Ping(ctx context.Context) error
	Close() error
}
