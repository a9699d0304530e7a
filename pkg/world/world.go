// Package world declares the collaborator interfaces the prayer pipeline
// consumes. The host system implements them; the core never reaches into
// a host's internal representation.
package world

import (
	"context"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// SnapshotProvider supplies free-form environmental facts about a
// requester (location, status, nearby entities). Values are used verbatim
// in prompt context.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, requesterID string) (map[string]string, error)
}

// RelationshipStore is read-only access to the persistent relationship
// state between requesters and deities.
type RelationshipStore interface {
	// GetScore returns the continuous relationship score for a
	// (requester, deity) pair. Unknown pairs score zero.
	GetScore(ctx context.Context, requesterID, deityID string) (float64, error)

	// GetPatron returns the deity the requester is sworn to, or "" when
	// unsworn.
	GetPatron(ctx context.Context, requesterID string) (string, error)
}

// ActionExecutor performs the actual gameplay side effects. The pipeline
// batches all actions from one response together and never retries a
// failed batch; retry, if desired, belongs to the executor.
type ActionExecutor interface {
	// Execute dispatches one batch for one requester. The returned channel
	// resolves to whether the batch was accepted.
	Execute(ctx context.Context, batch []prayer.Action, requesterID string) <-chan bool
}
