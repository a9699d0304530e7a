package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pantheonmod/pantheon/pkg/progression"
)

// sweepParallelism bounds concurrent score reads against the
// relationship store during one sweep.
const sweepParallelism = 4

// SweepProgression re-evaluates every tracked (requester, deity) pair
// against the current relationship scores. It catches score changes that
// happen outside the prayer path, e.g. quest rewards written directly to
// the store. Returns all events raised during the sweep.
func (e *Engine) SweepProgression(ctx context.Context) ([]progression.Event, error) {
	pairs := e.detector.Tracked()
	if len(pairs) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	var events []progression.Event

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepParallelism)
	for _, pair := range pairs {
		g.Go(func() error {
			score, err := e.relationships.GetScore(ctx, pair.RequesterID, pair.DeityID)
			if err != nil {
				// Skip the pair rather than fail the sweep; a transient
				// store error must not abort the other evaluations.
				e.logger.Warn("sweep skipped pair",
					"requester", pair.RequesterID, "deity", pair.DeityID, "error", err)
				return nil
			}
			evs := e.CheckProgression(pair.RequesterID, pair.DeityID, score)
			if len(evs) > 0 {
				mu.Lock()
				events = append(events, evs...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return events, err
	}
	e.logger.Debug("progression sweep complete", "pairs", len(pairs), "events", len(events))
	return events, nil
}
