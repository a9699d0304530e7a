package progression

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pantheonmod/pantheon/pkg/deity"
)

func sylvanStages(deityID string) []deity.ProgressionStage {
	if deityID != "grove:sylvan" {
		return nil
	}
	// Deliberately out of threshold order: stages are compared, not
	// ordered by declaration.
	return []deity.ProgressionStage{
		{Name: "adept", Threshold: 50, Rewards: []string{"unlock guidance"}},
		{Name: "initiate", Threshold: 10},
		{Name: "champion", Threshold: 90, Rewards: []string{"unlock boon"}},
	}
}

func TestDetector_MonotonicUnlocks(t *testing.T) {
	d := NewDetector(sylvanStages)

	var events []Event
	for _, score := range []float64{5, 12, 30, 55, 91, 100} {
		events = append(events, d.Check("alice", "grove:sylvan", score)...)
	}

	require.Len(t, events, 3)
	assert.Equal(t, "initiate", events[0].Stage)
	assert.Equal(t, "adept", events[1].Stage)
	assert.Equal(t, "champion", events[2].Stage)
	for _, ev := range events {
		assert.Equal(t, EventUnlock, ev.Type)
	}
}

func TestDetector_MultipleCrossingsInOneCheck(t *testing.T) {
	d := NewDetector(sylvanStages)
	d.Check("alice", "grove:sylvan", 0) // seed

	// One large grant crossing all three thresholds: ascending unlocks.
	events := d.Check("alice", "grove:sylvan", 95)
	require.Len(t, events, 3)
	assert.Equal(t, []float64{10, 50, 90},
		[]float64{events[0].Threshold, events[1].Threshold, events[2].Threshold})

	// One large penalty crossing all three: descending locks.
	events = d.Check("alice", "grove:sylvan", 2)
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, EventLock, ev.Type)
	}
	assert.Equal(t, []float64{90, 50, 10},
		[]float64{events[0].Threshold, events[1].Threshold, events[2].Threshold})
}

func TestDetector_ExactThresholdBoundary(t *testing.T) {
	d := NewDetector(sylvanStages)
	d.Check("alice", "grove:sylvan", 9)

	// last < threshold <= current: landing exactly on 10 unlocks.
	events := d.Check("alice", "grove:sylvan", 10)
	require.Len(t, events, 1)
	assert.Equal(t, "initiate", events[0].Stage)

	// last >= threshold > current: dropping just below 10 locks.
	events = d.Check("alice", "grove:sylvan", 9.5)
	require.Len(t, events, 1)
	assert.Equal(t, EventLock, events[0].Type)
}

func TestDetector_EpsilonChurn(t *testing.T) {
	d := NewDetector(sylvanStages)
	d.Check("alice", "grove:sylvan", 9.9995)

	// Sub-epsilon drift neither raises events nor moves the baseline.
	assert.Empty(t, d.Check("alice", "grove:sylvan", 9.9999))
	assert.Empty(t, d.Check("alice", "grove:sylvan", 9.9996))

	// The accumulated move past the threshold still registers against the
	// original baseline.
	events := d.Check("alice", "grove:sylvan", 10.5)
	require.Len(t, events, 1)
	assert.Equal(t, "initiate", events[0].Stage)
}

func TestDetector_FirstObservationSeedsSilently(t *testing.T) {
	d := NewDetector(sylvanStages)
	assert.Empty(t, d.Check("veteran", "grove:sylvan", 75))
	// Baseline was seeded at 75: the next crossing starts from there.
	events := d.Check("veteran", "grove:sylvan", 92)
	require.Len(t, events, 1)
	assert.Equal(t, "champion", events[0].Stage)
}

func TestDetector_UnknownDeityHasNoStages(t *testing.T) {
	d := NewDetector(sylvanStages)
	d.Check("alice", "void:hollow", 0)
	assert.Empty(t, d.Check("alice", "void:hollow", 1000))
}

func TestDetector_Forget(t *testing.T) {
	d := NewDetector(sylvanStages)
	d.Check("alice", "grove:sylvan", 5)
	d.Check("bob", "grove:sylvan", 5)

	d.Forget("alice")

	assert.Equal(t, []TrackedPair{{RequesterID: "bob", DeityID: "grove:sylvan"}}, d.Tracked())
	// Alice is back to first-observation behavior.
	assert.Empty(t, d.Check("alice", "grove:sylvan", 95))
}

func TestDetector_RewardsCarried(t *testing.T) {
	d := NewDetector(sylvanStages)
	d.Check("alice", "grove:sylvan", 40)
	events := d.Check("alice", "grove:sylvan", 60)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"unlock guidance"}, events[0].Rewards)
}

func TestDetector_ConcurrentChecks(t *testing.T) {
	d := NewDetector(sylvanStages)

	var wg sync.WaitGroup
	var mu sync.Mutex
	unlocks := make(map[string]int)

	for i := 0; i < 32; i++ {
		requester := fmt.Sprintf("requester-%d", i)
		d.Check(requester, "grove:sylvan", 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for score := 1.0; score <= 100; score++ {
				for _, ev := range d.Check(requester, "grove:sylvan", score) {
					mu.Lock()
					unlocks[ev.RequesterID]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, unlocks, 32)
	for requester, n := range unlocks {
		assert.Equal(t, 3, n, "requester %s", requester)
	}
}
