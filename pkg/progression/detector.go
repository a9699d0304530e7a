// Package progression turns a continuously-valued relationship score into
// discrete unlock/lock events against declared stage thresholds.
package progression

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/pantheonmod/pantheon/pkg/deity"
)

// Epsilon is the minimum score movement worth evaluating. Smaller changes
// raise no events and leave the stored value untouched.
const Epsilon = 0.001

const shardCount = 16

// EventType distinguishes upward from downward threshold crossings.
type EventType string

const (
	EventUnlock EventType = "unlock"
	EventLock   EventType = "lock"
)

// Event is one discrete progression change for a (requester, deity) pair.
type Event struct {
	Type        EventType `json:"type"`
	RequesterID string    `json:"requester_id"`
	DeityID     string    `json:"deity_id"`
	Stage       string    `json:"stage"`
	Threshold   float64   `json:"threshold"`
	Rewards     []string  `json:"rewards,omitempty"`
}

// StageSource looks up the declared stages for a deity. Both the
// event-driven path and the periodic sweep share it, so threshold logic
// can never diverge between the two.
type StageSource func(deityID string) []deity.ProgressionStage

type shard struct {
	mu   sync.Mutex
	last map[string]float64
}

// Detector maintains the last-observed score per (requester, deity) pair.
// The map is sharded so concurrent prayer paths and the periodic sweep
// never contend on a global lock.
type Detector struct {
	stages StageSource
	shards [shardCount]shard
}

func NewDetector(stages StageSource) *Detector {
	d := &Detector{stages: stages}
	for i := range d.shards {
		d.shards[i].last = make(map[string]float64)
	}
	return d
}

func (d *Detector) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &d.shards[h.Sum32()%shardCount]
}

// Check compares the current score against the last observed one and
// returns an event per crossed threshold: upward crossings ascending as
// unlocks, downward crossings descending as locks. The first observation
// of a pair seeds the entry without raising events; already-granted
// stages are the host's persistent state, not the detector's.
func (d *Detector) Check(requesterID, deityID string, current float64) []Event {
	key := requesterID + "\x00" + deityID
	sh := d.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	last, seen := sh.last[key]
	if !seen {
		sh.last[key] = current
		return nil
	}

	diff := current - last
	if diff < Epsilon && diff > -Epsilon {
		return nil
	}
	sh.last[key] = current

	stages := d.stages(deityID)
	if len(stages) == 0 {
		return nil
	}

	var events []Event
	if current > last {
		crossed := crossedStages(stages, func(th float64) bool {
			return last < th && th <= current
		})
		sort.Slice(crossed, func(i, j int) bool {
			return crossed[i].Threshold < crossed[j].Threshold
		})
		for _, st := range crossed {
			events = append(events, Event{
				Type:        EventUnlock,
				RequesterID: requesterID,
				DeityID:     deityID,
				Stage:       st.Name,
				Threshold:   st.Threshold,
				Rewards:     st.Rewards,
			})
		}
	} else {
		crossed := crossedStages(stages, func(th float64) bool {
			return last >= th && th > current
		})
		sort.Slice(crossed, func(i, j int) bool {
			return crossed[i].Threshold > crossed[j].Threshold
		})
		for _, st := range crossed {
			events = append(events, Event{
				Type:        EventLock,
				RequesterID: requesterID,
				DeityID:     deityID,
				Stage:       st.Name,
				Threshold:   st.Threshold,
				Rewards:     st.Rewards,
			})
		}
	}
	return events
}

func crossedStages(stages []deity.ProgressionStage, crossed func(float64) bool) []deity.ProgressionStage {
	var out []deity.ProgressionStage
	for _, st := range stages {
		if crossed(st.Threshold) {
			out = append(out, st)
		}
	}
	return out
}

// Forget prunes every tracked pair for a requester, e.g. on disconnect.
// The detector never infers absence on its own.
func (d *Detector) Forget(requesterID string) {
	prefix := requesterID + "\x00"
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mu.Lock()
		for key := range sh.last {
			if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
				delete(sh.last, key)
			}
		}
		sh.mu.Unlock()
	}
}

// TrackedPair identifies one observed (requester, deity) pair.
type TrackedPair struct {
	RequesterID string
	DeityID     string
}

// Tracked lists every pair the detector currently holds a last score for.
// The periodic sweep iterates this to re-check scores mutated outside the
// prayer path.
func (d *Detector) Tracked() []TrackedPair {
	var out []TrackedPair
	for i := range d.shards {
		sh := &d.shards[i]
		sh.mu.Lock()
		for key := range sh.last {
			for j := 0; j < len(key); j++ {
				if key[j] == 0 {
					out = append(out, TrackedPair{RequesterID: key[:j], DeityID: key[j+1:]})
					break
				}
			}
		}
		sh.mu.Unlock()
	}
	return out
}

// Seed records a pair without raising events, so a later Check has a
// baseline to compare against.
func (d *Detector) Seed(requesterID, deityID string, score float64) {
	key := requesterID + "\x00" + deityID
	sh := d.shardFor(key)
	sh.mu.Lock()
	if _, ok := sh.last[key]; !ok {
		sh.last[key] = score
	}
	sh.mu.Unlock()
}
