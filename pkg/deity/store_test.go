package deity

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func sylvanDefinition() Definition {
	return Definition{
		ID:          "grove:sylvan",
		Provider:    "anthropic",
		Model:       "claude",
		Personality: "An ancient forest spirit, patient and watchful.",
		Prayers: map[string]PrayerConfig{
			"blessing": {
				PromptTemplate:  "A follower seeks your blessing.",
				MaxActions:      intPtr(2),
				CooldownSeconds: intPtr(600),
				MinReputation:   floatPtr(0),
				AllowedVerbs:    []string{"effect", "give", "heal"},
			},
		},
		Stages: []ProgressionStage{
			{Name: "initiate", Threshold: 10},
			{Name: "adept", Threshold: 50},
			{Name: "champion", Threshold: 90},
		},
	}
}

func TestStore_Load_PartialSuccess(t *testing.T) {
	s := NewStore(testLogger())

	res := s.Load([]Definition{
		sylvanDefinition(),
		{ID: ""}, // malformed: missing id
		{ID: "ember:ash", Personality: "A smoldering wrath."},
		{ID: "grove:sylvan", Personality: "duplicate"}, // duplicate id
	})

	assert.Equal(t, 2, res.Loaded)
	assert.Equal(t, 2, res.Errors)
	require.NotNil(t, s.Get("grove:sylvan"))
	require.NotNil(t, s.Get("ember:ash"))
	assert.Nil(t, s.Get("missing:deity"))
}

func TestStore_Load_InvalidPrayerConfig(t *testing.T) {
	s := NewStore(testLogger())
	res := s.Load([]Definition{{
		ID:          "tide:brine",
		Personality: "salt",
		Prayers: map[string]PrayerConfig{
			"guidance": {MaxActions: intPtr(-1)},
		},
	}})
	assert.Equal(t, 0, res.Loaded)
	assert.Equal(t, 1, res.Errors)
}

func TestStore_Effective_Layering(t *testing.T) {
	s := NewStore(testLogger())
	s.Load([]Definition{sylvanDefinition()})

	// Declarative layer beats system default.
	eff := s.Effective("grove:sylvan", "blessing")
	assert.Equal(t, 2, eff.MaxActions)
	assert.Equal(t, 600*time.Second, eff.Cooldown)
	assert.Equal(t, "anthropic", eff.Provider)

	// Override layer beats declarative.
	s.SetOverride("grove:sylvan", "blessing", FieldMaxActions, 5)
	eff = s.Effective("grove:sylvan", "blessing")
	assert.Equal(t, 5, eff.MaxActions)

	// Removing the override falls back to the declarative value.
	s.ClearOverride("grove:sylvan", "blessing", FieldMaxActions)
	eff = s.Effective("grove:sylvan", "blessing")
	assert.Equal(t, 2, eff.MaxActions)

	// Unconfigured field falls through to the system default.
	assert.Equal(t, Defaults().Temperature, eff.Temperature)
}

func TestStore_Effective_TotalForUnknownTuples(t *testing.T) {
	s := NewStore(testLogger())
	def := Defaults()

	for _, tc := range [][2]string{
		{"missing:deity", "blessing"},
		{"grove:sylvan", "unknown-type"},
		{"", ""},
	} {
		eff := s.Effective(tc[0], tc[1])
		assert.Equal(t, def.MaxActions, eff.MaxActions)
		assert.Equal(t, def.Cooldown, eff.Cooldown)
		assert.Equal(t, def.Timeout, eff.Timeout)
	}
}

func TestStore_Effective_BaseTimeout(t *testing.T) {
	s := NewStore(testLogger())
	s.Load([]Definition{sylvanDefinition()})

	assert.Equal(t, Defaults().Timeout, s.Effective("grove:sylvan", "blessing").Timeout)

	s.SetBaseTimeout(10 * time.Second)
	assert.Equal(t, 10*time.Second, s.Effective("grove:sylvan", "blessing").Timeout)
	// Runtime overrides still win over the deployment default.
	s.SetOverride("grove:sylvan", "blessing", FieldTimeout, 5)
	assert.Equal(t, 5*time.Second, s.Effective("grove:sylvan", "blessing").Timeout)
}

func TestStore_Effective_OverrideSurvivesReload(t *testing.T) {
	s := NewStore(testLogger())
	s.Load([]Definition{sylvanDefinition()})
	s.SetOverride("grove:sylvan", "blessing", FieldProvider, "ollama")

	s.Load([]Definition{sylvanDefinition()})
	assert.Equal(t, "ollama", s.Effective("grove:sylvan", "blessing").Provider)
}

func TestStore_Load_AtomicVisibility(t *testing.T) {
	s := NewStore(testLogger())

	batch := func(n int) []Definition {
		defs := make([]Definition, 0, 10)
		for i := 0; i < 10; i++ {
			defs = append(defs, Definition{
				ID:          fmt.Sprintf("batch%d:deity%d", n, i),
				Personality: "p",
			})
		}
		return defs
	}
	s.Load(batch(0))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			set := s.Snapshot()
			// Every snapshot must contain exactly one full batch, never a mix.
			require.Equal(t, 10, set.Len())
			ids := set.IDs()
			prefix := ids[0][:6] // "batchN"
			for _, id := range ids {
				require.Equal(t, prefix, id[:6])
			}
		}
	}()

	for n := 1; n <= 50; n++ {
		s.Load(batch(n))
	}
	close(done)
	wg.Wait()
}

func TestStore_Load_LinkRetryThenDrop(t *testing.T) {
	s := NewStore(testLogger())

	// First load references a deity that does not exist yet.
	def := sylvanDefinition()
	def.Allies = []string{"ember:ash"}
	def.Rivals = []string{"void:hollow"}
	s.Load([]Definition{def})

	got := s.Get("grove:sylvan")
	assert.Empty(t, got.Allies)
	assert.Empty(t, got.Rivals)

	// Second load supplies the ally target: the queued link resolves.
	// The rival target is still missing and is dropped after this one retry.
	s.Load([]Definition{
		sylvanDefinition(),
		{ID: "ember:ash", Personality: "wrath"},
	})
	got = s.Get("grove:sylvan")
	assert.Equal(t, []string{"ember:ash"}, got.Allies)
	assert.Empty(t, got.Rivals)

	// Third load with the rival present: the link was already dropped.
	s.Load([]Definition{
		sylvanDefinition(),
		{ID: "void:hollow", Personality: "nothing"},
	})
	assert.Empty(t, s.Get("grove:sylvan").Rivals)
}

func TestStore_Load_LinksWithinOneBatch(t *testing.T) {
	s := NewStore(testLogger())
	def := sylvanDefinition()
	def.Allies = []string{"ember:ash"}
	s.Load([]Definition{
		def,
		{ID: "ember:ash", Personality: "wrath"},
	})
	assert.Equal(t, []string{"ember:ash"}, s.Get("grove:sylvan").Allies)
}

func TestStore_Load_DoesNotMutateInput(t *testing.T) {
	s := NewStore(testLogger())
	def := sylvanDefinition()
	def.Allies = []string{"void:hollow", "ember:ash"}

	s.Load([]Definition{
		def,
		{ID: "ember:ash", Personality: "wrath"},
	})

	// The store compacts unresolved links in its own copy; the caller's
	// definition keeps its original refs.
	assert.Equal(t, []string{"void:hollow", "ember:ash"}, def.Allies)
	assert.Equal(t, []string{"ember:ash"}, s.Get("grove:sylvan").Allies)
}

func TestNormalizeKeys(t *testing.T) {
	raw := map[string]any{
		"identifier":  "grove:sylvan",
		"ai_provider": "anthropic",
		"persona":     "forest spirit",
		"prayer_types": map[string]any{
			"blessing": map[string]any{
				"max_commands": 2,
				"cooldown":     600,
				"min_favor":    0.0,
			},
		},
	}

	norm := NormalizeKeys(raw)
	assert.Equal(t, "grove:sylvan", norm["id"])
	assert.Equal(t, "anthropic", norm["provider"])
	assert.Equal(t, "forest spirit", norm["personality"])

	prayers := norm["prayers"].(map[string]any)
	blessing := prayers["blessing"].(map[string]any)
	assert.Equal(t, 2, blessing["max_actions"])
	assert.Equal(t, 600, blessing["cooldown_seconds"])
}

func TestNormalizeKeys_ScopedAliases(t *testing.T) {
	raw := map[string]any{
		"id": "grove:sylvan",
		"prayers": map[string]any{
			"judgment": map[string]any{
				"min_score": 25.0,
				"judgment_tiers": []any{
					map[string]any{"name": "friendly", "min_score": 10.0, "max_score": 50.0},
				},
			},
		},
		"stages": []any{
			map[string]any{"name": "initiate", "required_favor": 10.0, "reward_commands": []any{"give @p bread 1"}},
		},
	}

	norm := NormalizeKeys(raw)
	judgment := norm["prayers"].(map[string]any)["judgment"].(map[string]any)
	assert.Equal(t, 25.0, judgment["min_reputation"])

	// Tier fields keep their canonical spelling; the prayer-level alias
	// must not reach into them.
	tier := judgment["judgment_tiers"].([]any)[0].(map[string]any)
	assert.Equal(t, 10.0, tier["min_score"])
	assert.Equal(t, 50.0, tier["max_score"])

	stage := norm["stages"].([]any)[0].(map[string]any)
	assert.Equal(t, 10.0, stage["threshold"])
	assert.Equal(t, []any{"give @p bread 1"}, stage["rewards"])
}

func TestNormalizeKeys_CanonicalWins(t *testing.T) {
	norm := NormalizeKeys(map[string]any{
		"id":         "a",
		"identifier": "b",
	})
	assert.Equal(t, "a", norm["id"])
}

func TestActiveStage(t *testing.T) {
	d := sylvanDefinition()
	assert.Nil(t, d.ActiveStage(5))
	assert.Equal(t, "initiate", d.ActiveStage(10).Name)
	assert.Equal(t, "adept", d.ActiveStage(89.9).Name)
	assert.Equal(t, "champion", d.ActiveStage(400).Name)
}
