package deity

import (
	"fmt"
	"strings"
)

// GenerationParams are the model sampling parameters for a deity. Nil
// fields inherit the system default at resolution time, never at storage
// time.
type GenerationParams struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// JudgmentTier maps a relationship-score range to the action bundle a
// deity favors inside that range. Tiers inform the prompt; they are never
// executed verbatim.
type JudgmentTier struct {
	Name     string   `json:"name"`
	MinScore float64  `json:"min_score"`
	MaxScore float64  `json:"max_score"`
	Actions  []string `json:"actions,omitempty"`
}

// ProgressionStage is a named relationship-score threshold with an
// attached reward bundle. The highest threshold at or below the current
// score determines the active stage, regardless of declaration order.
type ProgressionStage struct {
	Name      string   `json:"name"`
	Threshold float64  `json:"threshold"`
	Rewards   []string `json:"rewards,omitempty"`
}

// PrayerConfig configures one prayer type for one deity. Pointer fields
// inherit the system default when absent.
type PrayerConfig struct {
	PromptTemplate   string         `json:"prompt_template,omitempty"`
	MaxActions       *int           `json:"max_actions,omitempty"`
	CooldownSeconds  *int           `json:"cooldown_seconds,omitempty"`
	MinReputation    *float64       `json:"min_reputation,omitempty"`
	AllowedVerbs     []string       `json:"allowed_verbs,omitempty"`
	JudgmentTiers    []JudgmentTier `json:"judgment_tiers,omitempty"`
	ReferenceActions []string       `json:"reference_actions,omitempty"`
}

// DeityConfig is the declarative configuration for one deity. The ID is
// globally unique and immutable after creation. Provider and Model may be
// empty; resolution falls back to the system default.
type DeityConfig struct {
	ID               string                  `json:"id"`
	Provider         string                  `json:"provider,omitempty"`
	Model            string                  `json:"model,omitempty"`
	Personality      string                  `json:"personality"`
	Rating           string                  `json:"rating,omitempty"`
	SafetyThresholds map[string]string       `json:"safety_thresholds,omitempty"`
	Generation       GenerationParams        `json:"generation,omitempty"`
	Prayers          map[string]PrayerConfig `json:"prayers,omitempty"`
	Allies           []string                `json:"allies,omitempty"`
	Rivals           []string                `json:"rivals,omitempty"`
	Stages           []ProgressionStage      `json:"stages,omitempty"`
}

// Definition is a raw deity definition as supplied by a declarative
// source. The source has already deserialized and key-normalized it; the
// store validates it during Load.
type Definition = DeityConfig

// Validate checks the invariants a definition must satisfy before it can
// join a config set.
func (d *DeityConfig) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("deity id is required")
	}
	for name, pc := range d.Prayers {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("deity %s: prayer type name cannot be empty", d.ID)
		}
		if pc.MaxActions != nil && *pc.MaxActions < 0 {
			return fmt.Errorf("deity %s: prayer %s: max_actions must be >= 0", d.ID, name)
		}
		if pc.CooldownSeconds != nil && *pc.CooldownSeconds < 0 {
			return fmt.Errorf("deity %s: prayer %s: cooldown_seconds must be >= 0", d.ID, name)
		}
	}
	for _, st := range d.Stages {
		if strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("deity %s: stage name cannot be empty", d.ID)
		}
	}
	return nil
}

// Alias tables collapse external key spellings to the one canonical
// field per concept, scoped to the nesting level where that concept
// lives. Applied once at the deserialization boundary; duplicate state
// is never carried through the core. Scoping matters: "min_score" is an
// alias only inside a prayer config, while judgment tiers use it as a
// canonical field.
var (
	deityAliases = map[string]string{
		"identifier":       "id",
		"deity_id":         "id",
		"ai_provider":      "provider",
		"llm_provider":     "provider",
		"model_name":       "model",
		"persona":          "personality",
		"base_personality": "personality",
		"content_rating":   "rating",
		"allied":           "allies",
		"allied_deities":   "allies",
		"opposing":         "rivals",
		"opposing_deities": "rivals",
		"prayer_types":     "prayers",
	}
	prayerAliases = map[string]string{
		"prompt":           "prompt_template",
		"base_prompt":      "prompt_template",
		"max_commands":     "max_actions",
		"cooldown":         "cooldown_seconds",
		"min_favor":        "min_reputation",
		"min_score":        "min_reputation",
		"allowed_commands": "allowed_verbs",
	}
	stageAliases = map[string]string{
		"required_favor":  "threshold",
		"reward_commands": "rewards",
	}
)

// NormalizeKeys rewrites alias spellings in a raw decoded definition to
// their canonical form. Each nesting level applies only its own alias
// table, so a canonical key of one level is never rewritten by an alias
// belonging to another. When both an alias and its canonical key are
// present, the canonical key wins.
func NormalizeKeys(raw map[string]any) map[string]any {
	return normalizeMap(raw, deityAliases)
}

func normalizeMap(raw map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		canonical, aliased := aliases[k]
		if !aliased {
			canonical = k
		}
		if _, exists := out[canonical]; exists && aliased {
			continue
		}
		out[canonical] = normalizeField(canonical, v)
	}
	return out
}

// normalizeField descends into the fields that carry an alias scope of
// their own. Prayer configs are keyed by the user-chosen prayer type
// name, which passes through untouched; everything else is kept as
// decoded.
func normalizeField(key string, v any) any {
	switch key {
	case "prayers":
		byType, ok := v.(map[string]any)
		if !ok {
			return v
		}
		out := make(map[string]any, len(byType))
		for name, pv := range byType {
			if pm, ok := pv.(map[string]any); ok {
				out[name] = normalizeMap(pm, prayerAliases)
			} else {
				out[name] = pv
			}
		}
		return out
	case "stages":
		return normalizeList(v, stageAliases)
	default:
		return v
	}
}

func normalizeList(v any, aliases map[string]string) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	for i, e := range list {
		if m, ok := e.(map[string]any); ok {
			list[i] = normalizeMap(m, aliases)
		}
	}
	return list
}

// ActiveStage returns the stage with the highest threshold at or below
// score, or nil when no stage is reached.
func (d *DeityConfig) ActiveStage(score float64) *ProgressionStage {
	var best *ProgressionStage
	for i := range d.Stages {
		st := &d.Stages[i]
		if st.Threshold > score {
			continue
		}
		if best == nil || st.Threshold > best.Threshold {
			best = st
		}
	}
	return best
}
