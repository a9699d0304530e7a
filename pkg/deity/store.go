package deity

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Field names a single overridable configuration value for the runtime
// override layer.
type Field string

const (
	FieldProvider       Field = "provider"
	FieldModel          Field = "model"
	FieldPersonality    Field = "personality"
	FieldPromptTemplate Field = "prompt_template"
	FieldTemperature    Field = "temperature"
	FieldTopK           Field = "top_k"
	FieldTopP           Field = "top_p"
	FieldMaxTokens      Field = "max_tokens"
	FieldMaxActions     Field = "max_actions"
	FieldCooldown       Field = "cooldown_seconds"
	FieldMinReputation  Field = "min_reputation"
	FieldAllowedVerbs   Field = "allowed_verbs"
	FieldTimeout        Field = "timeout_seconds"
)

// Effective is the resolved configuration for one (deity, prayerType)
// tuple: hard system defaults overlaid by the declarative config overlaid
// by the runtime override layer. It is a resolution, not a stored entity.
type Effective struct {
	DeityID        string             `json:"deity_id"`
	PrayerType     string             `json:"prayer_type"`
	Provider       string             `json:"provider"`
	Model          string             `json:"model"`
	Personality    string             `json:"personality"`
	Rating         string             `json:"rating"`
	PromptTemplate string             `json:"prompt_template"`
	Temperature    float64            `json:"temperature"`
	TopK           int                `json:"top_k"`
	TopP           float64            `json:"top_p"`
	MaxTokens      int                `json:"max_tokens"`
	MaxActions     int                `json:"max_actions"`
	Cooldown       time.Duration      `json:"cooldown"`
	MinReputation  float64            `json:"min_reputation"`
	AllowedVerbs   []string           `json:"allowed_verbs"`
	Timeout        time.Duration      `json:"timeout"`
	JudgmentTiers  []JudgmentTier     `json:"judgment_tiers,omitempty"`
	Stages         []ProgressionStage `json:"stages,omitempty"`
	Allies         []string           `json:"allies,omitempty"`
	Rivals         []string           `json:"rivals,omitempty"`
}

// Defaults returns the hard-coded system default layer.
func Defaults() Effective {
	return Effective{
		Temperature:   0.8,
		TopK:          40,
		TopP:          0.95,
		MaxTokens:     1024,
		MaxActions:    3,
		Cooldown:      60 * time.Second,
		MinReputation: 0,
		Timeout:       30 * time.Second,
	}
}

// Set is one immutable batch of deity configurations. Readers holding a
// Set keep observing it unchanged while a reload builds its replacement.
type Set struct {
	deities map[string]*DeityConfig
}

// Get returns the config for a deity, or nil when unknown.
func (s *Set) Get(deityID string) *DeityConfig {
	if s == nil {
		return nil
	}
	return s.deities[deityID]
}

// IDs returns the identifiers in the set, unordered.
func (s *Set) IDs() []string {
	out := make([]string, 0, len(s.deities))
	for id := range s.deities {
		out = append(out, id)
	}
	return out
}

func (s *Set) Len() int { return len(s.deities) }

// LoadResult reports a batch load: loaded counts accepted definitions,
// errors counts skipped ones.
type LoadResult struct {
	Loaded int `json:"loaded"`
	Errors int `json:"errors"`
}

type pendingLink struct {
	from string
	to   string
	kind string // "ally" or "rival"
}

// Store holds the current config set behind an atomic pointer so reads
// never block on a reload, plus the runtime override layer.
type Store struct {
	snapshot atomic.Pointer[Set]
	logger   *slog.Logger

	loadMu  sync.Mutex // serializes Load and pending-link bookkeeping
	pending []pendingLink

	ovMu      sync.RWMutex
	overrides map[string]map[Field]any // key: deityID + "\x00" + prayerType

	baseTimeout atomic.Int64 // deployment-level default, nanoseconds
}

// NewStore creates an empty config store.
func NewStore(logger *slog.Logger) *Store {
	s := &Store{
		logger:    logger,
		overrides: make(map[string]map[Field]any),
	}
	s.snapshot.Store(&Set{deities: map[string]*DeityConfig{}})
	return s
}

// SetBaseTimeout replaces the system default provider timeout for this
// store. Declarative config and runtime overrides still win per tuple.
func (s *Store) SetBaseTimeout(d time.Duration) {
	s.baseTimeout.Store(int64(d))
}

// Load parses a batch of raw definitions into a new immutable set and
// swaps it in atomically. A malformed definition is logged, counted and
// skipped; it never fails the batch. Ally/rival references to deities not
// present in the batch are queued and retried on the next Load, then
// dropped with a diagnostic.
func (s *Store) Load(raw []Definition) LoadResult {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	var res LoadResult
	deities := make(map[string]*DeityConfig, len(raw))
	var unresolved []pendingLink

	for i := range raw {
		def := raw[i]
		if err := def.Validate(); err != nil {
			s.logger.Warn("skipping malformed deity definition", "error", err)
			res.Errors++
			continue
		}
		if _, dup := deities[def.ID]; dup {
			s.logger.Warn("skipping duplicate deity definition", "deity", def.ID)
			res.Errors++
			continue
		}
		deities[def.ID] = &def
		res.Loaded++
	}

	// Link pass: relationships may reference deities that arrived in the
	// same batch, so resolve only after all definitions are parsed.
	for _, d := range deities {
		d.Allies, unresolved = resolveLinks(deities, d.ID, "ally", d.Allies, unresolved)
		d.Rivals, unresolved = resolveLinks(deities, d.ID, "rival", d.Rivals, unresolved)
	}

	// Retry pass for links queued by the previous load. One retry only.
	for _, link := range s.pending {
		from, okFrom := deities[link.from]
		if _, okTo := deities[link.to]; okFrom && okTo {
			switch link.kind {
			case "ally":
				from.Allies = appendUnique(from.Allies, link.to)
			case "rival":
				from.Rivals = appendUnique(from.Rivals, link.to)
			}
			continue
		}
		s.logger.Warn("dropping unresolved deity link",
			"from", link.from, "to", link.to, "kind", link.kind)
	}
	s.pending = unresolved

	s.snapshot.Store(&Set{deities: deities})
	s.logger.Info("deity config set replaced", "loaded", res.Loaded, "errors", res.Errors)
	return res
}

// resolveLinks keeps the refs that name a known deity and queues the
// rest for the next load. The result is a fresh slice; the input, which
// belongs to the caller's definition, is never written to.
func resolveLinks(deities map[string]*DeityConfig, from, kind string, refs []string, pending []pendingLink) ([]string, []pendingLink) {
	resolved := make([]string, 0, len(refs))
	for _, to := range refs {
		if _, ok := deities[to]; ok {
			resolved = append(resolved, to)
			continue
		}
		pending = append(pending, pendingLink{from: from, to: to, kind: kind})
	}
	return resolved, pending
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

// Snapshot returns the current immutable config set.
func (s *Store) Snapshot() *Set {
	return s.snapshot.Load()
}

// Get returns the config for a deity from the current set, or nil.
func (s *Store) Get(deityID string) *DeityConfig {
	return s.snapshot.Load().Get(deityID)
}

// Effective resolves the three configuration layers for one
// (deity, prayerType) tuple. It is pure, total and safe to call
// concurrently with Load: unknown deities or prayer types simply fall
// through to the system defaults.
func (s *Store) Effective(deityID, prayerType string) Effective {
	eff := Defaults()
	eff.DeityID = deityID
	eff.PrayerType = prayerType
	if base := s.baseTimeout.Load(); base > 0 {
		eff.Timeout = time.Duration(base)
	}

	if d := s.Get(deityID); d != nil {
		if d.Provider != "" {
			eff.Provider = d.Provider
		}
		if d.Model != "" {
			eff.Model = d.Model
		}
		eff.Personality = d.Personality
		eff.Rating = d.Rating
		eff.Stages = d.Stages
		eff.Allies = d.Allies
		eff.Rivals = d.Rivals
		if d.Generation.Temperature != nil {
			eff.Temperature = *d.Generation.Temperature
		}
		if d.Generation.TopK != nil {
			eff.TopK = *d.Generation.TopK
		}
		if d.Generation.TopP != nil {
			eff.TopP = *d.Generation.TopP
		}
		if d.Generation.MaxTokens != nil {
			eff.MaxTokens = *d.Generation.MaxTokens
		}
		if pc, ok := d.Prayers[prayerType]; ok {
			if pc.PromptTemplate != "" {
				eff.PromptTemplate = pc.PromptTemplate
			}
			if pc.MaxActions != nil {
				eff.MaxActions = *pc.MaxActions
			}
			if pc.CooldownSeconds != nil {
				eff.Cooldown = time.Duration(*pc.CooldownSeconds) * time.Second
			}
			if pc.MinReputation != nil {
				eff.MinReputation = *pc.MinReputation
			}
			if len(pc.AllowedVerbs) > 0 {
				eff.AllowedVerbs = pc.AllowedVerbs
			}
			eff.JudgmentTiers = pc.JudgmentTiers
		}
	}

	s.ovMu.RLock()
	ov := s.overrides[overrideKey(deityID, prayerType)]
	for f, v := range ov {
		applyOverride(&eff, f, v)
	}
	s.ovMu.RUnlock()

	return eff
}

// SetOverride installs a runtime override for one field of one
// (deity, prayerType) tuple. Overrides survive config reloads.
func (s *Store) SetOverride(deityID, prayerType string, f Field, v any) {
	key := overrideKey(deityID, prayerType)
	s.ovMu.Lock()
	defer s.ovMu.Unlock()
	if s.overrides[key] == nil {
		s.overrides[key] = make(map[Field]any)
	}
	s.overrides[key][f] = v
}

// ClearOverride removes a runtime override. Removing an absent override
// is a no-op.
func (s *Store) ClearOverride(deityID, prayerType string, f Field) {
	key := overrideKey(deityID, prayerType)
	s.ovMu.Lock()
	defer s.ovMu.Unlock()
	if m := s.overrides[key]; m != nil {
		delete(m, f)
		if len(m) == 0 {
			delete(s.overrides, key)
		}
	}
}

func overrideKey(deityID, prayerType string) string {
	return deityID + "\x00" + prayerType
}

func applyOverride(eff *Effective, f Field, v any) {
	switch f {
	case FieldProvider:
		if s, ok := v.(string); ok {
			eff.Provider = s
		}
	case FieldModel:
		if s, ok := v.(string); ok {
			eff.Model = s
		}
	case FieldPersonality:
		if s, ok := v.(string); ok {
			eff.Personality = s
		}
	case FieldPromptTemplate:
		if s, ok := v.(string); ok {
			eff.PromptTemplate = s
		}
	case FieldTemperature:
		if fv, ok := asFloat(v); ok {
			eff.Temperature = fv
		}
	case FieldTopK:
		if iv, ok := asInt(v); ok {
			eff.TopK = iv
		}
	case FieldTopP:
		if fv, ok := asFloat(v); ok {
			eff.TopP = fv
		}
	case FieldMaxTokens:
		if iv, ok := asInt(v); ok {
			eff.MaxTokens = iv
		}
	case FieldMaxActions:
		if iv, ok := asInt(v); ok && iv >= 0 {
			eff.MaxActions = iv
		}
	case FieldCooldown:
		if iv, ok := asInt(v); ok && iv >= 0 {
			eff.Cooldown = time.Duration(iv) * time.Second
		}
	case FieldMinReputation:
		if fv, ok := asFloat(v); ok {
			eff.MinReputation = fv
		}
	case FieldTimeout:
		if iv, ok := asInt(v); ok && iv > 0 {
			eff.Timeout = time.Duration(iv) * time.Second
		}
	case FieldAllowedVerbs:
		switch t := v.(type) {
		case []string:
			eff.AllowedVerbs = t
		case []any:
			verbs := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					verbs = append(verbs, s)
				}
			}
			eff.AllowedVerbs = verbs
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	}
	return 0, false
}
