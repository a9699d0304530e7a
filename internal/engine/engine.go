package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/pantheonmod/pantheon/internal/logger"
	"github.com/pantheonmod/pantheon/internal/services"
	"github.com/pantheonmod/pantheon/internal/storage"
	"github.com/pantheonmod/pantheon/pkg/deity"
	"github.com/pantheonmod/pantheon/pkg/prayer"
	"github.com/pantheonmod/pantheon/pkg/progression"
	"github.com/pantheonmod/pantheon/pkg/prompts"
	"github.com/pantheonmod/pantheon/pkg/world"
)

// Boundary misuse errors. These are the only errors SubmitPrayer returns;
// everything past the gate degrades to an in-character response.
var (
	ErrUnknownDeity      = errors.New("unknown deity")
	ErrUnknownPrayerType = errors.New("unknown prayer type")
)

// ProviderFactory constructs a provider client for a backend and model.
// Satisfied by services.Registry; swapped for a scripted factory in tests.
type ProviderFactory interface {
	Create(providerName, modelName string) services.ProviderClient
}

// Engine runs the prayer-response pipeline. Construct one at startup and
// share it; all methods are safe for concurrent use.
type Engine struct {
	deities       *deity.Store
	providers     ProviderFactory
	snapshots     world.SnapshotProvider // optional
	relationships world.RelationshipStore
	cooldowns     storage.CooldownStore
	audit         storage.AuditLog
	detector      *progression.Detector
	processor     *Processor
	logger        *slog.Logger

	recentMu sync.Mutex
	recent   map[string][]string // per-requester recent divine acts
}

// Options bundles the collaborators an Engine needs.
type Options struct {
	Deities       *deity.Store
	Providers     ProviderFactory
	Snapshots     world.SnapshotProvider
	Relationships world.RelationshipStore
	Cooldowns     storage.CooldownStore
	Audit         storage.AuditLog
	Executor      world.ActionExecutor
	Logger        *slog.Logger
}

func New(opts Options) *Engine {
	e := &Engine{
		deities:       opts.Deities,
		providers:     opts.Providers,
		snapshots:     opts.Snapshots,
		relationships: opts.Relationships,
		cooldowns:     opts.Cooldowns,
		audit:         opts.Audit,
		processor:     NewProcessor(opts.Executor, opts.Audit, opts.Logger),
		logger:        opts.Logger,
		recent:        make(map[string][]string),
	}
	e.detector = progression.NewDetector(func(deityID string) []deity.ProgressionStage {
		if d := e.deities.Get(deityID); d != nil {
			return d.Stages
		}
		return nil
	})
	return e
}

// SubmitPrayer is the single entry point for one prayer interaction.
// Only API-boundary misuse (bad request, unknown deity or prayer type)
// returns an error; every later failure resolves to a best-effort
// in-character response.
func (e *Engine) SubmitPrayer(ctx context.Context, req prayer.Request) (*prayer.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := e.deities.Get(req.DeityID)
	if cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDeity, req.DeityID)
	}
	if _, ok := cfg.Prayers[req.PrayerType]; !ok {
		return nil, fmt.Errorf("%w: %s has no %q", ErrUnknownPrayerType, req.DeityID, req.PrayerType)
	}

	interactionID := uuid.NewString()
	log := logger.WithInteractionID(e.logger, interactionID).
		With("requester", req.RequesterID, "deity", req.DeityID, "prayer_type", req.PrayerType)

	eff := e.deities.Effective(req.DeityID, req.PrayerType)

	score, err := e.relationships.GetScore(ctx, req.RequesterID, req.DeityID)
	if err != nil {
		log.Warn("failed to read relationship score, treating as zero", "error", err)
		score = 0
	}
	// Keep the pair tracked and raise any events the prayer path owes.
	if events := e.detector.Check(req.RequesterID, req.DeityID, score); len(events) > 0 {
		e.logProgression(log, events)
	}

	// Pre-call gates, checked before any provider work so a denied prayer
	// costs nothing.
	if score < eff.MinReputation {
		log.Debug("prayer denied", "reason", "reputation", "score", score, "required", eff.MinReputation)
		return &prayer.Response{
			InteractionID: interactionID,
			DisplayText:   prompts.ReputationDenialMessage,
			Denied:        true,
		}, nil
	}
	reserved, err := e.cooldowns.Reserve(ctx, req.RequesterID, req.DeityID, req.PrayerType, eff.Cooldown)
	if err != nil {
		log.Error("cooldown reservation failed, allowing prayer", "error", err)
		reserved = true
	}
	if !reserved {
		log.Debug("prayer denied", "reason", "cooldown")
		return &prayer.Response{
			InteractionID: interactionID,
			DisplayText:   prompts.CooldownDenialMessage,
			Denied:        true,
		}, nil
	}

	situational := e.buildContext(ctx, req, cfg, eff, score, log)

	client := e.providers.Create(eff.Provider, eff.Model)
	genReq := services.GenerateRequest{
		Prompt:      prompts.Compose(eff.PromptTemplate, req.Message),
		Personality: eff.Personality,
		Context:     situational,
		Generation: services.GenerationConfig{
			Temperature: eff.Temperature,
			TopK:        eff.TopK,
			TopP:        eff.TopP,
			MaxTokens:   eff.MaxTokens,
		},
		Safety: cfg.SafetyThresholds,
	}

	callCtx, cancel := context.WithTimeout(ctx, eff.Timeout)
	defer cancel()

	log.Debug("invoking provider", "provider", client.Name(), "model", eff.Model)
	resp, err := client.Generate(callCtx, genReq)
	if err != nil {
		// Timeouts land here too. The requester is not charged a cooldown
		// for a call that produced nothing.
		log.Error("provider call failed", "provider", client.Name(), "error", err)
		e.releaseCooldown(ctx, req, log)
		return &prayer.Response{
			InteractionID: interactionID,
			DisplayText:   prompts.ApologeticMessage,
		}, nil
	}
	if !resp.Success {
		log.Info("provider unavailable", "provider", client.Name())
		e.releaseCooldown(ctx, req, log)
		return &prayer.Response{
			InteractionID: interactionID,
			DisplayText:   resp.Dialogue,
		}, nil
	}

	processed := e.processor.Process(ctx, resp, req.RequesterID, interactionID, eff)
	display := processed.CleanedMessage
	if display == "" {
		display = prompts.ApologeticMessage
	}

	e.rememberActions(req.RequesterID, processed.Actions)
	e.watchDispatch(processed.Dispatch, log)

	log.Info("prayer answered", "actions_dispatched", len(processed.Actions))
	return &prayer.Response{
		InteractionID:     interactionID,
		DisplayText:       display,
		ActionsDispatched: len(processed.Actions),
	}, nil
}

// buildContext assembles the situational context, degrading missing
// collaborator data instead of failing the interaction.
func (e *Engine) buildContext(ctx context.Context, req prayer.Request, cfg *deity.DeityConfig, eff deity.Effective, score float64, log *slog.Logger) string {
	rc := &prayer.RequesterContext{
		RequesterID:   req.RequesterID,
		Score:         score,
		RecentActions: e.recentActions(req.RequesterID),
	}
	if st := cfg.ActiveStage(score); st != nil {
		rc.StageName = st.Name
	}
	if patron, err := e.relationships.GetPatron(ctx, req.RequesterID); err == nil {
		rc.PatronID = patron
	} else {
		log.Warn("failed to read patron", "error", err)
	}
	if e.snapshots != nil {
		if snap, err := e.snapshots.Snapshot(ctx, req.RequesterID); err == nil {
			rc.Snapshot = snap
		} else {
			log.Warn("world snapshot unavailable", "error", err)
		}
	}

	blob, err := prompts.New().WithRequester(rc).WithEffective(eff).Build()
	if err != nil {
		log.Error("context build failed", "error", err)
		return ""
	}
	return blob
}

func (e *Engine) releaseCooldown(ctx context.Context, req prayer.Request, log *slog.Logger) {
	if err := e.cooldowns.Release(ctx, req.RequesterID, req.DeityID, req.PrayerType); err != nil {
		log.Warn("failed to release cooldown", "error", err)
	}
}

// watchDispatch logs the batch outcome in the background. Dispatch is
// never retried here; that is the executor's call.
func (e *Engine) watchDispatch(dispatch <-chan bool, log *slog.Logger) {
	if dispatch == nil {
		return
	}
	go func() {
		if accepted, ok := <-dispatch; ok && !accepted {
			log.Warn("action batch rejected by executor")
		}
	}()
}

func (e *Engine) rememberActions(requesterID string, actions []prayer.Action) {
	if len(actions) == 0 {
		return
	}
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	rc := prayer.RequesterContext{RecentActions: e.recent[requesterID]}
	for _, a := range actions {
		rc.RememberAction(a.String())
	}
	e.recent[requesterID] = rc.RecentActions
}

func (e *Engine) recentActions(requesterID string) []string {
	e.recentMu.Lock()
	defer e.recentMu.Unlock()
	return append([]string(nil), e.recent[requesterID]...)
}

// EffectiveConfig exposes the resolved configuration for diagnostics and
// admin tooling.
func (e *Engine) EffectiveConfig(deityID, prayerType string) deity.Effective {
	return e.deities.Effective(deityID, prayerType)
}

// KnownDeity reports whether a deity is in the active config set.
func (e *Engine) KnownDeity(deityID string) bool {
	return e.deities.Get(deityID) != nil
}

// ReloadConfig replaces the deity config set from raw definitions.
func (e *Engine) ReloadConfig(raw []deity.Definition) deity.LoadResult {
	return e.deities.Load(raw)
}

// CheckProgression evaluates threshold crossings for one pair. Callable
// from the prayer path and from a periodic scheduler; both share the
// same detector.
func (e *Engine) CheckProgression(requesterID, deityID string, score float64) []progression.Event {
	events := e.detector.Check(requesterID, deityID, score)
	if len(events) > 0 {
		e.logProgression(e.logger.With("requester", requesterID, "deity", deityID), events)
	}
	return events
}

// ForgetRequester prunes all per-requester tracking state, e.g. on
// disconnect.
func (e *Engine) ForgetRequester(requesterID string) {
	e.detector.Forget(requesterID)
	e.recentMu.Lock()
	delete(e.recent, requesterID)
	e.recentMu.Unlock()
}

func (e *Engine) logProgression(log *slog.Logger, events []progression.Event) {
	for _, ev := range events {
		log.Info("progression threshold crossed",
			"type", ev.Type, "stage", ev.Stage, "threshold", ev.Threshold)
	}
}
