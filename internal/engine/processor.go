package engine

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pantheonmod/pantheon/internal/storage"
	"github.com/pantheonmod/pantheon/pkg/deity"
	"github.com/pantheonmod/pantheon/pkg/prayer"
	"github.com/pantheonmod/pantheon/pkg/textfilter"
	"github.com/pantheonmod/pantheon/pkg/world"
)

// markerPattern matches any bracketed directive-like tag, in any case.
// Only the canonical uppercase ACTION tag is parsed; everything
// marker-shaped is stripped from the text shown to the requester,
// matched or not.
var markerPattern = regexp.MustCompile(`(?i)\[([A-Z_]+):([^\[\]\n]*)\]`)

// Whitespace cleanup applied after stripping. Each rule maps onto a fixed
// point so cleaning already-clean text changes nothing.
var (
	hspaceRuns    = regexp.MustCompile(`[ \t]{2,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// intentTemplates maps named high-level intents to concrete, pre-vetted
// action templates. The model asks for "heal"; the world receives a
// bounded effect. Behavior requests outside this table must spell out a
// full directive, which still faces the verb allow-list.
var intentTemplates = map[string]prayer.Action{
	"heal":       {Verb: "effect", Target: prayer.TargetPlaceholder, Params: []string{"regeneration", "30", "1"}},
	"protect":    {Verb: "effect", Target: prayer.TargetPlaceholder, Params: []string{"resistance", "30", "1"}},
	"bless":      {Verb: "effect", Target: prayer.TargetPlaceholder, Params: []string{"luck", "120", "1"}},
	"hasten":     {Verb: "effect", Target: prayer.TargetPlaceholder, Params: []string{"speed", "30", "1"}},
	"illuminate": {Verb: "effect", Target: prayer.TargetPlaceholder, Params: []string{"night_vision", "120", "1"}},
	"gift food":  {Verb: "give", Target: prayer.TargetPlaceholder, Params: []string{"bread", "4"}},
	"curse":      {Verb: "curse", Target: prayer.TargetPlaceholder, Params: []string{"weakness", "30"}},
	"smite":      {Verb: "smite", Target: prayer.TargetPlaceholder},
}

// denyPatterns reject known-dangerous directives outright, before the
// verb allow-list is even consulted: mass-target selectors, privilege
// escalation and running inside another identity.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)@[aep]\b`),
	regexp.MustCompile(`(?i)\ball\s+players\b`),
	regexp.MustCompile(`(?i)\b(op|deop|sudo|grant|permission|perm)\b`),
	regexp.MustCompile(`(?i)\bexecute\s+as\b`),
	regexp.MustCompile(`(?i)\brun\s+as\b`),
}

// ProcessedResponse is the result of parsing one raw model response.
type ProcessedResponse struct {
	CleanedMessage string
	Actions        []prayer.Action // filtered, quota-limited, targets resolved
	Dispatch       <-chan bool     // nil when no actions were dispatched
}

// Processor turns raw model output into displayed dialogue plus a safe,
// rate-limited action batch, and dispatches the batch to the executor.
type Processor struct {
	executor world.ActionExecutor
	audit    storage.AuditLog
	filter   *textfilter.DialogueFilter
	logger   *slog.Logger
}

func NewProcessor(executor world.ActionExecutor, audit storage.AuditLog, logger *slog.Logger) *Processor {
	return &Processor{
		executor: executor,
		audit:    audit,
		filter:   textfilter.NewDialogueFilter(),
		logger:   logger,
	}
}

// Process parses directives out of the raw response, strips all
// marker-like text from the dialogue, applies the safety filter and the
// action quota, and dispatches the surviving batch for the requester.
// It never fails: unparseable input degrades to clean text and an empty
// batch.
func (p *Processor) Process(ctx context.Context, raw *prayer.AIResponse, requesterID, interactionID string, eff deity.Effective) ProcessedResponse {
	directives, cleaned := p.extractDirectives(raw.Dialogue)
	directives = append(directives, raw.Actions...)

	if textfilter.AppliesTo(eff.Rating) {
		cleaned = p.filter.Filter(cleaned)
	}

	candidates := p.parseDirectives(directives)
	allowed := p.applySafety(ctx, candidates, requesterID, interactionID, eff)
	allowed = p.applyQuota(ctx, allowed, requesterID, interactionID, eff)

	out := ProcessedResponse{CleanedMessage: cleaned}
	if len(allowed) == 0 {
		return out
	}

	batch := make([]prayer.Action, len(allowed))
	for i, a := range allowed {
		batch[i] = a.Resolved(requesterID)
	}
	out.Actions = batch
	out.Dispatch = p.executor.Execute(ctx, batch, requesterID)

	for _, a := range batch {
		p.recordAudit(ctx, requesterID, interactionID, eff, a.String(), storage.OutcomeDispatched, "")
	}
	return out
}

// extractDirectives pulls ACTION payloads out of the dialogue and returns
// the dialogue with every marker-like tag removed. Stripping is
// idempotent: text without markers passes through byte-identical.
func (p *Processor) extractDirectives(dialogue string) ([]string, string) {
	var directives []string
	cleaned := markerPattern.ReplaceAllStringFunc(dialogue, func(match string) string {
		groups := markerPattern.FindStringSubmatch(match)
		payload := strings.TrimSpace(groups[2])
		if groups[1] == "ACTION" && payload != "" {
			directives = append(directives, payload)
		} else {
			// Never leaked to the requester, but kept for diagnostics.
			p.logger.Debug("stripping unrecognized marker", "marker", match)
		}
		return ""
	})

	cleaned = hspaceRuns.ReplaceAllString(cleaned, " ")
	cleaned = trailingSpace.ReplaceAllString(cleaned, "\n")
	cleaned = blankRuns.ReplaceAllString(cleaned, "\n\n")
	return directives, strings.TrimSpace(cleaned)
}

// parseDirectives resolves each payload: named intents through the fixed
// template table, everything else as a fully-specified "verb args..."
// form targeting the requester.
func (p *Processor) parseDirectives(directives []string) []prayer.Action {
	var out []prayer.Action
	for _, d := range directives {
		key := strings.ToLower(strings.TrimSpace(d))
		if tmpl, ok := intentTemplates[key]; ok {
			out = append(out, tmpl)
			continue
		}
		fields := strings.Fields(d)
		if len(fields) == 0 {
			p.logger.Debug("dropping empty directive")
			continue
		}
		out = append(out, prayer.Action{
			Verb:   strings.ToLower(fields[0]),
			Target: prayer.TargetPlaceholder,
			Params: fields[1:],
		})
	}
	return out
}

// applySafety drops actions with disallowed verbs or dangerous patterns.
// Rejected actions disappear from execution but not from the audit trail.
func (p *Processor) applySafety(ctx context.Context, candidates []prayer.Action, requesterID, interactionID string, eff deity.Effective) []prayer.Action {
	var out []prayer.Action
	for _, a := range candidates {
		if reason := rejectionReason(a, eff.AllowedVerbs); reason != "" {
			p.logger.Info("action rejected by safety filter",
				"interaction_id", interactionID,
				"requester", requesterID,
				"action", a.String(),
				"reason", reason)
			p.recordAudit(ctx, requesterID, interactionID, eff, a.String(), storage.OutcomeRejected, reason)
			continue
		}
		out = append(out, a)
	}
	return out
}

func rejectionReason(a prayer.Action, allowedVerbs []string) string {
	full := a.String()
	for _, pattern := range denyPatterns {
		if pattern.MatchString(full) {
			return "matches deny pattern " + pattern.String()
		}
	}
	for _, verb := range allowedVerbs {
		if strings.EqualFold(verb, a.Verb) {
			return ""
		}
	}
	return "verb not in allow-list"
}

// applyQuota keeps the earliest-declared actions up to the effective
// maximum. Exceeding the quota is a policy decision, not an error.
func (p *Processor) applyQuota(ctx context.Context, actions []prayer.Action, requesterID, interactionID string, eff deity.Effective) []prayer.Action {
	if len(actions) <= eff.MaxActions {
		return actions
	}
	for _, a := range actions[eff.MaxActions:] {
		p.recordAudit(ctx, requesterID, interactionID, eff, a.String(), storage.OutcomeTruncated, "over action quota")
	}
	p.logger.Info("action quota applied",
		"interaction_id", interactionID,
		"kept", eff.MaxActions,
		"dropped", len(actions)-eff.MaxActions)
	return actions[:eff.MaxActions]
}

func (p *Processor) recordAudit(ctx context.Context, requesterID, interactionID string, eff deity.Effective, action string, outcome storage.AuditOutcome, reason string) {
	if p.audit == nil {
		return
	}
	entry := storage.AuditEntry{
		InteractionID: interactionID,
		RequesterID:   requesterID,
		DeityID:       eff.DeityID,
		PrayerType:    eff.PrayerType,
		Action:        action,
		Outcome:       outcome,
		Reason:        reason,
		At:            time.Now().UTC(),
	}
	if err := p.audit.Record(ctx, entry); err != nil {
		p.logger.Error("failed to record audit entry", "error", err)
	}
}
