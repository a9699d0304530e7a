package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pantheonmod/pantheon/pkg/deity"
	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// MaxContextBytes is the total context budget. Keeps the blob well inside
// every backend's window.
const MaxContextBytes = 4096

// maxEnvironmentEntries caps the environment snapshot list before the
// byte budget even applies. Large worlds report hundreds of facts; the
// deity needs the first screenful.
const maxEnvironmentEntries = 24

// Builder assembles the situational context for one prayer using a fluent
// interface: an ordered list of named sections, each independently
// failure-isolated. Status and guidelines are never truncated; enumerable
// sections shrink first when the budget is tight.
type Builder struct {
	requester *prayer.RequesterContext
	eff       deity.Effective
	budget    int
}

// New creates a context builder with the default byte budget.
func New() *Builder {
	return &Builder{budget: MaxContextBytes}
}

// WithRequester sets the per-interaction requester context.
func (b *Builder) WithRequester(rc *prayer.RequesterContext) *Builder {
	b.requester = rc
	return b
}

// WithEffective sets the resolved deity configuration.
func (b *Builder) WithEffective(eff deity.Effective) *Builder {
	b.eff = eff
	return b
}

// WithByteBudget overrides the total context budget.
func (b *Builder) WithByteBudget(n int) *Builder {
	if n > 0 {
		b.budget = n
	}
	return b
}

// Build produces the bounded context blob with deterministic section
// ordering: status, environment, relationship, guidelines. A failure in
// an optional section degrades that section to a placeholder; Build only
// errors on missing required inputs.
func (b *Builder) Build() (string, error) {
	if b.requester == nil {
		return "", fmt.Errorf("requester context is required")
	}

	status := b.statusSection()
	guidelines := BehavioralGuidelines

	// Fixed sections are reserved first and never truncated.
	remaining := b.budget - len(status) - len(guidelines) - 3*len(sectionSep)
	if remaining < 0 {
		remaining = 0
	}

	relationship := b.relationshipSection()
	if len(relationship) > remaining/2 {
		relationship = truncateLines(relationship, remaining/2)
	}
	remaining -= len(relationship)

	environment := b.environmentSection(remaining)

	return strings.Join([]string{status, environment, relationship, guidelines}, sectionSep), nil
}

const sectionSep = "\n\n"

func (b *Builder) statusSection() string {
	var sb strings.Builder
	sb.WriteString("Follower: " + b.requester.RequesterID)
	if b.requester.PatronID != "" {
		sb.WriteString("\nSworn patron: " + b.requester.PatronID)
	}
	if b.eff.DeityID != "" {
		fmt.Fprintf(&sb, "\nPraying to: %s (%s)", b.eff.DeityID, b.eff.PrayerType)
	}
	return sb.String()
}

// environmentSection renders the world snapshot in sorted key order,
// marking anything dropped by either cap with an explicit count.
func (b *Builder) environmentSection(budget int) string {
	snap := b.requester.Snapshot
	if snap == nil {
		return "World: " + sectionUnavailable
	}
	if len(snap) == 0 {
		return "World: nothing of note nearby."
	}

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("World:")
	shown := 0
	for _, k := range keys {
		if shown >= maxEnvironmentEntries {
			break
		}
		line := "\n- " + k + ": " + snap[k]
		if sb.Len()+len(line)+16 > budget { // leave room for the marker
			break
		}
		sb.WriteString(line)
		shown++
	}
	if omitted := len(keys) - shown; omitted > 0 {
		fmt.Fprintf(&sb, "\n(+%d more)", omitted)
	}
	return sb.String()
}

func (b *Builder) relationshipSection() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Standing: %.1f", b.requester.Score)
	if b.requester.StageName != "" {
		sb.WriteString(" (" + b.requester.StageName + ")")
	}
	if len(b.eff.Allies) > 0 {
		sb.WriteString("\nAllied deities: " + strings.Join(b.eff.Allies, ", "))
	}
	if len(b.eff.Rivals) > 0 {
		sb.WriteString("\nOpposing deities: " + strings.Join(b.eff.Rivals, ", "))
	}
	if len(b.eff.JudgmentTiers) > 0 {
		sb.WriteString("\nJudgment:")
		for _, tier := range b.eff.JudgmentTiers {
			fmt.Fprintf(&sb, "\n- %s (%.0f to %.0f)", tier.Name, tier.MinScore, tier.MaxScore)
		}
	}
	if len(b.requester.RecentActions) > 0 {
		sb.WriteString("\nRecent divine acts (newest first):")
		for _, a := range b.requester.RecentActions {
			sb.WriteString("\n- " + a)
		}
	}
	return sb.String()
}

// truncateLines drops whole trailing lines until the text fits the limit,
// appending an explicit marker for the dropped count. The first line is
// always kept.
func truncateLines(text string, limit int) string {
	lines := strings.Split(text, "\n")
	kept := 1
	size := len(lines[0])
	for _, line := range lines[1:] {
		if size+len(line)+1+16 > limit {
			break
		}
		size += len(line) + 1
		kept++
	}
	if kept >= len(lines) {
		return text
	}
	return strings.Join(lines[:kept], "\n") + fmt.Sprintf("\n(+%d more)", len(lines)-kept)
}

// Compose joins the outbound prompt parts in their fixed order: system
// guidelines, the prayer-type template, then the raw prayer. Personality
// and situational context travel on their own generate-request fields.
func Compose(template, message string) string {
	parts := []string{SystemGuidelines}
	if template != "" {
		parts = append(parts, template)
	}
	parts = append(parts, "The follower prays: "+message)
	return strings.Join(parts, "\n\n")
}
