package prayer

import (
	"fmt"
	"strings"
)

// Request represents one prayer submitted by a requester to a deity.
type Request struct {
	RequesterID string `json:"requester_id"`
	DeityID     string `json:"deity_id"`
	PrayerType  string `json:"prayer_type"`
	Message     string `json:"message"`
}

// Response is the outcome of one prayer interaction. DisplayText is always
// a coherent in-character line, even when the provider failed.
type Response struct {
	InteractionID     string `json:"interaction_id,omitempty"`
	DisplayText       string `json:"display_text"`
	ActionsDispatched int    `json:"actions_dispatched"`
	Denied            bool   `json:"denied,omitempty"`
	Error             string `json:"error,omitempty"`
}

func (r *Request) Validate() error {
	if strings.TrimSpace(r.RequesterID) == "" {
		return fmt.Errorf("requester_id cannot be empty")
	}
	if strings.TrimSpace(r.DeityID) == "" {
		return fmt.Errorf("deity_id cannot be empty")
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return nil
}

// AIResponse is the universal shape every provider client translates its
// backend-specific response into.
type AIResponse struct {
	Success  bool     `json:"success"`
	Dialogue string   `json:"dialogue"`
	Actions  []string `json:"actions,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// Action is a single parsed, safety-checked directive extracted from model
// output. Target is a placeholder until dispatch resolves it to the
// requester.
type Action struct {
	Verb   string   `json:"verb"`
	Target string   `json:"target"`
	Params []string `json:"params,omitempty"`
}

// TargetPlaceholder marks the spot an action template wants the requester
// substituted in. Resolution happens at dispatch time, never at parse time.
const TargetPlaceholder = "@target"

// Resolved returns a copy of the action with the target placeholder
// replaced by the requester identifier.
func (a Action) Resolved(requesterID string) Action {
	out := Action{Verb: a.Verb, Target: a.Target, Params: make([]string, len(a.Params))}
	if out.Target == TargetPlaceholder || out.Target == "" {
		out.Target = requesterID
	}
	for i, p := range a.Params {
		out.Params[i] = strings.ReplaceAll(p, TargetPlaceholder, requesterID)
	}
	return out
}

func (a Action) String() string {
	if len(a.Params) == 0 {
		return a.Verb + " " + a.Target
	}
	return a.Verb + " " + a.Target + " " + strings.Join(a.Params, " ")
}

// MaxRecentActions bounds the per-requester action history carried into
// prompt context.
const MaxRecentActions = 8

// RequesterContext is rebuilt fresh for every interaction. It is never
// persisted by the core.
type RequesterContext struct {
	RequesterID   string
	Score         float64
	PatronID      string
	StageName     string
	Snapshot      map[string]string
	RecentActions []string // newest first, capped at MaxRecentActions
}

// RememberAction pushes an executed action description onto the front of
// the history, dropping the oldest entry past the cap.
func (rc *RequesterContext) RememberAction(desc string) {
	rc.RecentActions = append([]string{desc}, rc.RecentActions...)
	if len(rc.RecentActions) > MaxRecentActions {
		rc.RecentActions = rc.RecentActions[:MaxRecentActions]
	}
}
