package services

import (
	"context"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// UnavailableMessage is the user-facing dialogue the null provider always
// returns. It explains the silence without exposing configuration detail.
const UnavailableMessage = "The deity's presence feels distant, as if the connection to the divine realm is severed. Perhaps the oracle has not been consecrated."

// NullProvider is the universal fallback when no credential is configured
// or the requested provider name is unrecognized. It guarantees the
// pipeline never fails for missing configuration: every call succeeds
// with Success=false, an explanatory dialogue and no actions.
type NullProvider struct{}

func NewNullProvider() *NullProvider { return &NullProvider{} }

func (n *NullProvider) Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error) {
	return &prayer.AIResponse{
		Success:  false,
		Dialogue: UnavailableMessage,
	}, nil
}

func (n *NullProvider) IsAvailable() bool { return false }

func (n *NullProvider) Name() string { return "null" }
