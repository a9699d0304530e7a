package services

import (
	"context"

	"github.com/pantheonmod/pantheon/pkg/prayer"
)

// GenerationConfig carries the resolved sampling parameters for one call.
type GenerationConfig struct {
	Temperature float64
	TopK        int
	TopP        float64
	MaxTokens   int
}

// GenerateRequest is the backend-agnostic request every provider client
// accepts. Backends differ in how they package personality and context;
// each client owns that translation.
type GenerateRequest struct {
	Prompt      string // composed outbound prompt
	Personality string // deity personality text
	Context     string // situational context blob
	Generation  GenerationConfig
	Safety      map[string]string // category -> severity threshold
}

// ProviderClient is the single asynchronous contract every AI backend
// implements. Generate owns its own wire schema and translates the
// upstream response into the universal AIResponse shape.
type ProviderClient interface {
	// Generate performs the model call. It honors ctx cancellation and
	// deadline; a timeout is indistinguishable from any other call error.
	Generate(ctx context.Context, req GenerateRequest) (*prayer.AIResponse, error)

	// IsAvailable is a cheap, synchronous credential-presence check. It
	// never performs network I/O.
	IsAvailable() bool

	// Name identifies the backend for logging.
	Name() string
}
