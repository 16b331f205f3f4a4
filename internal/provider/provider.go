package provider

import (
	"context"

	"github.com/t2tlabs/t2t-backend/internal/models"
)

// ChatMessage is one role-tagged entry of the conversation history handed to
// the provider.
type ChatMessage struct {
	Role    models.Role
	Content string
}

// Options tune a single completion call.
type Options struct {
	MaxTokens    int
	WebAugmented bool
}

// CompletionProvider is the engine's view of the LLM: ordered history in,
// final text out. A single failed attempt is surfaced as-is; the engine never
// retries.
type CompletionProvider interface {
	Complete(ctx context.Context, systemInstructions string, history []ChatMessage, opts Options) (string, error)
}
