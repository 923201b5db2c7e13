package port

import (
	"context"

	"routine/internal/domain"
)

// TextGenerator represents a language model for chat-style text generation.
type TextGenerator interface {
	// Complete generates a reply to the given messages.
	Complete(ctx context.Context, messages []domain.Message, opts domain.GenerationOptions) (*domain.Completion, error)

	// ModelName returns the name of the model.
	ModelName() string
}
