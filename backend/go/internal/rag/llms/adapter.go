package llms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"Memora/backend/go/internal/llm"
	"Memora/backend/go/internal/models"
	"Memora/backend/go/internal/rag/interfaces"
)

// ErrEmptyAnswer is returned when the model produced no text.
var ErrEmptyAnswer = errors.New("llm returned an empty answer")

// Adapter adapts an llm.LLM chat client to the plain-text LLM interface used by the pipelines.
type Adapter struct {
	client llm.LLM
}

// NewAdapter creates a new adapter.
func NewAdapter(client llm.LLM) *Adapter {
	return &Adapter{client: client}
}

// Generate sends a system prompt and a user prompt and returns the text of the reply.
func (a *Adapter) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	resp, err := a.client.GenerateContent(ctx, models.NewPromptRequest(systemPrompt, prompt))
	if err != nil {
		return "", fmt.Errorf("llm failed to generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}

var _ interfaces.LLM = (*Adapter)(nil)
