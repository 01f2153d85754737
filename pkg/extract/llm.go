package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/ai"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/common"
)

const defaultContextTokens = 1500

// LLMExtractor asks a language model for candidate mentions. Malformed or
// invalid responses are reported as ErrSchemaViolation.
type LLMExtractor struct {
	client        ai.ExtractionAIClient
	contextTokens int
	opts          []ai.GenerateOption
}

// NewLLMExtractor creates an extractor. contextTokens bounds the parent
// context placed in the prompt.
func NewLLMExtractor(client ai.ExtractionAIClient, contextTokens int, opts ...ai.GenerateOption) *LLMExtractor {
	if contextTokens <= 0 {
		contextTokens = defaultContextTokens
	}
	return &LLMExtractor{client: client, contextTokens: contextTokens, opts: opts}
}

func (e *LLMExtractor) Extract(ctx context.Context, unit common.ContentUnit, scope Scope) (*RawCandidates, error) {
	prompt := e.prompt(unit, scope)

	opts := append([]ai.GenerateOption{ai.WithSystemPrompts(ai.ExtractionSystemPrompt)}, e.opts...)
	var out RawCandidates
	err := e.client.GenerateCompletionWithFormat(
		ctx,
		"restaurant_mentions",
		"Restaurant and dish mentions extracted from one piece of content",
		prompt,
		&out,
		opts...,
	)
	if err != nil {
		if errors.Is(err, ai.ErrMalformedResponse) {
			return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
		}
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	return &out, nil
}

func (e *LLMExtractor) prompt(unit common.ContentUnit, scope Scope) string {
	parent := strings.TrimSpace(unit.ParentContextText)
	if parent == "" {
		parent = "None"
	} else {
		parent = ai.TruncateTokens(parent, e.contextTokens)
	}
	if scope.ParentRequest {
		parent += "\n\n(The parent context is a request for recommendations"
		if scope.RequestDish != "" {
			parent += " for " + scope.RequestDish
		}
		parent += ".)"
	}
	return fmt.Sprintf(ai.ExtractionPrompt, parent, unit.Text, unit.SourceID, unit.ExtractFromPost)
}
