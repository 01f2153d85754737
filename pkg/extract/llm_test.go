package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/dishgraph/backend/pkg/ai"
)

type fakeAIClient struct {
	ai.MetricsRecorder
	response string
	err      error
	prompt   string
	system   []string
}

func (c *fakeAIClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	c.prompt = prompt
	c.system = ai.ApplyOptions(ai.GenerateOptions{}, opts...).SystemPrompts
	if c.err != nil {
		return c.err
	}
	c.Record(ai.ModelMetrics{TotalTokens: 10, DurationMs: 5})
	return ai.UnmarshalFlexible(c.response, out)
}

func TestLLMExtractor_Extract(t *testing.T) {
	client := &fakeAIClient{response: `{"mentions":[{"restaurant_name":"Franklin BBQ","food_name":"brisket","food_categories":["barbecue"],"is_menu_item":true,"food_attributes_selective":[],"food_attributes_descriptive":[],"restaurant_attributes":[],"general_praise":true,"source_id":"c1"}]}`}
	unit := comment("Franklin BBQ is amazing and their brisket is great", "")

	raw, err := NewLLMExtractor(client, 0).Extract(context.Background(), unit, Scope{})
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(raw.Mentions) != 1 || raw.Mentions[0].RestaurantName != "Franklin BBQ" || !raw.Mentions[0].GeneralPraise {
		t.Fatalf("unexpected candidates %+v", raw)
	}
	if !strings.Contains(client.prompt, "source_id: c1") || !strings.Contains(client.prompt, "None") {
		t.Fatalf("prompt is missing the source or empty parent marker:\n%s", client.prompt)
	}
	if len(client.system) != 1 || client.system[0] != ai.ExtractionSystemPrompt {
		t.Fatalf("expected the extraction system prompt, got %d prompts", len(client.system))
	}
	if m := client.GetMetrics(); m.Requests != 1 {
		t.Fatalf("expected 1 recorded request, got %d", m.Requests)
	}
}

func TestLLMExtractor_RequestHint(t *testing.T) {
	client := &fakeAIClient{response: `{"mentions":[]}`}
	unit := comment("Crispy Burger", "Best burger in EV?")
	scope := NewScope(unit, nil)

	if _, err := NewLLMExtractor(client, 0).Extract(context.Background(), unit, scope); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if !strings.Contains(client.prompt, "request for recommendations for burger") {
		t.Fatalf("prompt is missing the request hint:\n%s", client.prompt)
	}
}

func TestLLMExtractor_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "missing restaurant name", response: `{"mentions":[{"food_name":"taco"}]}`},
		{name: "not json", response: `hello`},
		{name: "wrong shape", response: `{"mentions":"franklin"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeAIClient{response: tt.response}
			_, err := NewLLMExtractor(client, 0).Extract(context.Background(), comment("Franklin BBQ is great", ""), Scope{})
			if !errors.Is(err, ErrSchemaViolation) {
				t.Fatalf("expected ErrSchemaViolation, got %v", err)
			}
		})
	}
}

func TestLLMExtractor_TransportError(t *testing.T) {
	boom := errors.New("connection reset")
	client := &fakeAIClient{err: boom}
	_, err := NewLLMExtractor(client, 0).Extract(context.Background(), comment("Franklin BBQ is great", ""), Scope{})
	if !errors.Is(err, boom) || errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
