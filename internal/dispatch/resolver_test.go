// internal/dispatch/resolver_test.go
package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crew-orchestrator/internal/common/logger"
)

// ==========================
// Test Fakes
// ==========================

type fakeCompleter struct {
	content    string
	err        error
	calls      int
	lastModel  string
	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.lastModel = model
	f.lastSystem = systemPrompt
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

type fakeTemplates struct {
	content string
	err     error
}

func (f *fakeTemplates) GetTemplateContent(ctx context.Context, key string) (string, error) {
	return f.content, f.err
}

func newTestResolver(t *testing.T, completer *fakeCompleter, templates *fakeTemplates) *Resolver {
	return NewResolver(completer, templates, logger.NewTestLogger(t))
}

// ==========================
// Classification Tests
// ==========================

func TestResolver_Resolve_ParsesLLMResponse(t *testing.T) {
	completer := &fakeCompleter{
		content: `{"intent": "generate_agent", "confidence": 0.92, "extracted_info": {"role": "travel expert"}, "suggested_prompt": "Create a travel expert agent"}`,
	}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "I want a travel expert agent", "gpt-4")

	assert.Equal(t, IntentGenerateAgent, result.Intent)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "Create a travel expert agent", result.SuggestedPrompt)
	assert.Equal(t, "travel expert", result.ExtractedInfo["role"])
	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, "gpt-4", completer.lastModel)
}

func TestResolver_Resolve_ToleratesFencedJSON(t *testing.T) {
	completer := &fakeCompleter{
		content: "```json\n{\"intent\": \"generate_task\", \"confidence\": 0.8}\n```",
	}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "find the best hotel in Paris", "gpt-4")

	assert.Equal(t, IntentGenerateTask, result.Intent)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestResolver_Resolve_RepairsMissingFields(t *testing.T) {
	// Only intent is present; confidence, extracted_info, suggested_prompt
	// must be filled in.
	completer := &fakeCompleter{content: `{"intent": "generate_crew"}`}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	message := "build a crew with multiple agents"
	result := resolver.Resolve(context.Background(), message, "gpt-4")

	assert.Equal(t, IntentGenerateCrew, result.Intent)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, message, result.SuggestedPrompt)
	require.NotNil(t, result.ExtractedInfo)
	assert.Contains(t, result.ExtractedInfo, "semantic_analysis")
}

func TestResolver_Resolve_MissingIntentUsesSemanticSuggestion(t *testing.T) {
	completer := &fakeCompleter{content: `{"confidence": 0.7}`}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "find the best hotel in Paris", "gpt-4")

	assert.Equal(t, IntentGenerateTask, result.Intent)
}

func TestResolver_Resolve_SemanticOverride(t *testing.T) {
	// The LLM lazily answers conversation at 0.5 confidence, but the message
	// carries five task-action hits. The semantic classifier wins.
	completer := &fakeCompleter{content: `{"intent": "conversation", "confidence": 0.5}`}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "find create analyze search get data", "gpt-4")

	assert.Equal(t, IntentGenerateTask, result.Intent)
	assert.Greater(t, result.Confidence, 0.5)
}

func TestResolver_Resolve_NoOverrideWhenLLMConfident(t *testing.T) {
	completer := &fakeCompleter{content: `{"intent": "conversation", "confidence": 0.99}`}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "find the best hotel in Paris", "gpt-4")

	assert.Equal(t, IntentConversation, result.Intent)
	assert.Equal(t, 0.99, result.Confidence)
}

// ==========================
// Fallback Tests
// ==========================

func TestResolver_Resolve_FallbackOnLLMError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("provider unavailable")}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "find the best hotel in Paris", "gpt-4")

	assert.Equal(t, IntentGenerateTask, result.Intent)
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
	assert.Equal(t, "find the best hotel in Paris", result.SuggestedPrompt)
	assert.Contains(t, result.ExtractedInfo, "semantic_analysis")
}

func TestResolver_Resolve_FallbackOnUnparsableResponse(t *testing.T) {
	completer := &fakeCompleter{content: "I could not decide on an intent."}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "hello, how are you?", "gpt-4")

	assert.Equal(t, IntentConversation, result.Intent)
	assert.GreaterOrEqual(t, result.Confidence, 0.3)
}

func TestResolver_Resolve_FallbackOnTemplateError(t *testing.T) {
	completer := &fakeCompleter{content: `{"intent": "generate_task"}`}
	resolver := newTestResolver(t, completer, &fakeTemplates{err: errors.New("store down")})

	result := resolver.Resolve(context.Background(), "find the best hotel in Paris", "gpt-4")

	// Template failure degrades to semantic-only; the completer is never hit.
	assert.Equal(t, IntentGenerateTask, result.Intent)
	assert.Equal(t, 0, completer.calls)
}

func TestResolver_Resolve_UnscoredMessageFallsBackToUnknown(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("provider unavailable")}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	result := resolver.Resolve(context.Background(), "xyz abc def", "gpt-4")

	assert.Equal(t, IntentUnknown, result.Intent)
	assert.Equal(t, 0.3, result.Confidence)
}

// ==========================
// Prompt Construction Tests
// ==========================

func TestResolver_Resolve_UsesStoredTemplate(t *testing.T) {
	completer := &fakeCompleter{content: `{"intent": "generate_task", "confidence": 0.9}`}
	templates := &fakeTemplates{content: "Custom tenant classification instructions"}
	resolver := newTestResolver(t, completer, templates)

	resolver.Resolve(context.Background(), "find the best hotel in Paris", "gpt-4")

	assert.True(t, strings.HasPrefix(completer.lastUser, "Custom tenant classification instructions"))
	assert.Contains(t, completer.lastUser, "Semantic Analysis:")
	assert.Contains(t, completer.lastUser, "Suggested intent: generate_task")
}

func TestResolver_Resolve_DefaultTemplateWhenMissing(t *testing.T) {
	completer := &fakeCompleter{content: `{"intent": "conversation", "confidence": 0.9}`}
	resolver := newTestResolver(t, completer, &fakeTemplates{})

	resolver.Resolve(context.Background(), "hello", "gpt-4")

	assert.Contains(t, completer.lastUser, "generate_agent")
	assert.Contains(t, completer.lastUser, "configure_crew")
	assert.Contains(t, completer.lastUser, "User message: hello")
	assert.Contains(t, completer.lastSystem, "intent classification")
}
