// internal/dispatch/semantic_test.go
package dispatch

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_EmptyMessage(t *testing.T) {
	signals := Analyze("")

	assert.Equal(t, IntentUnknown, signals.SuggestedIntent)
	assert.Empty(t, signals.TaskActions)
	assert.Empty(t, signals.ConversationWords)
	assert.Empty(t, signals.AgentKeywords)
	assert.Empty(t, signals.CrewKeywords)
	assert.Empty(t, signals.ConfigureKeywords)
	assert.False(t, signals.HasImperative)
	assert.False(t, signals.HasQuestion)
	assert.False(t, signals.HasGreeting)
	assert.False(t, signals.HasCommandStructure)
	assert.False(t, signals.HasConfigureStructure)
	for intent, score := range signals.IntentScores {
		assert.Zero(t, score, "expected zero score for %s", intent)
	}
}

func TestAnalyze_Idempotent(t *testing.T) {
	messages := []string{
		"",
		"find the best hotel in Paris",
		"hello, how are you?",
		"build a team of multiple agents",
	}
	for _, m := range messages {
		first := Analyze(m)
		second := Analyze(m)
		assert.True(t, reflect.DeepEqual(first, second), "Analyze(%q) not deterministic", m)
	}
}

func TestAnalyze_ImperativeDetection(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		imperative bool
	}{
		{"action word first", "find the best hotel in Paris", true},
		{"action word second", "please find the hotel", true},
		{"action word too late", "I would like you to find the hotel", false},
		{"only action words", "find search create", true},
		{"no action word", "hello there", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := Analyze(tt.message)
			assert.Equal(t, tt.imperative, signals.HasImperative)
		})
	}
}

func TestAnalyze_SuggestedIntent(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected IntentName
	}{
		{"task request", "find the best hotel in Paris", IntentGenerateTask},
		{"greeting question", "hello, how are you?", IntentConversation},
		{"agent request", "an assistant persona for my project", IntentGenerateAgent},
		{"crew request", "set up a crew with multiple agents in a pipeline", IntentGenerateCrew},
		{"configure request", "change the llm settings", IntentConfigureCrew},
		{"no signals", "xyz abc def", IntentUnknown},
		{"task beats agent", "create an agent for research", IntentGenerateTask},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals := Analyze(tt.message)
			assert.Equal(t, tt.expected, signals.SuggestedIntent)
		})
	}
}

func TestAnalyze_QuestionDetection(t *testing.T) {
	assert.True(t, Analyze("where is the office?").HasQuestion)
	assert.True(t, Analyze("how does this work").HasQuestion)
	// Punctuation-only message still registers the question mark.
	assert.True(t, Analyze("???").HasQuestion)
	assert.False(t, Analyze("book a flight to Rome").HasQuestion)
}

func TestAnalyze_KeywordHitsStripPunctuation(t *testing.T) {
	signals := Analyze("Find the hotel!")
	require.Contains(t, signals.TaskActions, "find")
}

func TestAnalyze_HintsReflectSignals(t *testing.T) {
	signals := Analyze("find and search the data")

	assert.Contains(t, signals.SemanticHints, "Action words detected: find, search")
	assert.Contains(t, signals.SemanticHints, "Imperative form detected")
	assert.Contains(t, signals.SemanticHints, "Command-like structure detected")
}

func TestAnalyze_ConfigureStructure(t *testing.T) {
	signals := Analyze("select a different model for the crew")
	assert.True(t, signals.HasConfigureStructure)

	// Configure keyword without a directive verb or settings noun.
	signals = Analyze("the llm wrote a poem about autumn")
	assert.False(t, signals.HasConfigureStructure)
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0.0, normalizeScore(0))
	assert.Equal(t, 0.0, normalizeScore(-1))
	assert.InDelta(t, 0.6, normalizeScore(3), 0.001)
	assert.InDelta(t, 0.818, normalizeScore(9), 0.001)
	assert.Less(t, normalizeScore(100), 1.0)
}
