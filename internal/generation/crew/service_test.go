// internal/generation/crew/service_test.go
package crew

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "crew-orchestrator/internal/common/errors"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/models"
)

type fakeCompleter struct {
	content  string
	err      error
	lastUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	f.lastUser = userPrompt
	return f.content, f.err
}

type fakeTemplates struct {
	content string
	err     error
}

func (f *fakeTemplates) GetTemplateContent(ctx context.Context, key string) (string, error) {
	return f.content, f.err
}

const validCrewJSON = `{
	"name": "market_research_crew",
	"process": "sequential",
	"agents": [
		{"role": "Researcher", "goal": "Collect market data", "backstory": "Analyst."},
		{"role": "Writer", "goal": "Write the report", "backstory": "Journalist."}
	],
	"tasks": [
		{"name": "collect_data", "description": "Gather sources", "expected_output": "Source list"},
		{"name": "write_report", "description": "Draft the report", "expected_output": "Report"}
	]
}`

func TestGenerate_ReturnsValidatedCrew(t *testing.T) {
	completer := &fakeCompleter{content: validCrewJSON}
	svc := NewService(completer, &fakeTemplates{}, logger.NewTestLogger(t))

	doc, err := svc.Generate(context.Background(), models.CrewGenerationRequest{
		Prompt: "build a team for market analysis",
		Model:  "gpt-4",
		Tools:  []string{"web_search", "scraper"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "market_research_crew", doc["name"])
	assert.Len(t, doc["agents"], 2)
	assert.Len(t, doc["tasks"], 2)
	assert.Contains(t, completer.lastUser, "build a team for market analysis")
	assert.Contains(t, completer.lastUser, "web_search, scraper")
}

func TestGenerate_DefaultsProcessToSequential(t *testing.T) {
	completer := &fakeCompleter{content: `{
		"name": "c",
		"agents": [{"role": "r", "goal": "g"}],
		"tasks": [{"name": "t", "description": "d"}]
	}`}
	svc := NewService(completer, &fakeTemplates{}, logger.NewTestLogger(t))

	doc, err := svc.Generate(context.Background(), models.CrewGenerationRequest{Prompt: "anything"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "sequential", doc["process"])
}

func TestGenerate_RejectsEmptyAgentList(t *testing.T) {
	completer := &fakeCompleter{content: `{
		"name": "c",
		"process": "sequential",
		"agents": [],
		"tasks": [{"name": "t", "description": "d"}]
	}`}
	svc := NewService(completer, &fakeTemplates{}, logger.NewTestLogger(t))

	_, err := svc.Generate(context.Background(), models.CrewGenerationRequest{Prompt: "anything"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(stderrors.ErrCodeGenerationValidationFailed))
}

func TestGenerate_RejectsUnknownProcess(t *testing.T) {
	completer := &fakeCompleter{content: `{
		"name": "c",
		"process": "chaotic",
		"agents": [{"role": "r", "goal": "g"}],
		"tasks": [{"name": "t", "description": "d"}]
	}`}
	svc := NewService(completer, &fakeTemplates{}, logger.NewTestLogger(t))

	_, err := svc.Generate(context.Background(), models.CrewGenerationRequest{Prompt: "anything"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(stderrors.ErrCodeGenerationValidationFailed))
}

func TestGenerate_WrapsCompletionFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	svc := NewService(completer, &fakeTemplates{}, logger.NewTestLogger(t))

	_, err := svc.Generate(context.Background(), models.CrewGenerationRequest{Prompt: "anything"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(stderrors.ErrCodeGenerationFailed))
}
