// internal/generation/agent/service.go
// Agent generation service. Turns a natural-language description into a
// structured agent definition via a single LLM completion.
package agent

import (
	"context"
	"fmt"
	"strings"

	stderrors "crew-orchestrator/internal/common/errors"
	"crew-orchestrator/internal/common/jsonx"
	"crew-orchestrator/internal/common/llm"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/common/validation"
	"crew-orchestrator/internal/models"
)

const templateKey = "generate_agent"

const systemPrompt = "You are an expert at designing AI agents. " +
	"Respond with a single JSON object and nothing else."

const defaultTemplate = `Design an AI agent for the following request.

Return a JSON object with exactly these fields:
- "role": short professional title for the agent
- "goal": one sentence describing what the agent must achieve
- "backstory": two or three sentences of relevant background
- "tools": array of tool names the agent should use
- "llm": the model name to run the agent on`

// agentSchema constrains the LLM output to a usable agent definition.
var agentSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"role", "goal", "backstory"},
	"properties": map[string]interface{}{
		"role":      map[string]interface{}{"type": "string", "minLength": 1},
		"goal":      map[string]interface{}{"type": "string", "minLength": 1},
		"backstory": map[string]interface{}{"type": "string"},
		"tools": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"llm": map[string]interface{}{"type": "string"},
	},
}

// TemplateSource provides prompt templates by key. An empty result means no
// template is stored and the built-in default applies.
type TemplateSource interface {
	GetTemplateContent(ctx context.Context, key string) (string, error)
}

type Service struct {
	llm       llm.Completer
	templates TemplateSource
	logger    logger.Logger
}

func NewService(completer llm.Completer, templates TemplateSource, log logger.Logger) *Service {
	return &Service{
		llm:       completer,
		templates: templates,
		logger:    log,
	}
}

// Generate produces an agent definition for the request. The LLM output is
// parsed tolerantly and validated against agentSchema before being returned.
func (s *Service) Generate(ctx context.Context, req models.AgentGenerationRequest, groupCtx *models.GroupContext) (map[string]interface{}, error) {
	userPrompt, err := s.buildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	content, err := s.llm.Complete(ctx, req.Model, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("agent completion"), err)
	}

	doc, err := jsonx.ExtractObject(content)
	if err != nil {
		s.logger.Warn("agent generation produced unparsable output", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("agent response parse"), err)
	}

	normalizeAgent(doc, req)

	if err := validation.ValidateDocument(agentSchema, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationValidationError("agent definition"), err)
	}

	return doc, nil
}

func (s *Service) buildPrompt(ctx context.Context, req models.AgentGenerationRequest) (string, error) {
	template := defaultTemplate
	if s.templates != nil {
		stored, err := s.templates.GetTemplateContent(ctx, templateKey)
		if err != nil {
			return "", fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("agent template lookup"), err)
		}
		if stored != "" {
			template = stored
		}
	}

	var b strings.Builder
	b.WriteString(template)
	b.WriteString("\n\nRequest: ")
	b.WriteString(req.Prompt)
	if len(req.Tools) > 0 {
		b.WriteString("\nAvailable tools: ")
		b.WriteString(strings.Join(req.Tools, ", "))
	}
	return b.String(), nil
}

// normalizeAgent fills fields the model commonly omits so valid definitions
// are not rejected over absent optional data.
func normalizeAgent(doc map[string]interface{}, req models.AgentGenerationRequest) {
	if _, ok := doc["tools"]; !ok {
		tools := make([]interface{}, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = t
		}
		doc["tools"] = tools
	}
	if _, ok := doc["llm"]; !ok && req.Model != "" {
		doc["llm"] = req.Model
	}
	if _, ok := doc["backstory"]; !ok {
		doc["backstory"] = ""
	}
}
