// internal/generation/crew/service.go
// Crew generation service. Builds a full crew definition, agents and tasks
// included, from a single user request.
package crew

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

const templateKey = "generate_crew"

const systemPrompt = "You are an expert at assembling multi-agent crews. " +
	"Respond with a single JSON object and nothing else."

const defaultTemplate = `Design a crew of AI agents for the following request.

Return a JSON object with exactly these fields:
- "name": short name for the crew
- "process": "sequential" or "hierarchical"
- "agents": array of agent objects, each with "role", "goal" and "backstory"
- "tasks": array of task objects, each with "name", "description" and "expected_output"

Every task must be assignable to one of the agents.`

var crewSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"name", "process", "agents", "tasks"},
	"properties": map[string]interface{}{
		"name":    map[string]interface{}{"type": "string", "minLength": 1},
		"process": map[string]interface{}{"type": "string", "enum": []interface{}{"sequential", "hierarchical"}},
		"agents": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"role", "goal"},
			},
		},
		"tasks": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"name", "description"},
			},
		},
	},
}

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

func (s *Service) Generate(ctx context.Context, req models.CrewGenerationRequest, groupCtx *models.GroupContext) (map[string]interface{}, error) {
	template := defaultTemplate
	if s.templates != nil {
		stored, err := s.templates.GetTemplateContent(ctx, templateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("crew template lookup"), err)
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

	content, err := s.llm.Complete(ctx, req.Model, systemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("crew completion"), err)
	}

	doc, err := jsonx.ExtractObject(content)
	if err != nil {
		s.logger.Warn("crew generation produced unparsable output", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("crew response parse"), err)
	}

	if _, ok := doc["process"]; !ok {
		doc["process"] = "sequential"
	}

	if err := validation.ValidateDocument(crewSchema, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationValidationError("crew definition"), err)
	}

	return doc, nil
}
