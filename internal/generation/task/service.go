// internal/generation/task/service.go
// Task generation service. Produces a structured task definition from
// free-form request text.
package task

import (
	"context"
	"fmt"

	stderrors "crew-orchestrator/internal/common/errors"
	"crew-orchestrator/internal/common/jsonx"
	"crew-orchestrator/internal/common/llm"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/common/validation"
	"crew-orchestrator/internal/models"
)

const templateKey = "generate_task"

const systemPrompt = "You are an expert at decomposing work into actionable tasks. " +
	"Respond with a single JSON object and nothing else."

const defaultTemplate = `Create a task definition for the following request.

Return a JSON object with exactly these fields:
- "name": short snake_case identifier
- "description": what must be done, with all constraints from the request
- "expected_output": concrete description of the deliverable
- "agent_hint": short description of the agent best suited to run this`

var taskSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"name", "description", "expected_output"},
	"properties": map[string]interface{}{
		"name":            map[string]interface{}{"type": "string", "minLength": 1},
		"description":     map[string]interface{}{"type": "string", "minLength": 1},
		"expected_output": map[string]interface{}{"type": "string", "minLength": 1},
		"agent_hint":      map[string]interface{}{"type": "string"},
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

func (s *Service) Generate(ctx context.Context, req models.TaskGenerationRequest, groupCtx *models.GroupContext) (map[string]interface{}, error) {
	template := defaultTemplate
	if s.templates != nil {
		stored, err := s.templates.GetTemplateContent(ctx, templateKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("task template lookup"), err)
		}
		if stored != "" {
			template = stored
		}
	}

	userPrompt := template + "\n\nRequest: " + req.Text

	content, err := s.llm.Complete(ctx, req.Model, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("task completion"), err)
	}

	doc, err := jsonx.ExtractObject(content)
	if err != nil {
		s.logger.Warn("task generation produced unparsable output", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationFailedError("task response parse"), err)
	}

	if _, ok := doc["agent_hint"]; !ok {
		doc["agent_hint"] = ""
	}

	if err := validation.ValidateDocument(taskSchema, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", stderrors.NewGenerationValidationError("task definition"), err)
	}

	return doc, nil
}
