// internal/dispatch/dispatcher.go

// Package dispatch classifies free-text user messages into generation
// intents and routes them to the matching generation service.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/common/metrics"
	"crew-orchestrator/internal/models"
)

// Generation collaborators. Each service accepts its request value object
// plus an optional group context and returns a JSON-serializable payload.
type (
	AgentGenerator interface {
		Generate(ctx context.Context, req models.AgentGenerationRequest, groupCtx *models.GroupContext) (map[string]interface{}, error)
	}

	TaskGenerator interface {
		Generate(ctx context.Context, req models.TaskGenerationRequest, groupCtx *models.GroupContext) (map[string]interface{}, error)
	}

	CrewGenerator interface {
		Generate(ctx context.Context, req models.CrewGenerationRequest, groupCtx *models.GroupContext) (map[string]interface{}, error)
	}
)

// AuditSink records interactions. Failures are swallowed by the dispatcher.
type AuditSink interface {
	CreateLog(ctx context.Context, endpoint, prompt, response, model, status, errorMessage string, groupCtx *models.GroupContext) error
}

// IntentResolver produces the classification for a message.
type IntentResolver interface {
	Resolve(ctx context.Context, message, model string) *IntentResult
}

// Dispatcher is the top-level entry point of the intent dispatch subsystem.
// It holds no per-request state; concurrent Dispatch calls are independent.
type Dispatcher struct {
	resolver     IntentResolver
	agents       AgentGenerator
	tasks        TaskGenerator
	crews        CrewGenerator
	audit        AuditSink
	defaultModel string
	logger       logger.Logger
}

func NewDispatcher(
	resolver IntentResolver,
	agents AgentGenerator,
	tasks TaskGenerator,
	crews CrewGenerator,
	audit AuditSink,
	defaultModel string,
	log logger.Logger,
) *Dispatcher {
	return &Dispatcher{
		resolver:     resolver,
		agents:       agents,
		tasks:        tasks,
		crews:        crews,
		audit:        audit,
		defaultModel: defaultModel,
		logger:       log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// examplePrompts is offered to the user when no generation service applies.
var examplePrompts = []string{
	"Create an agent that researches travel destinations",
	"Find the best restaurants in Berlin",
	"Build a team to write a market analysis report",
	"Configure the LLM settings",
}

// Dispatch resolves the message intent, records the interaction, and routes
// to the matching generation service. Generation-service errors are logged
// and re-raised unchanged; classification and audit failures never surface.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.DispatchRequest, groupCtx *models.GroupContext) (*DispatchResult, error) {
	started := time.Now()

	model := req.Model
	if model == "" {
		model = d.defaultModel
	}

	result := d.resolver.Resolve(ctx, req.Message, model)

	d.logger.Info("intent resolved", map[string]interface{}{
		"intent":     result.Intent,
		"confidence": result.Confidence,
	})

	d.recordInteraction(ctx, "detect_intent", req.Message, result, model, "", groupCtx)

	prompt := result.SuggestedPrompt
	if prompt == "" {
		prompt = req.Message
	}

	var generationResult map[string]interface{}
	var serviceCalled IntentName
	var err error

	switch result.Intent {
	case IntentGenerateAgent:
		generationResult, err = d.agents.Generate(ctx, models.AgentGenerationRequest{
			Prompt: prompt,
			Model:  model,
			Tools:  req.Tools,
		}, groupCtx)
		serviceCalled = IntentGenerateAgent

	case IntentGenerateTask:
		generationResult, err = d.tasks.Generate(ctx, models.TaskGenerationRequest{
			Text:  prompt,
			Model: model,
		}, groupCtx)
		serviceCalled = IntentGenerateTask

	case IntentGenerateCrew:
		generationResult, err = d.crews.Generate(ctx, models.CrewGenerationRequest{
			Prompt: prompt,
			Model:  model,
			Tools:  req.Tools,
		}, groupCtx)
		serviceCalled = IntentGenerateCrew

	case IntentConfigureCrew:
		generationResult = configureCrewResponse(result.ExtractedInfo)

	case IntentConversation:
		generationResult = map[string]interface{}{
			"type":        "conversation",
			"message":     "Happy to help! Tell me what you'd like to build and I'll set it up.",
			"suggestions": examplePrompts,
		}

	default:
		generationResult = map[string]interface{}{
			"type":        "unknown",
			"message":     "I'm not sure what you'd like to do. Here are some things you can ask for:",
			"suggestions": examplePrompts,
		}
	}

	if err != nil {
		d.logger.Error("generation service failed", map[string]interface{}{
			"intent": result.Intent,
			"error":  err.Error(),
		})
		d.recordInteraction(ctx, string(result.Intent), req.Message, result, model, err.Error(), groupCtx)
		metrics.DispatchesFailed.WithLabelValues(string(result.Intent), "GENERATION_FAILED").Inc()
		return nil, err
	}

	metrics.DispatchesCompleted.WithLabelValues(string(result.Intent)).Inc()
	metrics.DispatchDuration.WithLabelValues(string(result.Intent)).Observe(time.Since(started).Seconds())

	return &DispatchResult{
		Dispatcher: DispatcherInfo{
			Intent:        result.Intent,
			Confidence:    result.Confidence,
			ExtractedInfo: result.ExtractedInfo,
		},
		GenerationResult: generationResult,
		ServiceCalled:    serviceCalled,
	}, nil
}

// recordInteraction writes an audit entry. Audit failures must never abort
// the dispatch flow, so they are logged and discarded here.
func (d *Dispatcher) recordInteraction(ctx context.Context, endpoint, prompt string, result *IntentResult, model, errorMessage string, groupCtx *models.GroupContext) {
	if d.audit == nil {
		return
	}

	status := "success"
	if errorMessage != "" {
		status = "error"
	}

	response, _ := json.Marshal(result)

	if err := d.audit.CreateLog(ctx, endpoint, prompt, string(response), model, status, errorMessage, groupCtx); err != nil {
		d.logger.Warn("audit log write failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}
}

// configureCrewResponse maps extracted_info.config_type onto the dialog
// actions the UI should open. Unrecognized or missing types open everything.
func configureCrewResponse(extractedInfo map[string]interface{}) map[string]interface{} {
	configType := "general"
	if v, ok := extractedInfo["config_type"].(string); ok && v != "" {
		configType = v
	}

	openLLM, openMaxr, openTools := false, false, false
	switch configType {
	case "llm":
		openLLM = true
	case "maxr":
		openMaxr = true
	case "tools":
		openTools = true
	default:
		openLLM, openMaxr, openTools = true, true, true
	}

	return map[string]interface{}{
		"type":        "configure_crew",
		"config_type": configType,
		"actions": map[string]interface{}{
			"open_llm_dialog":   openLLM,
			"open_maxr_dialog":  openMaxr,
			"open_tools_dialog": openTools,
		},
	}
}
