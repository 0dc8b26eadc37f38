// internal/dispatch/resolver.go
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"crew-orchestrator/internal/common/jsonx"
	"crew-orchestrator/internal/common/llm"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/common/metrics"
)

const detectIntentTemplateKey = "detect_intent"

const classifierSystemPrompt = "You are an intent classification engine for a multi-agent crew " +
	"orchestration platform. Classify the user's message and respond with JSON only."

// defaultDetectIntentTemplate is used when no "detect_intent" template is
// stored for the tenant.
const defaultDetectIntentTemplate = `Classify the user message into exactly one of these intents:
- generate_agent: the user wants a single agent, assistant, or expert created
- generate_task: the user wants a concrete task performed or defined
- generate_crew: the user wants a team, crew, workflow, or pipeline of multiple agents
- configure_crew: the user wants to change settings, models, or tools
- conversation: the user is greeting, asking a general question, or chatting
- unknown: none of the above apply

Respond with a JSON object of the shape:
{"intent": "<intent>", "confidence": <0.0-1.0>, "extracted_info": {}, "suggested_prompt": "<rephrased prompt for the downstream service>"}

For configure_crew, set extracted_info.config_type to one of "llm", "maxr", "tools", or "general".`

// TemplateSource resolves optional prompt template text by key.
type TemplateSource interface {
	GetTemplateContent(ctx context.Context, key string) (string, error)
}

// Resolver produces the authoritative IntentResult for a message. The LLM
// does the heavy lifting, the semantic analyzer enriches its prompt and
// covers for it when the call fails.
type Resolver struct {
	llm       llm.Completer
	templates TemplateSource
	logger    logger.Logger
}

func NewResolver(completer llm.Completer, templates TemplateSource, log logger.Logger) *Resolver {
	return &Resolver{
		llm:       completer,
		templates: templates,
		logger:    log.WithFields(map[string]interface{}{"component": "intent-resolver"}),
	}
}

// Resolve classifies a message. It never fails for LLM-layer problems; those
// degrade to semantic-only classification.
func (r *Resolver) Resolve(ctx context.Context, message, model string) *IntentResult {
	signals := Analyze(message)

	result, err := r.classifyWithLLM(ctx, message, model, &signals)
	if err != nil {
		r.logger.Warn("llm classification failed, falling back to semantic analysis", map[string]interface{}{
			"model": model,
			"error": err.Error(),
		})
		metrics.IntentFallbacks.Inc()
		return semanticOnlyResult(message, &signals)
	}

	applySemanticOverride(result, &signals)

	return result
}

func (r *Resolver) classifyWithLLM(ctx context.Context, message, model string, signals *SemanticSignals) (*IntentResult, error) {
	template, err := r.templates.GetTemplateContent(ctx, detectIntentTemplateKey)
	if err != nil {
		return nil, fmt.Errorf("template fetch: %w", err)
	}
	if template == "" {
		template = defaultDetectIntentTemplate
	}

	userPrompt := buildClassificationPrompt(template, message, signals)

	content, err := r.llm.Complete(ctx, model, classifierSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	parsed, err := jsonx.ExtractObject(content)
	if err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}

	return repairResult(parsed, message, signals), nil
}

// buildClassificationPrompt appends the semantic analysis to the template as
// plain text so the model can use or override it.
func buildClassificationPrompt(template, message string, signals *SemanticSignals) string {
	var sb strings.Builder
	sb.WriteString(template)
	sb.WriteString("\n\nUser message: ")
	sb.WriteString(message)
	sb.WriteString("\n\nSemantic Analysis:\n")
	for _, hint := range signals.SemanticHints {
		sb.WriteString("- ")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}
	if len(signals.SemanticHints) == 0 {
		sb.WriteString("- No signals detected\n")
	}
	sb.WriteString(fmt.Sprintf("- Suggested intent: %s\n", signals.SuggestedIntent))
	return sb.String()
}

// repairResult fills missing fields of the parsed classification with
// semantic defaults.
func repairResult(parsed map[string]interface{}, message string, signals *SemanticSignals) *IntentResult {
	result := &IntentResult{
		Intent:          signals.SuggestedIntent,
		Confidence:      0.5,
		SuggestedPrompt: message,
	}

	if v, ok := parsed["intent"].(string); ok && v != "" {
		result.Intent = IntentName(v)
	}
	if v, ok := parsed["confidence"].(float64); ok {
		result.Confidence = clampConfidence(v)
	}
	if v, ok := parsed["extracted_info"].(map[string]interface{}); ok {
		result.ExtractedInfo = v
	} else {
		result.ExtractedInfo = map[string]interface{}{}
	}
	if v, ok := parsed["suggested_prompt"].(string); ok && v != "" {
		result.SuggestedPrompt = v
	}

	result.ExtractedInfo["semantic_analysis"] = *signals

	return result
}

// applySemanticOverride replaces the LLM's intent when the semantic analyzer
// disagrees with higher confidence. This guards against degenerate
// completions that default to conversation for clearly imperative requests.
func applySemanticOverride(result *IntentResult, signals *SemanticSignals) {
	semanticConfidence := normalizeScore(signals.TopScore())
	if semanticConfidence > result.Confidence && signals.SuggestedIntent != result.Intent {
		result.Intent = signals.SuggestedIntent
		result.Confidence = semanticConfidence
	}
}

// semanticOnlyResult is the full fallback when the LLM layer is unavailable.
// The 0.3 floor signals genuine uncertainty rather than zero belief.
func semanticOnlyResult(message string, signals *SemanticSignals) *IntentResult {
	confidence := normalizeScore(signals.TopScore())
	if confidence < 0.3 {
		confidence = 0.3
	}

	return &IntentResult{
		Intent:     signals.SuggestedIntent,
		Confidence: confidence,
		ExtractedInfo: map[string]interface{}{
			"semantic_analysis": *signals,
		},
		SuggestedPrompt: message,
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
