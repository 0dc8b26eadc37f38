// internal/dispatch/models.go
package dispatch

// IntentName is the classified user goal for a message.
type IntentName string

const (
	IntentGenerateAgent IntentName = "generate_agent"
	IntentGenerateTask  IntentName = "generate_task"
	IntentGenerateCrew  IntentName = "generate_crew"
	IntentConfigureCrew IntentName = "configure_crew"
	IntentConversation  IntentName = "conversation"
	IntentUnknown       IntentName = "unknown"
)

// intentPriority is the tie-break order when intent scores are equal. Action
// verbs outrank role nouns, so generate_task sits above generate_agent.
var intentPriority = []IntentName{
	IntentGenerateTask,
	IntentGenerateCrew,
	IntentGenerateAgent,
	IntentConfigureCrew,
	IntentConversation,
}

// SemanticSignals is the deterministic feature bundle derived from a message.
// It enriches the classification prompt and doubles as the fallback
// classifier when the LLM is unavailable.
type SemanticSignals struct {
	TaskActions           []string           `json:"task_actions"`
	ConversationWords     []string           `json:"conversation_words"`
	AgentKeywords         []string           `json:"agent_keywords"`
	CrewKeywords          []string           `json:"crew_keywords"`
	ConfigureKeywords     []string           `json:"configure_keywords"`
	HasImperative         bool               `json:"has_imperative"`
	HasQuestion           bool               `json:"has_question"`
	HasGreeting           bool               `json:"has_greeting"`
	HasCommandStructure   bool               `json:"has_command_structure"`
	HasConfigureStructure bool               `json:"has_configure_structure"`
	IntentScores          map[IntentName]int `json:"intent_scores"`
	SuggestedIntent       IntentName         `json:"suggested_intent"`
	SemanticHints         []string           `json:"semantic_hints"`
}

// TopScore returns the score of the suggested intent.
func (s *SemanticSignals) TopScore() int {
	return s.IntentScores[s.SuggestedIntent]
}

// IntentResult is the authoritative classification outcome for one message.
type IntentResult struct {
	Intent          IntentName             `json:"intent"`
	Confidence      float64                `json:"confidence"`
	ExtractedInfo   map[string]interface{} `json:"extracted_info"`
	SuggestedPrompt string                 `json:"suggested_prompt"`
}

// DispatcherInfo summarizes the classification in the dispatch response.
type DispatcherInfo struct {
	Intent        IntentName             `json:"intent"`
	Confidence    float64                `json:"confidence"`
	ExtractedInfo map[string]interface{} `json:"extracted_info"`
}

// DispatchResult is the final output of a dispatch call. ServiceCalled is
// empty when no generation service was invoked.
type DispatchResult struct {
	Dispatcher       DispatcherInfo         `json:"dispatcher"`
	GenerationResult map[string]interface{} `json:"generation_result"`
	ServiceCalled    IntentName             `json:"service_called,omitempty"`
}
