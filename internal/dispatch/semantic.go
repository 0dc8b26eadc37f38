// internal/dispatch/semantic.go
package dispatch

import (
	"sort"
	"strings"
	"unicode"
)

// Vocabulary sets for keyword matching. Built once, read-only afterwards, so
// concurrent Analyze calls share them safely.
var (
	taskActionWords = makeSet(
		"find", "search", "create", "analyze", "build", "get", "write",
		"generate", "compile", "make", "fetch", "list", "summarize",
		"research", "book", "plan", "compare", "translate", "calculate",
		"extract", "review", "draft", "collect",
	)

	conversationWords = makeSet(
		"hello", "hi", "hey", "thanks", "thank", "what", "how", "why",
		"when", "where", "who", "help", "please", "okay", "yes", "no",
	)

	questionWords = makeSet("what", "how", "why", "when", "where", "who")

	greetingWords = makeSet("hello", "hi", "hey", "greetings", "howdy")

	agentKeywords = makeSet(
		"agent", "assistant", "expert", "specialist", "advisor",
		"researcher", "analyst", "bot", "persona",
	)

	crewKeywords = makeSet(
		"team", "crew", "workflow", "pipeline", "multiple", "several",
		"group", "collaboration", "orchestrate",
	)

	pluralityWords = makeSet("multiple", "several", "team")

	configureKeywords = makeSet(
		"configure", "configuration", "settings", "setting", "llm",
		"model", "tools", "select", "change", "setup", "options",
		"temperature",
	)

	directiveVerbs = makeSet("configure", "change", "select", "set", "choose", "update", "switch")

	commandPrefixes = []string{"i need a", "i need to", "help me", "can you"}
)

// Scoring weights. Keyword hits weigh 3 (2 for agent and conversation so an
// action verb outranks a role noun on a single hit each), structural flags
// weigh 2, greeting weighs 3.
const (
	taskActionWeight   = 3
	crewKeywordWeight  = 3
	agentKeywordWeight = 2
	configureWeight    = 3
	conversationWeight = 2
	flagWeight         = 2
	greetingWeight     = 3
)

// maxDirectiveTokens is the message length (in tokens) below which a task
// action anywhere in the message still counts as command-like.
const maxDirectiveTokens = 12

// Analyze derives SemanticSignals from raw message text. It is a pure
// function: no I/O, no randomness, identical output for identical input.
func Analyze(message string) SemanticSignals {
	tokens := tokenize(message)

	signals := SemanticSignals{
		TaskActions:       matchVocabulary(tokens, taskActionWords),
		ConversationWords: matchVocabulary(tokens, conversationWords),
		AgentKeywords:     matchVocabulary(tokens, agentKeywords),
		CrewKeywords:      matchVocabulary(tokens, crewKeywords),
		ConfigureKeywords: matchVocabulary(tokens, configureKeywords),
		SuggestedIntent:   IntentUnknown,
	}

	signals.HasQuestion = strings.Contains(message, "?") || anyInSet(firstN(tokens, 4), questionWords)
	signals.HasGreeting = anyInSet(tokens, greetingWords)
	signals.HasImperative = anyInSet(firstN(tokens, 3), taskActionWords)
	signals.HasCommandStructure = hasCommandStructure(message, tokens, len(signals.TaskActions) > 0)
	signals.HasConfigureStructure = len(signals.ConfigureKeywords) > 0 &&
		(anyInSet(tokens, directiveVerbs) || strings.Contains(strings.ToLower(message), "settings"))

	signals.IntentScores = scoreIntents(&signals, tokens)
	signals.SuggestedIntent = suggestIntent(signals.IntentScores)
	signals.SemanticHints = buildHints(&signals)

	return signals
}

// tokenize lower-cases the message, splits on whitespace, and strips
// punctuation from token edges so "hotel?" still matches "hotel".
func tokenize(message string) []string {
	fields := strings.Fields(strings.ToLower(message))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func makeSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// matchVocabulary returns the sorted, de-duplicated tokens present in vocab.
func matchVocabulary(tokens []string, vocab map[string]struct{}) []string {
	seen := make(map[string]struct{})
	hits := []string{}
	for _, t := range tokens {
		if _, ok := vocab[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		hits = append(hits, t)
	}
	sort.Strings(hits)
	return hits
}

func anyInSet(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

func firstN(tokens []string, n int) []string {
	if len(tokens) < n {
		return tokens
	}
	return tokens[:n]
}

func hasCommandStructure(message string, tokens []string, hasActionWord bool) bool {
	if hasActionWord && len(tokens) <= maxDirectiveTokens {
		return true
	}
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, prefix := range commandPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func scoreIntents(s *SemanticSignals, tokens []string) map[IntentName]int {
	scores := map[IntentName]int{
		IntentGenerateTask:  taskActionWeight * len(s.TaskActions),
		IntentGenerateCrew:  crewKeywordWeight * len(s.CrewKeywords),
		IntentGenerateAgent: agentKeywordWeight * len(s.AgentKeywords),
		IntentConfigureCrew: configureWeight * len(s.ConfigureKeywords),
		IntentConversation:  conversationWeight * len(s.ConversationWords),
	}

	if s.HasImperative {
		scores[IntentGenerateTask] += flagWeight
	}
	if s.HasCommandStructure {
		scores[IntentGenerateTask] += flagWeight
	}
	if anyInSet(tokens, pluralityWords) {
		scores[IntentGenerateCrew] += flagWeight
	}
	if s.HasConfigureStructure {
		scores[IntentConfigureCrew] += flagWeight
	}
	if s.HasQuestion {
		scores[IntentConversation] += flagWeight
	}
	if s.HasGreeting {
		scores[IntentConversation] += greetingWeight
	}

	return scores
}

// suggestIntent picks the highest-scoring intent; ties resolve in
// intentPriority order. All-zero scores mean unknown.
func suggestIntent(scores map[IntentName]int) IntentName {
	best := IntentUnknown
	bestScore := 0
	for _, intent := range intentPriority {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}
	return best
}

func buildHints(s *SemanticSignals) []string {
	hints := []string{}
	if len(s.TaskActions) > 0 {
		hints = append(hints, "Action words detected: "+strings.Join(s.TaskActions, ", "))
	}
	if len(s.ConversationWords) > 0 {
		hints = append(hints, "Conversation words detected: "+strings.Join(s.ConversationWords, ", "))
	}
	if len(s.AgentKeywords) > 0 {
		hints = append(hints, "Agent keywords detected: "+strings.Join(s.AgentKeywords, ", "))
	}
	if len(s.CrewKeywords) > 0 {
		hints = append(hints, "Crew keywords detected: "+strings.Join(s.CrewKeywords, ", "))
	}
	if len(s.ConfigureKeywords) > 0 {
		hints = append(hints, "Configuration keywords detected: "+strings.Join(s.ConfigureKeywords, ", "))
	}
	if s.HasImperative {
		hints = append(hints, "Imperative form detected")
	}
	if s.HasQuestion {
		hints = append(hints, "Question detected")
	}
	if s.HasGreeting {
		hints = append(hints, "Greeting detected")
	}
	if s.HasCommandStructure {
		hints = append(hints, "Command-like structure detected")
	}
	if s.HasConfigureStructure {
		hints = append(hints, "Configuration request structure detected")
	}
	return hints
}

// normalizeScore maps a raw intent score to a confidence in [0,1] with a
// diminishing-returns curve: 3 -> 0.6, 9 -> ~0.82, 19 -> ~0.9.
func normalizeScore(score int) float64 {
	if score <= 0 {
		return 0
	}
	c := float64(score) / (float64(score) + 2.0)
	if c > 1.0 {
		return 1.0
	}
	return c
}
