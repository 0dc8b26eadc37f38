// internal/common/llm/client.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crew-orchestrator/internal/common/config"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/common/metrics"
)

var (
	ErrLLMTimeout          = errors.New("LLM_TIMEOUT")
	ErrLLMCompletionFailed = errors.New("LLM_COMPLETION_FAILED")
)

// Message is a single chat message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// completionResponse mirrors the chat-completions wire shape.
type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Completer is the single capability the rest of the service needs from the
// LLM provider.
type Completer interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Client calls an OpenAI-compatible chat-completions endpoint.
type Client struct {
	config *config.LLMConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg *config.LLMConfig, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		// No client-level timeout, the per-call context carries the deadline.
		client: &http.Client{},
		logger: log.WithFields(map[string]interface{}{"component": "llm-client"}),
	}
}

// Complete issues one chat completion and returns the first choice's content.
// When the caller's context carries no deadline, the configured timeout
// bounds the call instead.
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if model == "" {
		model = c.config.DefaultModel
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline && c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Millisecond)
		defer cancel()
	}

	requestBody := map[string]interface{}{
		"model": model,
		"messages": []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		"max_tokens": c.config.MaxTokens,
	}

	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.LLMCompletions.WithLabelValues(model, "timeout").Inc()
				return "", ErrLLMTimeout
			}
		}

		// Fresh request per attempt, the body is consumed on each send.
		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/v1/chat/completions", bytes.NewBuffer(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrLLMCompletionFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			metrics.LLMCompletions.WithLabelValues(model, "timeout").Inc()
			return "", ErrLLMTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		metrics.LLMCompletions.WithLabelValues(model, "error").Inc()
		if ctx.Err() == context.DeadlineExceeded {
			return "", ErrLLMTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrLLMCompletionFailed, lastErr)
	}

	if resp == nil {
		metrics.LLMCompletions.WithLabelValues(model, "error").Inc()
		return "", fmt.Errorf("%w: no successful response after retries", ErrLLMCompletionFailed)
	}
	defer resp.Body.Close()

	var apiResponse completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		metrics.LLMCompletions.WithLabelValues(model, "error").Inc()
		return "", fmt.Errorf("%w: decode error: %v", ErrLLMCompletionFailed, err)
	}

	if len(apiResponse.Choices) == 0 {
		metrics.LLMCompletions.WithLabelValues(model, "error").Inc()
		return "", fmt.Errorf("%w: empty choices in response", ErrLLMCompletionFailed)
	}

	content := apiResponse.Choices[0].Message.Content

	c.logger.Debug("completion succeeded", map[string]interface{}{
		"model":         model,
		"contentLength": len(content),
	})
	metrics.LLMCompletions.WithLabelValues(model, "success").Inc()

	return content, nil
}
