// Package llm wraps the Anthropic Claude API behind interfaces.LLMService
// for the Analyzer's classification stage (step 4 of the classification
// pipeline: heuristics inconclusive -> ask the model).
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/common"
	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// ClaudeService implements interfaces.LLMService using the Anthropic Claude API.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// convertMessages converts []interfaces.Message to Claude's MessageParam
// format, extracting the first system message (if any) for the System field.
func convertMessages(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUser := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUser = true
			break
		}
	}
	if !hasUser {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}
		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return claudeMessages, systemText, nil
}

// NewClaudeService resolves the API key (env > KV store > config fallback,
// per §6) and builds a ready-to-use Claude LLM service.
func NewClaudeService(ctx context.Context, cfg *common.ClaudeConfig, kv interfaces.KeyValueStorage, logger arbor.ILogger) (*ClaudeService, error) {
	apiKey, err := common.ResolveAPIKey(ctx, kv, "ANTHROPIC_API_KEY", cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("anthropic API key is required for Claude classification (set via ANTHROPIC_API_KEY, KV store, or claude.api_key): %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "claude-haiku-4-5-20251001"
	}

	timeoutMS := cfg.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = 10_000
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	svc := &ClaudeService{
		config:    &common.ClaudeConfig{APIKey: apiKey, Model: model, MaxTokens: maxTokens, Temperature: cfg.Temperature, TimeoutMS: timeoutMS},
		logger:    logger,
		client:    &client,
		timeout:   time.Duration(timeoutMS) * time.Millisecond,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", model).
		Dur("timeout", svc.timeout).
		Float32("temperature", cfg.Temperature).
		Int("max_tokens", maxTokens).
		Msg("claude LLM service initialized")

	return svc, nil
}

// Chat sends messages to Claude and returns the assistant's text response.
func (s *ClaudeService) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	response, err := s.generateCompletion(timeoutCtx, messages)
	if err != nil {
		s.logger.Error().Err(err).Int("message_count", len(messages)).Msg("claude chat completion failed")
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(start)).
		Msg("claude chat completion completed")

	return response, nil
}

// HealthCheck exercises the client with a minimal probe.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("claude client is not initialized")
	}

	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(healthCtx, []interfaces.Message{{Role: "user", Content: "ping"}})
	if err != nil {
		return fmt.Errorf("claude health check failed: %w", err)
	}
	if len(strings.TrimSpace(response)) == 0 {
		return fmt.Errorf("claude health check returned an empty response")
	}
	return nil
}

func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

// ModelTag reports the Claude model identifier used for classification
// records' model_tag field when a result came from the LLM path (§3:
// "heuristic, cache, fallback, or LLM model identifier"). Exposed as an
// optional interface beyond interfaces.LLMService so callers that don't care
// about it aren't forced to implement it.
func (s *ClaudeService) ModelTag() string {
	return s.config.Model
}

func (s *ClaudeService) generateCompletion(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessages(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemText}}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated by claude")
	}
	return out.String(), nil
}
