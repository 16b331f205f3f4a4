package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider calls the OpenAI chat completions API. Web-augmented calls
// use the search-preview model variant instead of a tool parameter.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	searchModel string
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

func NewOpenAIProvider(apiKey, model, searchModel string, temperature float64, timeout time.Duration, logger *zap.Logger) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		searchModel: searchModel,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

func (p *OpenAIProvider) Complete(ctx context.Context, systemInstructions string, history []ChatMessage, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemInstructions,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	model := p.model
	if opts.WebAugmented && p.searchModel != "" {
		model = p.searchModel
	}

	req := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: opts.MaxTokens,
	}
	// Search-preview models reject a temperature parameter.
	if !opts.WebAugmented {
		req.Temperature = float32(p.temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		p.logger.Error("Completion request failed",
			zap.Error(err),
			zap.String("model", model))
		return "", fmt.Errorf("error creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("completion returned empty content")
	}
	return text, nil
}
