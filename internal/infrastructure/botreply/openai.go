// Package botreply writes the opening message of bot-held conversations.
package botreply

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/orris-inc/livedesk/internal/application/ticket/usecases"
	"github.com/orris-inc/livedesk/internal/shared/logger"
)

const (
	defaultRequestTimeout = 8 * time.Second
	maxGreetingTokens     = 120
)

const systemPrompt = `You are the first-line assistant of a customer support chat.
Write one short, friendly greeting (at most two sentences) that acknowledges the
customer's topic and says a human agent will join as soon as one is free.
Do not promise timelines. Reply with plain text only.`

// ChatCompleter is the part of the OpenAI client the responder uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIResponder asks a chat model for the greeting.
type OpenAIResponder struct {
	client  ChatCompleter
	model   string
	timeout time.Duration
	logger  logger.Interface
}

func NewOpenAIResponder(client ChatCompleter, model string, log logger.Interface) *OpenAIResponder {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIResponder{
		client:  client,
		model:   model,
		timeout: defaultRequestTimeout,
		logger:  log,
	}
}

// NewOpenAIResponderFromKey builds a responder on the default OpenAI client.
func NewOpenAIResponderFromKey(apiKey, model string, log logger.Interface) *OpenAIResponder {
	return NewOpenAIResponder(openai.NewClient(apiKey), model, log)
}

func (r *OpenAIResponder) Greeting(ctx context.Context, req usecases.GreetingRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     r.model,
		MaxTokens: maxGreetingTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		r.logger.Warnw("openai greeting request failed", "model", r.model, "error", err)
		return "", fmt.Errorf("failed to request greeting: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("greeting response has no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("greeting response is empty")
	}
	return text, nil
}

func userPrompt(req usecases.GreetingRequest) string {
	var b strings.Builder
	if req.BotName != "" {
		fmt.Fprintf(&b, "Your name is %s.\n", req.BotName)
	}
	if req.Guest {
		b.WriteString("The customer is not signed in.\n")
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "(no subject given)"
	}
	fmt.Fprintf(&b, "Conversation subject: %s", subject)
	return b.String()
}
