package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// chatCompletions is the subset of the OpenAI SDK the client uses.
type chatCompletions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...oaioption.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIClient implements LLMClient with OpenAI chat completions.
type OpenAIClient struct {
	chat   chatCompletions
	model  string
	tracer trace.Tracer
}

// NewOpenAIClient creates a client for apiKey. Extra options go to the SDK.
func NewOpenAIClient(apiKey, model string, opts ...oaioption.RequestOption) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("conversation: openai api key is required")
	}
	client := openai.NewClient(append([]oaioption.RequestOption{oaioption.WithAPIKey(apiKey)}, opts...)...)
	return newOpenAIClientWithService(&client.Chat.Completions, model), nil
}

func newOpenAIClientWithService(chat chatCompletions, model string) *OpenAIClient {
	if strings.TrimSpace(model) == "" {
		model = string(openai.ChatModelGPT4oMini)
	}
	return &OpenAIClient{
		chat:   chat,
		model:  model,
		tracer: otel.Tracer("wellness.internal.conversation.openai"),
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.openai_complete")
	defer span.End()

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case ChatRoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case ChatRoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	if len(messages) == 0 {
		return LLMResponse{}, errors.New("conversation: openai requires at least one message")
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}

	resp, err := c.chat.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		return LLMResponse{}, fmt.Errorf("conversation: openai completion failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("conversation: openai returned no choices")
	}
	choice := resp.Choices[0]
	return LLMResponse{
		Text:         strings.TrimSpace(choice.Message.Content),
		Provider:     "openai",
		FinishReason: choice.FinishReason,
		Tokens:       int(resp.Usage.TotalTokens),
	}, nil
}
