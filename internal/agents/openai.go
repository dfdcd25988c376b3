package agents

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/graphflowhq/graphflow/internal/config"
)

// OpenAIAgent generates step output through the OpenAI chat completion API.
// One instance backs every agent kind; the kind only differs in the system
// prompt the node configuration supplies.
type OpenAIAgent struct {
	client *openai.Client
	model  string
	name   string
}

func NewOpenAIAgent(name string) (*OpenAIAgent, error) {
	apiKey := config.GetSystemSettingString(config.OPENAI_API_KEY)
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided (set %s)", config.OPENAI_API_KEY)
	}
	return &OpenAIAgent{
		client: openai.NewClient(apiKey),
		model:  config.GetSystemSettingString(config.OPENAI_MODEL),
		name:   name,
	}, nil
}

func (a *OpenAIAgent) Execute(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if prompt == "" {
		prompt = req.Label
	}

	messages := []openai.ChatCompletionMessage{}
	if sys, ok := req.Config["systemPrompt"].(string); ok && sys != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: sys,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: prompt,
	})

	model := a.model
	if m, ok := req.Config["model"].(string); ok && m != "" {
		model = m
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *OpenAIAgent) Name() string {
	return a.name
}
