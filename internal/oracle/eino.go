package oracle

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ollama"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoModel completes prompts through any eino chat model.
type EinoModel struct {
	chat einomodel.BaseChatModel
}

// NewEinoModel wraps an existing eino chat model.
func NewEinoModel(chat einomodel.BaseChatModel) *EinoModel {
	return &EinoModel{chat: chat}
}

// NewOllamaModel builds an EinoModel backed by a local Ollama server.
func NewOllamaModel(ctx context.Context, baseURL, modelName string) (*EinoModel, error) {
	chat, err := ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
		BaseURL: baseURL,
		Model:   modelName,
	})
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model: %w", err)
	}
	return NewEinoModel(chat), nil
}

// Complete sends a system and user message pair and returns the reply content.
func (m *EinoModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := m.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(prompt),
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("chat model returned no message")
	}
	return resp.Content, nil
}
