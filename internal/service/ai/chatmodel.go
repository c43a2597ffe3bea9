package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ChatModelClient adapts an eino chat model (Ark in production) to Completer.
type ChatModelClient struct {
	chatModel model.BaseChatModel
}

// NewChatModelClient wraps chatModel.
func NewChatModelClient(chatModel model.BaseChatModel) *ChatModelClient {
	return &ChatModelClient{chatModel: chatModel}
}

// Complete runs a single non-streaming generation.
func (c *ChatModelClient) Complete(ctx context.Context, messages []*schema.Message, params Params) (string, error) {
	if c == nil || c.chatModel == nil {
		return "", ErrNotConfigured
	}

	var opts []model.Option
	if params.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(params.MaxTokens))
	}
	if params.Temperature > 0 {
		opts = append(opts, model.WithTemperature(params.Temperature))
	}

	response, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("chat model generate: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("chat model returned no message")
	}
	return response.Content, nil
}
