package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/lowerlands/backend/internal/config"
)

// ErrNotConfigured is returned by every call of a client built without credentials.
var ErrNotConfigured = errors.New("completion service is not configured")

// Params are the generation parameters of a single completion call.
type Params struct {
	MaxTokens   int
	Temperature float32
}

// Completer sends an ordered message sequence to a completion service and
// returns the raw candidate text. Implementations make exactly one attempt.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message, params Params) (string, error)
}

// Unconfigured is the Completer used when credentials are missing. Each call
// fails, so turns degrade to the upstream fallback reply.
type Unconfigured struct {
	Reason string
}

// Complete always fails with ErrNotConfigured.
func (u Unconfigured) Complete(context.Context, []*schema.Message, Params) (string, error) {
	if u.Reason == "" {
		return "", ErrNotConfigured
	}
	return "", fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
}

// NewCompleter builds the client selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg config.AIConfig) (Completer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: provider %s has no credentials", ErrNotConfigured, cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return NewChatModelClient(chatModel), nil
	case config.ProviderDeepSeek:
		client, err := NewOpenAIClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel,
			WithBaseURL(cfg.DeepSeekBaseURL),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
