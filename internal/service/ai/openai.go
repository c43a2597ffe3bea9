package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to an OpenAI-compatible chat completions API such as DeepSeek.
type OpenAIClient struct {
	client oai.Client
	model  string
}

type openAIConfig struct {
	baseURL string
	timeout time.Duration
}

// OpenAIOption customizes an OpenAIClient.
type OpenAIOption func(*openAIConfig)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		c.baseURL = url
	}
}

// WithHTTPTimeout sets a per-request HTTP timeout on top of the caller's context.
func WithHTTPTimeout(d time.Duration) OpenAIOption {
	return func(c *openAIConfig) {
		c.timeout = d
	}
}

// NewOpenAIClient builds a client for apiKey and model.
func NewOpenAIClient(apiKey, model string, opts ...OpenAIOption) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: api key must not be empty", ErrNotConfigured)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: model must not be empty", ErrNotConfigured)
	}

	cfg := &openAIConfig{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// One attempt per turn; failures fall back instead.
		option.WithMaxRetries(0),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &OpenAIClient{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, messages []*schema.Message, params Params) (string, error) {
	req, err := c.buildParams(messages, params)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) buildParams(messages []*schema.Message, params Params) (oai.ChatCompletionNewParams, error) {
	converted := make([]oai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		m, err := convertMessage(msg)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		converted = append(converted, m)
	}

	req := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: converted,
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = param.NewOpt(int64(params.MaxTokens))
	}
	if params.Temperature > 0 {
		req.Temperature = param.NewOpt(float64(params.Temperature))
	}
	return req, nil
}

func convertMessage(msg *schema.Message) (oai.ChatCompletionMessageParamUnion, error) {
	if msg == nil {
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: nil message")
	}
	switch msg.Role {
	case schema.System:
		return oai.SystemMessage(msg.Content), nil
	case schema.User:
		return oai.UserMessage(msg.Content), nil
	case schema.Assistant:
		return oai.AssistantMessage(msg.Content), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unsupported message role %q", msg.Role)
	}
}
