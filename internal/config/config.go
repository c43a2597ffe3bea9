package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Supported completion providers.
const (
	ProviderDeepSeek = "deepseek"
	ProviderArk      = "ark"
)

// MemoryStoragePath selects the in-process store instead of SQLite.
const MemoryStoragePath = ":memory:"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Turn    TurnConfig
	Storage StorageConfig
	Admin   AdminConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return loadFrom(env.ToMap(os.Environ()))
}

func loadFrom(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	addr, err := parseAddr(c.Server.Port)
	if err != nil {
		return err
	}
	c.Server.Addr = addr
	c.Server.CORSOrigins = trimList(c.Server.CORSOrigins)

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case ProviderDeepSeek, ProviderArk:
	default:
		return fmt.Errorf("invalid LLM_PROVIDER value %q", c.AI.Provider)
	}

	if c.Turn.HistoryLimit < 1 {
		c.Turn.HistoryLimit = 1
	}
	if c.Turn.MaxTokens < 1 {
		return fmt.Errorf("invalid TURN_MAX_TOKENS value %d", c.Turn.MaxTokens)
	}
	if c.Turn.Timeout <= 0 {
		return fmt.Errorf("invalid TURN_TIMEOUT value %s", c.Turn.Timeout)
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = MemoryStoragePath
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port        string   `env:"PORT" envDefault:"8080"`
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	Addr        string
}

// parseAddr 解析服务器监听地址。
func parseAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
	if strings.Contains(port, ":") {
		return port, nil
	}
	return ":" + port, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"deepseek"`

	DeepSeekAPIKey  string `env:"DEEPSEEK_API_KEY"`
	DeepSeekBaseURL string `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	DeepSeekModel   string `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`

	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"Model"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// Enabled 表示所选服务商是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderDeepSeek:
		return c.DeepSeekAPIKey != "" && c.DeepSeekModel != ""
	default:
		return false
	}
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
		return nil, fmt.Errorf("Ark credentials or model missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
}

// TurnConfig tunes the turn engine.
type TurnConfig struct {
	HistoryLimit int           `env:"TURN_HISTORY_LIMIT" envDefault:"6"`
	MaxTokens    int           `env:"TURN_MAX_TOKENS" envDefault:"120"`
	Temperature  float32       `env:"TURN_TEMPERATURE" envDefault:"0.55"`
	Timeout      time.Duration `env:"TURN_TIMEOUT" envDefault:"20s"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Path string `env:"DATABASE_PATH" envDefault:"game.db"`
}

// InMemory reports whether the in-process store is selected.
func (c StorageConfig) InMemory() bool {
	return c.Path == MemoryStoragePath
}

// AdminConfig guards the admin endpoints.
type AdminConfig struct {
	Password string `env:"ADMIN_PASSWORD" envDefault:"changeme"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
}

func trimList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
