// Package turn runs one game turn: it builds the prompt from the session's
// profile, state and recent history, calls the completion service once,
// repairs the candidate into the output contract and records the exchange.
package turn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	"github.com/zhouzirui/lowerlands/backend/internal/model/world"
	"github.com/zhouzirui/lowerlands/backend/internal/observe"
	"github.com/zhouzirui/lowerlands/backend/internal/service/ai"
)

// ErrMessageRequired is returned for a blank player message.
var ErrMessageRequired = errors.New("message is required")

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxTokens   = 120
	defaultTemperature = 0.55
	persistTimeout     = 5 * time.Second
)

// Store is the persistence the engine needs.
type Store interface {
	ProfileReader
	TurnReader
	AppendTurnPair(ctx context.Context, sessionID, userContent, assistantContent string) error
}

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	HistoryLimit int
	Timeout      time.Duration
	MaxTokens    int
	Temperature  float32
}

func (c Config) withDefaults() Config {
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = DefaultHistoryLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaultMaxTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	return c
}

// Engine runs game turns.
type Engine struct {
	store     Store
	completer ai.Completer
	contexts  *ContextBuilder
	history   *HistoryWindow
	prompts   *PromptAssembler
	cfg       Config
	metrics   *observe.Metrics
	logger    *zap.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics records turn outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine wires an engine over store and completer.
func NewEngine(store Store, completer ai.Completer, setting world.Setting, cfg Config, opts ...Option) *Engine {
	if completer == nil {
		completer = ai.Unconfigured{}
	}
	e := &Engine{
		store:     store,
		completer: completer,
		cfg:       cfg.withDefaults(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.contexts = NewContextBuilder(store, setting, e.logger)
	e.history = NewHistoryWindow(store, e.cfg.HistoryLimit)
	e.prompts = NewPromptAssembler(setting.StyleDirective(), ContractDirective)
	return e
}

// RunTurn answers one player message. Upstream failures are masked by
// UpstreamFallbackReply and persistence failures are only logged, so the
// only errors are a blank message or an unbuildable prompt.
func (e *Engine) RunTurn(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", game.ErrSessionRequired
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrMessageRequired
	}

	contextBlock := e.contexts.Build(ctx, sessionID)
	history, err := e.history.Recent(ctx, sessionID, 0)
	if err != nil {
		e.logger.Warn("turn history unavailable, continuing without it",
			zap.String("session", sessionID),
			zap.Error(err),
		)
	}

	messages, err := e.prompts.Assemble(ctx, contextBlock, history, message)
	if err != nil {
		return "", err
	}

	reply, outcome := e.complete(ctx, sessionID, messages)
	e.persist(ctx, sessionID, message, reply)
	e.metrics.RecordTurn(ctx, outcome)

	e.logger.Debug("turn finished",
		zap.String("session", sessionID),
		zap.String("outcome", outcome),
		zap.Int("history", len(history)),
		zap.Int("reply_len", len([]rune(reply))),
	)
	return reply, nil
}

// History returns up to limit recent turns, oldest first. A non-positive
// limit uses the configured window.
func (e *Engine) History(ctx context.Context, sessionID string, limit int) ([]game.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, game.ErrSessionRequired
	}
	return e.history.Recent(ctx, sessionID, limit)
}

// complete makes the single completion attempt and repairs its result.
// The call survives caller cancellation and is bounded by cfg.Timeout.
func (e *Engine) complete(ctx context.Context, sessionID string, messages []*schema.Message) (string, string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
	defer cancel()

	start := time.Now()
	candidate, err := e.completer.Complete(callCtx, messages, ai.Params{
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	e.metrics.ObserveCompletion(ctx, time.Since(start), err)

	if err != nil {
		e.logger.Error("completion failed, using fallback reply",
			zap.String("session", sessionID),
			zap.Error(err),
		)
		return Repair(UpstreamFallbackReply), observe.OutcomeUpstreamFailure
	}

	reply := Repair(candidate)
	switch trimmed := strings.TrimSpace(candidate); {
	case trimmed == "":
		return reply, observe.OutcomeEmpty
	case reply != trimmed:
		return reply, observe.OutcomeRepaired
	default:
		return reply, observe.OutcomeOK
	}
}

// persist records the exchange once. Failures never reach the caller.
func (e *Engine) persist(ctx context.Context, sessionID, message, reply string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := e.store.AppendTurnPair(writeCtx, sessionID, message, reply); err != nil {
		e.metrics.RecordPersistFailure(ctx)
		e.logger.Warn("failed to save turns",
			zap.String("session", sessionID),
			zap.Error(err),
		)
	}
}
