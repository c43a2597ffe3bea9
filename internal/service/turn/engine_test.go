package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
	"github.com/zhouzirui/lowerlands/backend/internal/model/world"
	"github.com/zhouzirui/lowerlands/backend/internal/observe"
	"github.com/zhouzirui/lowerlands/backend/internal/service/ai"
)

type fakeCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	messages []*schema.Message
	params   ai.Params
	ctxErr   error
}

func (f *fakeCompleter) Complete(ctx context.Context, messages []*schema.Message, params ai.Params) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = messages
	f.params = params
	f.ctxErr = ctx.Err()
	return f.reply, f.err
}

type failingWrites struct {
	*game.MemoryStore
}

func (failingWrites) AppendTurnPair(context.Context, string, string, string) error {
	return errors.New("database is locked")
}

// blockingCompleter waits until its context ends, like a provider that never answers.
type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ []*schema.Message, _ ai.Params) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func newTestEngine(t *testing.T, store Store, completer ai.Completer) (*Engine, *sdkmetric.ManualReader) {
	t.Helper()
	return newTestEngineWithConfig(t, store, completer, Config{})
}

func newTestEngineWithConfig(t *testing.T, store Store, completer ai.Completer, cfg Config) (*Engine, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	engine := NewEngine(store, completer, world.Default(), cfg, WithMetrics(metrics))
	return engine, reader
}

func turnOutcomes(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "lowerlands.turns" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				out[outcome.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestRunTurnRejectsBlankMessage(t *testing.T) {
	completer := &fakeCompleter{reply: "unused"}
	store := game.NewMemoryStore()
	engine, _ := newTestEngine(t, store, completer)

	_, err := engine.RunTurn(context.Background(), "s1", "   ")
	require.ErrorIs(t, err, ErrMessageRequired)

	assert.Zero(t, completer.calls)
	turns, err := store.RecentTurns(context.Background(), "s1", 6)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRunTurnRequiresSession(t *testing.T) {
	engine, _ := newTestEngine(t, game.NewMemoryStore(), &fakeCompleter{})

	_, err := engine.RunTurn(context.Background(), "", "hello")
	require.ErrorIs(t, err, game.ErrSessionRequired)
}

func TestRunTurnConformantReply(t *testing.T) {
	ctx := context.Background()
	store := game.NewMemoryStore()
	require.NoError(t, store.SaveProfile(ctx, game.PlayerProfile{SessionID: "s1", Name: "Mara", Class: "mage"}))
	require.NoError(t, store.AppendTurnPair(ctx, "s1", "look", "Fog rolls. 1. Walk 2. Wait"))

	completer := &fakeCompleter{reply: "  A statue weeps ash.\n1. Touch it\n2. Back away  "}
	engine, reader := newTestEngine(t, store, completer)

	reply, err := engine.RunTurn(ctx, "s1", "walk")
	require.NoError(t, err)
	assert.Equal(t, "A statue weeps ash.\n1. Touch it\n2. Back away", reply)

	require.Len(t, completer.messages, 6)
	assert.Equal(t, world.Default().StyleDirective(), completer.messages[0].Content)
	assert.Contains(t, completer.messages[1].Content, "Name: Mara")
	assert.Equal(t, ContractDirective, completer.messages[2].Content)
	assert.Equal(t, "look", completer.messages[3].Content)
	assert.Equal(t, "walk", completer.messages[5].Content)
	assert.Equal(t, ai.Params{MaxTokens: 120, Temperature: 0.55}, completer.params)

	turns, err := store.RecentTurns(ctx, "s1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, game.RoleUser, turns[2].Role)
	assert.Equal(t, "walk", turns[2].Content)
	assert.Equal(t, game.RoleAssistant, turns[3].Role)
	assert.Equal(t, reply, turns[3].Content)

	assert.Equal(t, map[string]int64{observe.OutcomeOK: 1}, turnOutcomes(t, reader))
}

func TestRunTurnRepairsCandidate(t *testing.T) {
	store := game.NewMemoryStore()
	engine, reader := newTestEngine(t, store, &fakeCompleter{reply: "<p>Hello</p>"})

	reply, err := engine.RunTurn(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello\n\n1. Proceed\n2. Step back", reply)
	assert.Equal(t, map[string]int64{observe.OutcomeRepaired: 1}, turnOutcomes(t, reader))
}

func TestRunTurnEmptyCandidate(t *testing.T) {
	engine, reader := newTestEngine(t, game.NewMemoryStore(), &fakeCompleter{reply: " \n "})

	reply, err := engine.RunTurn(context.Background(), "s1", "hi")
	require.NoError(t, err)
	assert.Equal(t, FallbackReply, reply)
	assert.Equal(t, map[string]int64{observe.OutcomeEmpty: 1}, turnOutcomes(t, reader))
}

func TestRunTurnUpstreamFailureIsMasked(t *testing.T) {
	ctx := context.Background()
	store := game.NewMemoryStore()
	engine, reader := newTestEngine(t, store, &fakeCompleter{err: errors.New("429 quota exceeded")})

	reply, err := engine.RunTurn(ctx, "s1", "attack the knight")
	require.NoError(t, err)
	assert.Equal(t, UpstreamFallbackReply, reply)

	turns, err := store.RecentTurns(ctx, "s1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, game.RoleUser, turns[0].Role)
	assert.Equal(t, "attack the knight", turns[0].Content)
	assert.Equal(t, game.RoleAssistant, turns[1].Role)
	assert.Equal(t, UpstreamFallbackReply, turns[1].Content)

	assert.Equal(t, map[string]int64{observe.OutcomeUpstreamFailure: 1}, turnOutcomes(t, reader))
}

func TestRunTurnTimeoutIsUpstreamFailure(t *testing.T) {
	ctx := context.Background()
	store := game.NewMemoryStore()
	engine, reader := newTestEngineWithConfig(t, store, blockingCompleter{}, Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	reply, err := engine.RunTurn(ctx, "s1", "knock")
	require.NoError(t, err)
	assert.Equal(t, UpstreamFallbackReply, reply)
	assert.Less(t, time.Since(start), 5*time.Second)

	turns, err := store.RecentTurns(ctx, "s1", 6)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, game.RoleUser, turns[0].Role)
	assert.Equal(t, "knock", turns[0].Content)
	assert.Equal(t, game.RoleAssistant, turns[1].Role)
	assert.Equal(t, UpstreamFallbackReply, turns[1].Content)

	assert.Equal(t, map[string]int64{observe.OutcomeUpstreamFailure: 1}, turnOutcomes(t, reader))
}

func TestRunTurnUnconfiguredCompleter(t *testing.T) {
	engine, _ := newTestEngine(t, game.NewMemoryStore(), ai.Unconfigured{Reason: "no key"})

	reply, err := engine.RunTurn(context.Background(), "s1", "hello")
	require.NoError(t, err)
	assert.Equal(t, UpstreamFallbackReply, reply)
}

func TestRunTurnPersistenceFailureKeepsReply(t *testing.T) {
	store := failingWrites{game.NewMemoryStore()}
	engine, _ := newTestEngine(t, store, &fakeCompleter{reply: "Bones rattle. 1. Run 2. Fight"})

	reply, err := engine.RunTurn(context.Background(), "s1", "listen")
	require.NoError(t, err)
	assert.Equal(t, "Bones rattle. 1. Run 2. Fight", reply)
}

func TestRunTurnSurvivesCallerCancellation(t *testing.T) {
	store := game.NewMemoryStore()
	completer := &fakeCompleter{reply: "Ash falls. 1. Wait 2. Leave"}
	engine, _ := newTestEngine(t, store, completer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, err := engine.RunTurn(ctx, "s1", "wait")
	require.NoError(t, err)
	assert.Equal(t, "Ash falls. 1. Wait 2. Leave", reply)
	assert.NoError(t, completer.ctxErr)

	turns, err := store.RecentTurns(context.Background(), "s1", 6)
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestRunTurnRepliesAlwaysConform(t *testing.T) {
	candidates := []string{
		strings.Repeat("The marsh breathes. ", 20),
		"<html><body>502 Bad Gateway</body></html>",
		"1. " + strings.Repeat("forever ", 40),
		"Short.",
	}
	for _, candidate := range candidates {
		engine, _ := newTestEngine(t, game.NewMemoryStore(), &fakeCompleter{reply: candidate})
		reply, err := engine.RunTurn(context.Background(), "s1", "go")
		require.NoError(t, err)
		assertContract(t, reply)
	}
}

func TestHistoryWindowDefaultsAndOrder(t *testing.T) {
	ctx := context.Background()
	store := game.NewMemoryStore()
	engine, _ := newTestEngine(t, store, &fakeCompleter{})

	turns, err := engine.History(ctx, "s1", 0)
	require.NoError(t, err)
	assert.NotNil(t, turns)
	assert.Empty(t, turns)

	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, store.AppendTurnPair(ctx, "s1", msg, "re "+msg))
	}

	turns, err = engine.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, turns, DefaultHistoryLimit)
	assert.Equal(t, "c", turns[0].Content)
	assert.Equal(t, "re e", turns[5].Content)

	for _, n := range []int{1, 3, 10} {
		turns, err = engine.History(ctx, "s1", n)
		require.NoError(t, err)
		for i := 1; i < len(turns); i++ {
			assert.Less(t, turns[i-1].ID, turns[i].ID)
			assert.False(t, turns[i].CreatedAt.Before(turns[i-1].CreatedAt))
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, Config{HistoryLimit: 6, Timeout: 20 * time.Second, MaxTokens: 120, Temperature: 0.55}, cfg)
}
