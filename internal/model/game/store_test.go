package game_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/lowerlands/backend/internal/model/game"
)

func TestMemoryStoreProfileRoundTrip(t *testing.T) {
	store := game.NewMemoryStore()
	ctx := context.Background()

	want := game.PlayerProfile{
		SessionID:  "s1",
		Name:       "Mara",
		Class:      "mage",
		Background: "orphan",
		Goal:       "revenge",
		Alignment:  "neutral evil",
	}
	require.NoError(t, store.SaveProfile(ctx, want))

	first, err := store.GetProfile(ctx, "s1")
	require.NoError(t, err)
	second, err := store.GetProfile(ctx, "s1")
	require.NoError(t, err)

	assert.Equal(t, want, first)
	assert.Equal(t, first, second)
}

func TestMemoryStoreWorldStateCreatedOnce(t *testing.T) {
	store := game.NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetWorldState(ctx, "s1")
	require.ErrorIs(t, err, game.ErrNotFound)

	require.NoError(t, store.SaveProfile(ctx, game.PlayerProfile{SessionID: "s1", Name: "Mara"}))
	state, err := store.GetWorldState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, game.NewWorldState("s1"), state)
	assert.Equal(t, "bleak_marches", state.Location)
	assert.Equal(t, 100, state.Health)
	assert.Equal(t, 50, state.Mana)
	assert.Equal(t, 0, state.Gold)
	assert.Equal(t, []string{"Rusty Dagger"}, state.Items())

	require.NoError(t, store.SaveProfile(ctx, game.PlayerProfile{SessionID: "s1", Name: "Mara II"}))
	again, err := store.GetWorldState(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state, again)
}

func TestMemoryStoreRecentTurnsChronological(t *testing.T) {
	store := game.NewMemoryStore()
	ctx := context.Background()

	turns, err := store.RecentTurns(ctx, "s1", 6)
	require.NoError(t, err)
	assert.Empty(t, turns)

	for _, msg := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.AppendTurnPair(ctx, "s1", msg, "re:"+msg))
	}

	turns, err = store.RecentTurns(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "re:c", turns[0].Content)
	assert.Equal(t, game.RoleUser, turns[1].Role)
	assert.Equal(t, "d", turns[1].Content)
	assert.Equal(t, game.RoleAssistant, turns[2].Role)

	for i := 1; i < len(turns); i++ {
		assert.Less(t, turns[i-1].ID, turns[i].ID)
	}
}

func TestMemoryStoreUpdateProfileMissing(t *testing.T) {
	store := game.NewMemoryStore()
	name := "Mara"
	err := store.UpdateProfile(context.Background(), "missing", game.ProfilePatch{Name: &name})
	require.ErrorIs(t, err, game.ErrNotFound)
}

func TestMemoryStoreResetKeepsProfile(t *testing.T) {
	store := game.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.TouchSession(ctx, "s1"))
	require.NoError(t, store.SaveProfile(ctx, game.PlayerProfile{SessionID: "s1", Name: "Mara"}))
	require.NoError(t, store.AppendTurnPair(ctx, "s1", "hi", "hello"))

	require.NoError(t, store.ResetSession(ctx, "s1"))

	_, err := store.GetProfile(ctx, "s1")
	require.NoError(t, err)
	_, err = store.GetWorldState(ctx, "s1")
	require.ErrorIs(t, err, game.ErrNotFound)
	turns, err := store.RecentTurns(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, game.Stats{TotalSessions: 1, TotalPlayers: 1, RecentSessions24h: 1}, stats)
}

func TestMemoryStoreListSessionsSkipsUnnamed(t *testing.T) {
	store := game.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.TouchSession(ctx, "anon"))
	require.NoError(t, store.TouchSession(ctx, "named"))
	require.NoError(t, store.SaveProfile(ctx, game.PlayerProfile{SessionID: "named", Name: "Mara", Class: "mage"}))

	sessions, err := store.ListSessions(ctx, 100)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "named", sessions[0].SessionID)
	assert.Equal(t, "mage", sessions[0].PlayerClass)

	require.NoError(t, store.DeleteAllSessions(ctx))
	sessions, err = store.ListSessions(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
