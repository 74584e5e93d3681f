package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "collabboard/pkg/database"
	"collabboard/pkg/interfaces"
	"collabboard/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := dbconfig.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "audit.db")

	store, err := NewStore(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_InteractionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	interaction := &types.AIInteraction{
		SessionID: "s1",
		UserID:    "u1",
		UserName:  "Alice",
		Action:    "prompt_submitted",
		Detail:    map[string]interface{}{"prompt": "show revenue"},
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.StoreInteraction(ctx, interaction))
	assert.NotEmpty(t, interaction.ID, "id assigned when absent")

	got, err := store.RecentInteractions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "prompt_submitted", got[0].Action)
	assert.Equal(t, "Alice", got[0].UserName)
	assert.Equal(t, "show revenue", got[0].Detail["prompt"])
}

func TestStore_RecentInteractionsNewestFirstAndLimited(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.StoreInteraction(ctx, &types.AIInteraction{
			SessionID: "s1",
			UserID:    "u1",
			UserName:  "Alice",
			Action:    "component_generated",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.RecentInteractions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Timestamp.After(got[1].Timestamp))
	assert.True(t, got[1].Timestamp.After(got[2].Timestamp))
}

func TestStore_StateUpdateAudit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StoreStateUpdate(ctx, "s1", "u1", map[string]interface{}{
		"title": "Q3 dashboard",
	}))

	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM dashboard_state_updates").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStore_HealthCheck(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}

func TestStore_WritesRejectedAfterClose(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "close is idempotent")

	err := store.StoreStateUpdate(context.Background(), "s1", "u1", map[string]interface{}{})
	assert.ErrorIs(t, err, interfaces.ErrStoreClosed)
	assert.ErrorIs(t, store.HealthCheck(context.Background()), interfaces.ErrStoreClosed)
}
