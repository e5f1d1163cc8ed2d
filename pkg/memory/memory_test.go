package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_SearchSimilar(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()

	require.True(t, store.StoreInteraction(ctx, Interaction{
		SessionID: "s1",
		Input:     "summarize the quarterly invoice report",
		Output:    "17 invoices totaling $4,210",
	}))
	require.True(t, store.StoreInteraction(ctx, Interaction{
		SessionID: "s1",
		Input:     "draft a release announcement",
		Output:    "Announcing v2.0",
	}))
	require.True(t, store.StoreInteraction(ctx, Interaction{
		SessionID: "s2",
		Input:     "summarize the invoice backlog",
		Output:    "backlog is empty",
	}))

	got := store.SearchSimilar(ctx, "invoice summary", "s1", 5)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Input, "quarterly invoice")

	// Empty session id searches across sessions.
	got = store.SearchSimilar(ctx, "invoice", "", 5)
	assert.Len(t, got, 2)

	// Most word overlap ranks first.
	got = store.SearchSimilar(ctx, "summarize the invoice report", "", 5)
	require.NotEmpty(t, got)
	assert.Contains(t, got[0].Input, "quarterly")

	assert.Empty(t, store.SearchSimilar(ctx, "kubernetes", "s1", 5))
}

func TestInMemory_SearchSimilarTopK(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	for i := 0; i < 10; i++ {
		store.StoreInteraction(ctx, Interaction{SessionID: "s1", Input: "invoice run"})
	}

	assert.Len(t, store.SearchSimilar(ctx, "invoice", "s1", 3), 3)
	// Non-positive topK falls back to the default of five.
	assert.Len(t, store.SearchSimilar(ctx, "invoice", "s1", 0), 5)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var store Store = Nop{}
	assert.True(t, store.StoreInteraction(ctx, Interaction{Input: "x"}))
	assert.Nil(t, store.SearchSimilar(ctx, "x", "", 5))
}
