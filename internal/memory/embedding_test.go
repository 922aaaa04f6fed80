package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// hashEmbedder is a deterministic test Embedder: it scores a fixed
// vocabulary by substring presence, so semantically similar strings (those
// sharing vocabulary terms) land closer together than unrelated ones.
type hashEmbedder struct{ vocab []string }

func (h hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(h.vocab))
	for i, term := range h.vocab {
		if strings.Contains(lower, term) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func newTestEmbedder() hashEmbedder {
	return hashEmbedder{vocab: []string{"database", "latency", "migration", "frontend", "react", "component"}}
}

func TestChromemIndex_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromemIndex("", "archival", newTestEmbedder())
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, "e1", "database migration caused latency spikes", nil))
	require.NoError(t, idx.Upsert(ctx, "e2", "frontend react component refactor", nil))

	matches, err := idx.Query(ctx, "why did the migration slow down the database", 5)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	require.Equal(t, "e1", matches[0].EntryID)
}

func TestChromemIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromemIndex("", "archival", newTestEmbedder())
	require.NoError(t, err)

	require.NoError(t, idx.Upsert(ctx, "e1", "database migration", nil))
	require.NoError(t, idx.Delete(ctx, "e1"))

	matches, err := idx.Query(ctx, "database", 5)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestChromemIndex_QueryEmptyCollection(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromemIndex("", "archival", newTestEmbedder())
	require.NoError(t, err)

	matches, err := idx.Query(ctx, "anything", 5)
	require.NoError(t, err)
	require.Empty(t, matches)
}
