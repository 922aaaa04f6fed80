package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/types"
)

func newTestSQLiteStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStorage(path, 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorageNodeRoundTrip(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	node := &types.ThinkingNode{
		ID: "n1", SessionID: "sess1", Reasoning: "because", Response: "answer", Confidence: 0.75,
		NodeType: types.NodeThinking, ParentID: "n0", CreatedAt: time.Now().UTC(),
		Steps: []types.ReasoningStep{{Kind: types.StepAnalysis, Text: "analyze", Confidence: 0.6}},
		Usage: types.TokenUsage{InputTokens: 10, OutputTokens: 20},
	}
	require.NoError(t, s.SaveNode(ctx, node))

	got, err := s.GetNode(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, node.Reasoning, got.Reasoning)
	assert.Equal(t, node.Response, got.Response)
	assert.Equal(t, node.ParentID, got.ParentID)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, types.StepAnalysis, got.Steps[0].Kind)
	assert.Equal(t, 10, got.Usage.InputTokens)
}

func TestSQLiteStorageListNodesBySessionOrdered(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveNode(ctx, &types.ThinkingNode{ID: id, SessionID: "sess1", CreatedAt: base.Add(time.Duration(i) * time.Second)}))
	}

	nodes, err := s.ListNodesBySession(ctx, "sess1")
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "c", nodes[2].ID)
}

func TestSQLiteStorageEdgesAndDecisionPoints(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveNode(ctx, &types.ThinkingNode{ID: "a", SessionID: "sess1", CreatedAt: time.Now()}))
	require.NoError(t, s.SaveNode(ctx, &types.ThinkingNode{ID: "b", SessionID: "sess1", CreatedAt: time.Now()}))

	edge := &types.ReasoningEdge{ID: "e1", SourceID: "a", TargetID: "b", Type: types.EdgeInfluences, Weight: 1.0, CreatedAt: time.Now()}
	require.NoError(t, s.SaveEdge(ctx, edge))

	out, err := s.GetOutgoing(ctx, "a")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.EdgeInfluences, out[0].Type)

	dp := &types.DecisionPoint{
		ID: "d1", NodeID: "a", StepNumber: 1, Description: "pick a path", ChosenPath: "x",
		Alternatives: []types.Alternative{{Path: "y", ReasonRejected: "slower"}}, Confidence: 0.9,
	}
	require.NoError(t, s.SaveDecisionPoint(ctx, dp))

	dps, err := s.ListDecisionPointsByNode(ctx, "a")
	require.NoError(t, err)
	require.Len(t, dps, 1)
	require.Len(t, dps[0].Alternatives, 1)
	assert.Equal(t, "slower", dps[0].Alternatives[0].ReasonRejected)
}

func TestSQLiteStorageMemoryEntryAndSessionPersist(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	entry := &types.MemoryEntry{
		ID: "m1", Tier: types.TierArchival, Content: "fact", Importance: 0.4,
		LastAccessedAt: time.Now().UTC(), CreatedAt: time.Now().UTC(), Source: types.SourceThinkingNode,
		Tags: []string{"alpha", "beta"},
	}
	require.NoError(t, s.SaveMemoryEntry(ctx, "sess1", entry))

	got, err := s.GetMemoryEntry(ctx, "sess1", "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, got.Tags)

	require.NoError(t, s.DeleteMemoryEntry(ctx, "sess1", "m1"))
	_, err = s.GetMemoryEntry(ctx, "sess1", "m1")
	assert.Error(t, err)

	snap := &SessionSnapshot{
		SessionID: "sess1", LastThinkingNodeID: "a",
		Budget: types.BudgetStatus{CumulativeOutputTokens: 50, MaxSessionOutputTokens: 500},
		State:  types.SessionActive,
		Plan:   &types.TaskPlan{Goal: "g", Tasks: []string{"t1", "t2"}},
	}
	require.NoError(t, s.SaveSession(ctx, snap))

	gotSnap, err := s.GetSession(ctx, "sess1")
	require.NoError(t, err)
	assert.Equal(t, "a", gotSnap.LastThinkingNodeID)
	require.NotNil(t, gotSnap.Plan)
	assert.Equal(t, []string{"t1", "t2"}, gotSnap.Plan.Tasks)
}

func TestSQLiteStorageMetrics(t *testing.T) {
	s := newTestSQLiteStorage(t)
	ctx := context.Background()

	require.NoError(t, s.SaveNode(ctx, &types.ThinkingNode{ID: "n1", SessionID: "sess1", CreatedAt: time.Now()}))
	m, err := s.GetMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, m.NodeCount)
}
