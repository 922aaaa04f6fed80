package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/storage"
	"reasonforge/internal/types"
)

func newTestGraph() (*ThinkGraph, storage.Storage) {
	s := storage.NewMemoryStorage()
	return New(s), s
}

func TestPersistThinkingNodeConfidenceFromFinalConclusion(t *testing.T) {
	g, _ := newTestGraph()
	res := g.PersistThinkingNode(context.Background(), NodeInput{
		SessionID: "sess1",
		Steps: []types.ReasoningStep{
			{Kind: types.StepAnalysis, Confidence: 0.2},
			{Kind: types.StepConclusion, Confidence: 0.9},
		},
	})
	require.False(t, res.Degraded)
	assert.Equal(t, 0.9, res.Node.Confidence)
}

func TestPersistThinkingNodeConfidenceMeanWithoutConclusion(t *testing.T) {
	g, _ := newTestGraph()
	res := g.PersistThinkingNode(context.Background(), NodeInput{
		SessionID: "sess1",
		Steps: []types.ReasoningStep{
			{Kind: types.StepAnalysis, Confidence: 0.4},
			{Kind: types.StepHypothesis, Confidence: 0.6},
		},
	})
	assert.InDelta(t, 0.5, res.Node.Confidence, 1e-9)
}

func TestPersistThinkingNodeDefaultsConfidenceWithNoSteps(t *testing.T) {
	g, _ := newTestGraph()
	res := g.PersistThinkingNode(context.Background(), NodeInput{SessionID: "sess1"})
	assert.Equal(t, 0.5, res.Node.Confidence)
}

func TestPersistThinkingNodeLinksToParent(t *testing.T) {
	g, _ := newTestGraph()
	parent := g.PersistThinkingNode(context.Background(), NodeInput{SessionID: "sess1"})
	require.False(t, parent.Degraded)

	child := g.PersistThinkingNode(context.Background(), NodeInput{SessionID: "sess1", ParentNodeID: parent.Node.ID})
	assert.True(t, child.LinkedToParent)
	assert.False(t, child.Degraded)

	outgoing, err := g.GetOutgoing(context.Background(), parent.Node.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, types.EdgeInfluences, outgoing[0].Type)
	assert.Equal(t, 1.0, outgoing[0].Weight)
}

func TestPersistThinkingNodeAttachesNodeIDToDecisionPoints(t *testing.T) {
	g, _ := newTestGraph()
	res := g.PersistThinkingNode(context.Background(), NodeInput{
		SessionID: "sess1",
		DecisionPoints: []*types.DecisionPoint{
			{StepNumber: 1, Description: "pick a path", ChosenPath: "x"},
			{StepNumber: 2, Description: "pick another", ChosenPath: "y"},
		},
	})
	require.False(t, res.Degraded)
	require.Len(t, res.DecisionPoints, 2)
	for _, dp := range res.DecisionPoints {
		assert.Equal(t, res.Node.ID, dp.NodeID)
	}
}

func TestLinkNodesRejectsSelfLoop(t *testing.T) {
	g, _ := newTestGraph()
	_, err := g.LinkNodes(context.Background(), "a", "a", types.EdgeInfluences, 1.0, nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.KindOf(err))
}

func TestLinkNodesRejectsUnknownType(t *testing.T) {
	g, _ := newTestGraph()
	_, err := g.LinkNodes(context.Background(), "a", "b", types.EdgeType("bogus"), 1.0, nil)
	require.Error(t, err)
}

func TestLinkNodesIsIdempotent(t *testing.T) {
	g, _ := newTestGraph()
	created, err := g.LinkNodes(context.Background(), "a", "b", types.EdgeInfluences, 1.0, nil)
	require.NoError(t, err)
	assert.True(t, created)

	createdAgain, err := g.LinkNodes(context.Background(), "a", "b", types.EdgeInfluences, 1.0, nil)
	require.NoError(t, err)
	assert.False(t, createdAgain)

	out, err := g.GetOutgoing(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestPersistCompactionBoundaryCreatesSupersedesEdge(t *testing.T) {
	g, _ := newTestGraph()
	prior := g.PersistThinkingNode(context.Background(), NodeInput{SessionID: "sess1"})
	require.False(t, prior.Degraded)

	boundary := g.PersistCompactionBoundary(context.Background(), "sess1", "compacted 3 nodes", prior.Node.ID, 1, "token budget", types.TokenUsage{})
	require.False(t, boundary.Degraded)
	assert.Equal(t, types.NodeCompaction, boundary.Node.NodeType)

	out, err := g.GetOutgoing(context.Background(), prior.Node.ID)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.EdgeSupersedes, out[0].Type)
	assert.Equal(t, 1, out[0].Metadata["compaction_number"])
}

func TestGetChainStopsOnCycleAndRespectsDepth(t *testing.T) {
	g, _ := newTestGraph()
	a := g.PersistThinkingNode(context.Background(), NodeInput{SessionID: "sess1"})
	b := g.PersistThinkingNode(context.Background(), NodeInput{SessionID: "sess1", ParentNodeID: a.Node.ID})
	// mutual influence: b -> a as well, forming a semantic cycle
	_, err := g.LinkNodes(context.Background(), b.Node.ID, a.Node.ID, types.EdgeInfluences, 1.0, nil)
	require.NoError(t, err)

	chain, err := g.GetChain(context.Background(), a.Node.ID, 5)
	require.NoError(t, err)
	assert.Len(t, chain, 2) // a, b — visiting a again is suppressed
}

func TestSearchMatchesReasoningAndResponse(t *testing.T) {
	g, store := newTestGraph()
	require.NoError(t, store.SaveNode(context.Background(), &types.ThinkingNode{ID: "n1", SessionID: "sess1", Reasoning: "pivoting to B2B"}))
	require.NoError(t, store.SaveNode(context.Background(), &types.ThinkingNode{ID: "n2", SessionID: "sess1", Response: "unrelated"}))

	hits, err := g.Search(context.Background(), "sess1", "b2b")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "n1", hits[0].ID)
}
