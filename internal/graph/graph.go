// Package graph implements ThinkGraph: it turns a finished provider
// response into durable nodes, decision points, and edges, tracking
// precisely which persistence steps succeeded so partial failure can be
// reported rather than hidden.
package graph

import (
	"context"
	"fmt"
	"sync"

	dgraph "github.com/dominikbraun/graph"
	"github.com/google/uuid"

	"reasonforge/internal/storage"
	"reasonforge/internal/types"
)

func vertexHash(id string) string { return id }

// PersistenceIssue records one step of persistThinkingNode that failed
// without aborting the rest of the batch.
type PersistenceIssue struct {
	Stage      string // "node", "decision_point", "reasoning_edge"
	StepNumber int    `json:"step_number,omitempty"`
	Err        error
}

// PersistResult is the outcome of one persistThinkingNode call.
type PersistResult struct {
	Node             *types.ThinkingNode
	DecisionPoints   []*types.DecisionPoint
	LinkedToParent   bool
	Degraded         bool
	PersistenceIssues []PersistenceIssue
}

// NodeInput is the pre-parsed content persistThinkingNode turns into a
// node: reasoning text, any structured steps/decision points already
// extracted from it by the caller, and the optional parent to link from.
type NodeInput struct {
	SessionID      string
	InputQuery     string
	Response       string
	Reasoning      string
	Steps          []types.ReasoningStep
	DecisionPoints []*types.DecisionPoint // NodeID is filled in by persistThinkingNode
	NodeType       types.NodeType
	Usage          types.TokenUsage
	ParentNodeID   string
}

// ThinkGraph owns the adjacency structure backing the persisted reasoning
// graph; the durable copy of nodes/edges/decision points lives in Storage,
// this in-memory dominikbraun/graph instance mirrors it for traversal.
type ThinkGraph struct {
	mu      sync.Mutex
	store   storage.Storage
	adj     dgraph.Graph[string, string]
	known   map[string]bool // nodes already added to adj, to keep AddVertex idempotent
}

// New builds a ThinkGraph backed by store.
func New(store storage.Storage) *ThinkGraph {
	return &ThinkGraph{
		store: store,
		adj:   dgraph.New(vertexHash, dgraph.Directed()),
		known: make(map[string]bool),
	}
}

// PersistThinkingNode implements spec §4.2's algorithm: compute confidence,
// insert the node, insert decision points one at a time (failures recorded
// but non-fatal), and link to the parent if supplied.
func (g *ThinkGraph) PersistThinkingNode(ctx context.Context, in NodeInput) *PersistResult {
	confidence := computeConfidence(in.Steps)

	node := &types.ThinkingNode{
		ID:         uuid.NewString(),
		SessionID:  in.SessionID,
		Reasoning:  in.Reasoning,
		InputQuery: in.InputQuery,
		Response:   in.Response,
		Confidence: confidence,
		Steps:      in.Steps,
		NodeType:   in.NodeType,
		Usage:      in.Usage,
		ParentID:   in.ParentNodeID,
	}
	if node.NodeType == "" {
		node.NodeType = types.NodeThinking
	}

	if err := g.store.SaveNode(ctx, node); err != nil {
		// Step 3: on node insertion failure, stop entirely — no edges, no
		// decision points. The caller still gets a synthesised node back.
		return &PersistResult{
			Node:     node,
			Degraded: true,
			PersistenceIssues: []PersistenceIssue{{Stage: "node", Err: err}},
		}
	}
	g.addVertex(node.ID)

	result := &PersistResult{Node: node}

	for _, dp := range in.DecisionPoints {
		dp.NodeID = node.ID
		if dp.ID == "" {
			dp.ID = uuid.NewString()
		}
		if err := g.store.SaveDecisionPoint(ctx, dp); err != nil {
			result.Degraded = true
			result.PersistenceIssues = append(result.PersistenceIssues, PersistenceIssue{
				Stage: "decision_point", StepNumber: dp.StepNumber, Err: err,
			})
			continue
		}
		result.DecisionPoints = append(result.DecisionPoints, dp)
	}

	if in.ParentNodeID != "" {
		_, err := g.LinkNodes(ctx, in.ParentNodeID, node.ID, types.EdgeInfluences, 1.0, nil)
		if err != nil {
			result.Degraded = true
			result.LinkedToParent = false
			result.PersistenceIssues = append(result.PersistenceIssues, PersistenceIssue{Stage: "reasoning_edge", Err: err})
		} else {
			result.LinkedToParent = true
		}
	}

	return result
}

// computeConfidence implements spec §4.2 step 2: the final conclusion
// step's confidence if present, else the mean of all step confidences,
// else the 0.5 default — always clamped.
func computeConfidence(steps []types.ReasoningStep) float64 {
	if len(steps) == 0 {
		return 0.5
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Kind == types.StepConclusion {
			return types.Clamp01(steps[i].Confidence)
		}
	}
	sum := 0.0
	for _, s := range steps {
		sum += s.Confidence
	}
	return types.Clamp01(sum / float64(len(steps)))
}

// LinkNodes validates distinctness and edge-type membership, then inserts
// the edge. Returns whether a new row was created; a duplicate
// (source, target, type) is reported as success, not-newly-created.
func (g *ThinkGraph) LinkNodes(ctx context.Context, source, target string, edgeType types.EdgeType, weight float64, meta map[string]any) (bool, error) {
	if source == target {
		return false, types.NewError(types.ErrInvalidInput, "an edge's source and target must be distinct")
	}
	if !validEdgeType(edgeType) {
		return false, types.NewError(types.ErrInvalidInput, fmt.Sprintf("unknown edge type %q", edgeType))
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	existing, err := g.store.GetOutgoing(ctx, source)
	if err == nil {
		for _, e := range existing {
			if e.TargetID == target && e.Type == edgeType {
				return false, nil // idempotent: already present
			}
		}
	}

	edge := types.NewEdge(source, target, edgeType).Weight(weight).Metadata(meta).Build()
	edge.ID = uuid.NewString()
	if err := g.store.SaveEdge(ctx, edge); err != nil {
		return false, types.WrapError(types.ErrPersistenceDegraded, "failed to persist reasoning edge", err)
	}
	g.addVertex(source)
	g.addVertex(target)
	_ = g.adj.AddEdge(source, target) // best-effort in-memory mirror; duplicate edges are fine here

	return true, nil
}

func validEdgeType(t types.EdgeType) bool {
	switch t {
	case types.EdgeInfluences, types.EdgeSupports, types.EdgeRefines, types.EdgeContradicts, types.EdgeSupersedes:
		return true
	default:
		return false
	}
}

func (g *ThinkGraph) addVertex(id string) {
	if g.known[id] {
		return
	}
	g.known[id] = true
	_ = g.adj.AddVertex(id)
}

// PersistCompactionBoundary creates a compaction-boundary node and links it
// to the prior last node with a supersedes edge carrying
// {compactionNumber, reason} metadata. This is the only path that may
// create a NodeCompaction node, per invariant.
func (g *ThinkGraph) PersistCompactionBoundary(ctx context.Context, sessionID, summary, previousLastNodeID string, compactionNumber int, reason string, usage types.TokenUsage) *PersistResult {
	node := &types.ThinkingNode{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Reasoning: summary,
		NodeType:  types.NodeCompaction,
		Usage:     usage,
	}

	if err := g.store.SaveNode(ctx, node); err != nil {
		return &PersistResult{
			Node:     node,
			Degraded: true,
			PersistenceIssues: []PersistenceIssue{{Stage: "node", Err: err}},
		}
	}
	g.addVertex(node.ID)

	result := &PersistResult{Node: node}
	if previousLastNodeID == "" {
		return result
	}

	_, err := g.LinkNodes(ctx, previousLastNodeID, node.ID, types.EdgeSupersedes, 1.0, map[string]any{
		"compaction_number": compactionNumber,
		"reason":            reason,
	})
	if err != nil {
		result.Degraded = true
		result.PersistenceIssues = append(result.PersistenceIssues, PersistenceIssue{Stage: "reasoning_edge", Err: err})
	} else {
		result.LinkedToParent = true
	}
	return result
}

// GetIncoming returns the edges pointing into nodeID.
func (g *ThinkGraph) GetIncoming(ctx context.Context, nodeID string) ([]*types.ReasoningEdge, error) {
	return g.store.GetIncoming(ctx, nodeID)
}

// GetOutgoing returns the edges leaving nodeID.
func (g *ThinkGraph) GetOutgoing(ctx context.Context, nodeID string) ([]*types.ReasoningEdge, error) {
	return g.store.GetOutgoing(ctx, nodeID)
}

// GetChain walks outgoing edges breadth-first from `from` up to depth
// hops, tracking visited nodes so semantic cycles (mutual influences)
// terminate the traversal instead of looping forever.
func (g *ThinkGraph) GetChain(ctx context.Context, from string, depth int) ([]*types.ThinkingNode, error) {
	visited := map[string]bool{from: true}
	frontier := []string{from}
	var chain []*types.ThinkingNode

	if n, err := g.store.GetNode(ctx, from); err == nil {
		chain = append(chain, n)
	}

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []string
		for _, id := range frontier {
			edges, err := g.store.GetOutgoing(ctx, id)
			if err != nil {
				continue
			}
			for _, e := range edges {
				if visited[e.TargetID] {
					continue
				}
				visited[e.TargetID] = true
				if n, err := g.store.GetNode(ctx, e.TargetID); err == nil {
					chain = append(chain, n)
				}
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}
	return chain, nil
}

// Search is a pure read over a session's nodes, matching reasoning or
// response text by case-insensitive substring.
func (g *ThinkGraph) Search(ctx context.Context, sessionID, text string) ([]*types.ThinkingNode, error) {
	nodes, err := g.store.ListNodesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var out []*types.ThinkingNode
	for _, n := range nodes {
		if containsFold(n.Reasoning, text) || containsFold(n.Response, text) {
			out = append(out, n)
		}
	}
	return out, nil
}
