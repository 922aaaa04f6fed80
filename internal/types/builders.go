package types

import "time"

// NodeBuilder provides a fluent API for ThinkingNode construction, mirroring
// the ThoughtBuilder pattern used throughout this codebase's predecessor.
type NodeBuilder struct {
	node *ThinkingNode
}

// NewNode creates a NodeBuilder with sensible defaults.
func NewNode() *NodeBuilder {
	return &NodeBuilder{
		node: &ThinkingNode{
			NodeType:  NodeThinking,
			CreatedAt: time.Now(),
		},
	}
}

func (b *NodeBuilder) Session(id string) *NodeBuilder {
	b.node.SessionID = id
	return b
}

func (b *NodeBuilder) Reasoning(text string) *NodeBuilder {
	b.node.Reasoning = text
	return b
}

func (b *NodeBuilder) Confidence(c float64) *NodeBuilder {
	b.node.Confidence = clamp01(c)
	return b
}

func (b *NodeBuilder) Type(t NodeType) *NodeBuilder {
	b.node.NodeType = t
	return b
}

func (b *NodeBuilder) Parent(id string) *NodeBuilder {
	b.node.ParentID = id
	return b
}

func (b *NodeBuilder) Steps(steps []ReasoningStep) *NodeBuilder {
	b.node.Steps = steps
	return b
}

func (b *NodeBuilder) Usage(u TokenUsage) *NodeBuilder {
	b.node.Usage = u
	return b
}

func (b *NodeBuilder) Build() *ThinkingNode {
	return b.node
}

// EdgeBuilder provides a fluent API for ReasoningEdge construction.
type EdgeBuilder struct {
	edge *ReasoningEdge
}

// NewEdge creates an EdgeBuilder with weight defaulted to 1.0.
func NewEdge(source, target string, edgeType EdgeType) *EdgeBuilder {
	return &EdgeBuilder{
		edge: &ReasoningEdge{
			SourceID:  source,
			TargetID:  target,
			Type:      edgeType,
			Weight:    1.0,
			CreatedAt: time.Now(),
		},
	}
}

func (b *EdgeBuilder) Weight(w float64) *EdgeBuilder {
	b.edge.Weight = clamp01(w)
	return b
}

func (b *EdgeBuilder) Metadata(m map[string]any) *EdgeBuilder {
	b.edge.Metadata = m
	return b
}

func (b *EdgeBuilder) Build() *ReasoningEdge {
	return b.edge
}

// clamp01 restricts v to the closed interval [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp01 is the exported form of clamp01, used by components outside this
// package that need the same confidence/weight clamping rule.
func Clamp01(v float64) float64 {
	return clamp01(v)
}
