// Package storage persists the ThinkGraph (nodes, edges, decision points)
// and the tiered memory hierarchy's entries. It is deliberately narrow: the
// engine, graph, and memory packages own all validation and invariants, and
// only ask storage to hold and retrieve the records they hand it.
package storage

import (
	"context"

	"reasonforge/internal/types"
)

// NodeStore persists ThinkingNodes. Nodes are immutable once saved.
type NodeStore interface {
	SaveNode(ctx context.Context, node *types.ThinkingNode) error
	GetNode(ctx context.Context, id string) (*types.ThinkingNode, error)
	ListNodesBySession(ctx context.Context, sessionID string) ([]*types.ThinkingNode, error)
}

// EdgeStore persists ReasoningEdges between ThinkingNodes.
type EdgeStore interface {
	SaveEdge(ctx context.Context, edge *types.ReasoningEdge) error
	GetOutgoing(ctx context.Context, nodeID string) ([]*types.ReasoningEdge, error)
	GetIncoming(ctx context.Context, nodeID string) ([]*types.ReasoningEdge, error)
}

// DecisionPointStore persists DecisionPoints, each owned by one node.
type DecisionPointStore interface {
	SaveDecisionPoint(ctx context.Context, dp *types.DecisionPoint) error
	ListDecisionPointsByNode(ctx context.Context, nodeID string) ([]*types.DecisionPoint, error)
}

// MemoryEntryStore persists MemoryHierarchy entries across all three tiers.
type MemoryEntryStore interface {
	SaveMemoryEntry(ctx context.Context, sessionID string, entry *types.MemoryEntry) error
	GetMemoryEntry(ctx context.Context, sessionID, id string) (*types.MemoryEntry, error)
	DeleteMemoryEntry(ctx context.Context, sessionID, id string) error
	ListMemoryEntries(ctx context.Context, sessionID string, tier types.MemoryTier) ([]*types.MemoryEntry, error)
}

// SessionSnapshot is the minimal session state a backend persists so a
// session can be rehydrated after a process restart; everything else
// (in-flight computation) is never durable.
type SessionSnapshot struct {
	SessionID          string
	LastThinkingNodeID string
	Budget             types.BudgetStatus
	State              types.SessionState
	Plan               *types.TaskPlan
}

// SessionStore persists the small amount of session bookkeeping the
// orchestrator needs to survive a restart.
type SessionStore interface {
	SaveSession(ctx context.Context, snap *SessionSnapshot) error
	GetSession(ctx context.Context, sessionID string) (*SessionSnapshot, error)
}

// Metrics reports coarse counts for operational visibility.
type Metrics struct {
	NodeCount          int
	EdgeCount          int
	DecisionPointCount int
	MemoryEntryCount   int
	SessionCount       int
}

// MetricsProvider exposes storage-level counts.
type MetricsProvider interface {
	GetMetrics(ctx context.Context) (*Metrics, error)
}

// Storage combines every repository ThinkGraph, MemoryHierarchy, and the
// Orchestrator depend on. Both the in-memory and SQLite backends implement
// the full surface so either can back a session transparently.
type Storage interface {
	NodeStore
	EdgeStore
	DecisionPointStore
	MemoryEntryStore
	SessionStore
	MetricsProvider
}
