package storage

import (
	"context"
	"fmt"
	"sync"

	"reasonforge/internal/types"
)

// MemoryStorage implements Storage with thread-safe in-memory maps. All Get
// and List methods return copies to prevent external mutation of internal
// state. Node and decision-point lists keep insertion order, newest last;
// ListMemoryEntries returns entries in no defined order.
type MemoryStorage struct {
	mu sync.RWMutex

	nodes map[string]*types.ThinkingNode
	nodesBySession map[string][]string // sessionID -> ordered node IDs

	edgesOut map[string][]*types.ReasoningEdge // nodeID -> outgoing
	edgesIn  map[string][]*types.ReasoningEdge // nodeID -> incoming

	decisionPoints map[string][]*types.DecisionPoint // nodeID -> ordered decision points

	memoryEntries map[string]map[string]*types.MemoryEntry // sessionID -> entryID -> entry

	sessions map[string]*SessionSnapshot
}

// NewMemoryStorage creates an empty in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		nodes:          make(map[string]*types.ThinkingNode),
		nodesBySession: make(map[string][]string),
		edgesOut:       make(map[string][]*types.ReasoningEdge),
		edgesIn:        make(map[string][]*types.ReasoningEdge),
		decisionPoints: make(map[string][]*types.DecisionPoint),
		memoryEntries:  make(map[string]map[string]*types.MemoryEntry),
		sessions:       make(map[string]*SessionSnapshot),
	}
}

func (s *MemoryStorage) SaveNode(_ context.Context, node *types.ThinkingNode) error {
	if node.ID == "" {
		return fmt.Errorf("storage: node id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *node
	s.nodes[node.ID] = &cp
	s.nodesBySession[node.SessionID] = append(s.nodesBySession[node.SessionID], node.ID)
	return nil
}

func (s *MemoryStorage) GetNode(_ context.Context, id string) (*types.ThinkingNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("storage: node %s not found", id)
	}
	cp := *n
	return &cp, nil
}

func (s *MemoryStorage) ListNodesBySession(_ context.Context, sessionID string) ([]*types.ThinkingNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.nodesBySession[sessionID]
	out := make([]*types.ThinkingNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStorage) SaveEdge(_ context.Context, edge *types.ReasoningEdge) error {
	if edge.SourceID == "" || edge.TargetID == "" {
		return fmt.Errorf("storage: edge requires source and target")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *edge
	s.edgesOut[edge.SourceID] = append(s.edgesOut[edge.SourceID], &cp)
	s.edgesIn[edge.TargetID] = append(s.edgesIn[edge.TargetID], &cp)
	return nil
}

func (s *MemoryStorage) GetOutgoing(_ context.Context, nodeID string) ([]*types.ReasoningEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEdges(s.edgesOut[nodeID]), nil
}

func (s *MemoryStorage) GetIncoming(_ context.Context, nodeID string) ([]*types.ReasoningEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyEdges(s.edgesIn[nodeID]), nil
}

func copyEdges(in []*types.ReasoningEdge) []*types.ReasoningEdge {
	out := make([]*types.ReasoningEdge, len(in))
	for i, e := range in {
		cp := *e
		out[i] = &cp
	}
	return out
}

func (s *MemoryStorage) SaveDecisionPoint(_ context.Context, dp *types.DecisionPoint) error {
	if dp.NodeID == "" {
		return fmt.Errorf("storage: decision point requires a node id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *dp
	s.decisionPoints[dp.NodeID] = append(s.decisionPoints[dp.NodeID], &cp)
	return nil
}

func (s *MemoryStorage) ListDecisionPointsByNode(_ context.Context, nodeID string) ([]*types.DecisionPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.decisionPoints[nodeID]
	out := make([]*types.DecisionPoint, len(src))
	for i, dp := range src {
		cp := *dp
		out[i] = &cp
	}
	return out, nil
}

func (s *MemoryStorage) SaveMemoryEntry(_ context.Context, sessionID string, entry *types.MemoryEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("storage: memory entry id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.memoryEntries[sessionID]
	if !ok {
		bucket = make(map[string]*types.MemoryEntry)
		s.memoryEntries[sessionID] = bucket
	}
	cp := *entry
	bucket[entry.ID] = &cp
	return nil
}

func (s *MemoryStorage) GetMemoryEntry(_ context.Context, sessionID, id string) (*types.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.memoryEntries[sessionID]
	if !ok {
		return nil, fmt.Errorf("storage: no memory entries for session %s", sessionID)
	}
	e, ok := bucket[id]
	if !ok {
		return nil, fmt.Errorf("storage: memory entry %s not found", id)
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStorage) DeleteMemoryEntry(_ context.Context, sessionID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bucket, ok := s.memoryEntries[sessionID]; ok {
		delete(bucket, id)
	}
	return nil
}

func (s *MemoryStorage) ListMemoryEntries(_ context.Context, sessionID string, tier types.MemoryTier) ([]*types.MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.MemoryEntry, 0)
	for _, e := range s.memoryEntries[sessionID] {
		if e.Tier == tier {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStorage) SaveSession(_ context.Context, snap *SessionSnapshot) error {
	if snap.SessionID == "" {
		return fmt.Errorf("storage: session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *snap
	s.sessions[snap.SessionID] = &cp
	return nil
}

func (s *MemoryStorage) GetSession(_ context.Context, sessionID string) (*SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("storage: session %s not found", sessionID)
	}
	cp := *snap
	return &cp, nil
}

func (s *MemoryStorage) GetMetrics(_ context.Context) (*Metrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := &Metrics{
		NodeCount:    len(s.nodes),
		SessionCount: len(s.sessions),
	}
	for _, es := range s.edgesOut {
		m.EdgeCount += len(es)
	}
	for _, dps := range s.decisionPoints {
		m.DecisionPointCount += len(dps)
	}
	for _, bucket := range s.memoryEntries {
		m.MemoryEntryCount += len(bucket)
	}
	return m, nil
}

var _ Storage = (*MemoryStorage)(nil)
