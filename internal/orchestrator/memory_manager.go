package orchestrator

import (
	"context"
	"sort"

	"reasonforge/internal/memory"
)

// knowledgeSnippetLimit is the spec §4.5 step 3 cap on relevant snippets
// folded into the routing call's knowledge prelude.
const knowledgeSnippetLimit = 5

// MemoryManager is the orchestrator's collaborator for knowledge-context
// retrieval: up to 5 relevant snippets drawn from a session's archival and
// recall tiers, by semantic (keyword-scored) search.
type MemoryManager interface {
	RelevantSnippets(ctx context.Context, sessionID, query string) ([]string, error)
}

// HierarchyMemoryManager implements MemoryManager directly against a
// session's MemoryHierarchy, combining archival's scored search with
// recall's substring search and taking the top results by importance.
type HierarchyMemoryManager struct {
	Registry *SessionRegistry
	Hydrate  HydrateFunc
}

// NewHierarchyMemoryManager builds a MemoryManager backed by registry,
// hydrating sessions via hydrate when not already cached.
func NewHierarchyMemoryManager(registry *SessionRegistry, hydrate HydrateFunc) *HierarchyMemoryManager {
	return &HierarchyMemoryManager{Registry: registry, Hydrate: hydrate}
}

func (m *HierarchyMemoryManager) RelevantSnippets(ctx context.Context, sessionID, query string) ([]string, error) {
	h, err := m.Registry.Get(ctx, sessionID, m.Hydrate)
	if err != nil {
		return nil, err
	}

	archival, err := h.ArchivalSearch(ctx, query, knowledgeSnippetLimit)
	if err != nil {
		return nil, err
	}
	recall := h.RecallSearch(query, knowledgeSnippetLimit)

	type candidate struct {
		content    string
		importance float64
	}
	var all []candidate
	seen := make(map[string]bool)
	for _, e := range archival {
		if seen[e.Content] {
			continue
		}
		seen[e.Content] = true
		all = append(all, candidate{content: e.Content, importance: e.Importance})
	}
	for _, e := range recall {
		if seen[e.Content] {
			continue
		}
		seen[e.Content] = true
		all = append(all, candidate{content: e.Content, importance: e.Importance})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].importance > all[j].importance })
	if len(all) > knowledgeSnippetLimit {
		all = all[:knowledgeSnippetLimit]
	}

	snippets := make([]string, len(all))
	for i, c := range all {
		snippets[i] = c.content
	}
	return snippets, nil
}

// NoopMemoryManager never returns any knowledge context; useful for tests
// and deployments that don't wire a MemoryHierarchy.
type NoopMemoryManager struct{}

func (NoopMemoryManager) RelevantSnippets(ctx context.Context, sessionID, query string) ([]string, error) {
	return nil, nil
}

// SemanticMemoryManager augments HierarchyMemoryManager's keyword-scored
// snippets with an optional EmbeddingIndex, per spec §4.3's `searchThreshold`
// option ("reserved for semantic mode"). When Index is nil it behaves
// identically to HierarchyMemoryManager; this lets a deployment opt into
// semantic retrieval without the core engine depending on one being
// configured.
type SemanticMemoryManager struct {
	*HierarchyMemoryManager
	Index     memory.EmbeddingIndex
	Threshold float32
}

// NewSemanticMemoryManager builds a MemoryManager that falls back to pure
// keyword scoring whenever idx is nil.
func NewSemanticMemoryManager(registry *SessionRegistry, hydrate HydrateFunc, idx memory.EmbeddingIndex, threshold float32) *SemanticMemoryManager {
	return &SemanticMemoryManager{
		HierarchyMemoryManager: NewHierarchyMemoryManager(registry, hydrate),
		Index:                  idx,
		Threshold:              threshold,
	}
}

func (m *SemanticMemoryManager) RelevantSnippets(ctx context.Context, sessionID, query string) ([]string, error) {
	keyword, err := m.HierarchyMemoryManager.RelevantSnippets(ctx, sessionID, query)
	if err != nil {
		return nil, err
	}
	if m.Index == nil {
		return keyword, nil
	}

	matches, err := m.Index.Query(ctx, query, knowledgeSnippetLimit)
	if err != nil {
		// a semantic-index failure degrades to keyword-only results rather
		// than failing the whole knowledge-context step.
		return keyword, nil
	}

	seen := make(map[string]bool, len(keyword))
	for _, s := range keyword {
		seen[s] = true
	}
	out := append([]string(nil), keyword...)
	for _, match := range matches {
		if match.Similarity < m.Threshold || seen[match.Content] {
			continue
		}
		seen[match.Content] = true
		out = append(out, match.Content)
	}
	if len(out) > knowledgeSnippetLimit {
		out = out[:knowledgeSnippetLimit]
	}
	return out, nil
}

var _ MemoryManager = (*HierarchyMemoryManager)(nil)
var _ MemoryManager = (*SemanticMemoryManager)(nil)
var _ MemoryManager = NoopMemoryManager{}
