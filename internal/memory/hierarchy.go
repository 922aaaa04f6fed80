// Package memory implements the tiered MemoryHierarchy: main context
// (always visible), recall storage (bounded FIFO), and archival storage
// (unbounded, keyword+tag+recency+importance searchable). The three tiers
// share one token-estimation rule and one statistics snapshot.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"reasonforge/internal/storage"
	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

// Config configures one session's MemoryHierarchy. The semantic-search
// threshold from spec §4.3 ("reserved for semantic mode") lives on
// orchestrator.SemanticMemoryManager instead of here: it gates an
// EmbeddingIndex match, a concern the hierarchy's own keyword-scored
// ArchivalSearch never touches.
type Config struct {
	MaxMainContextTokens int
	RecallWindowSize     int
	EvictionThreshold    float64
	SelfManaged          bool
	SummarizeOnEviction  bool
}

// DefaultConfig returns the hierarchy's default tuning.
func DefaultConfig() Config {
	return Config{
		MaxMainContextTokens: 8000,
		RecallWindowSize:     50,
		EvictionThreshold:    0.6,
		SelfManaged:          true,
		SummarizeOnEviction:  false,
	}
}

// Stats is the hierarchy's statistics snapshot, per spec §4.3.
type Stats struct {
	MainEntries     int
	RecallEntries   int
	ArchivalEntries int
	MainTokens      int
	Capacity        int
	Utilisation     float64
	TotalInserts    int
	TotalSearches   int
	TotalEvictions  int
	TotalPromotions int
}

// Callbacks are invoked synchronously after the state change that caused
// them.
type Callbacks struct {
	OnEviction   func(ids []string)
	OnPromotion  func(ids []string)
	OnStatsUpdate func(Stats)
}

// Hierarchy is one session's tiered memory. It is single-owner: callers
// must not share one instance across sessions or goroutines without
// external synchronization (the orchestrator's SessionRegistry enforces
// one hierarchy per session).
type Hierarchy struct {
	sessionID string
	store     storage.MemoryEntryStore
	cfg       Config
	clock     testsupport.Clock
	callbacks Callbacks

	systemPrompt    string
	coreMemoryHuman []string
	coreMemoryAgent []string
	working         []*types.MemoryEntry // main_context tier, insertion order
	recall          []*types.MemoryEntry // recall_storage tier, FIFO oldest-first

	stats Stats
}

// New builds a Hierarchy for one session with empty working memory and
// recall. The system prompt, set with SetSystemPrompt, counts toward the
// always-visible main-context token count.
func New(sessionID string, store storage.MemoryEntryStore, cfg Config, clock testsupport.Clock, callbacks Callbacks) *Hierarchy {
	if clock == nil {
		clock = testsupport.RealClock{}
	}
	h := &Hierarchy{sessionID: sessionID, store: store, cfg: cfg, clock: clock, callbacks: callbacks}
	h.stats.Capacity = cfg.MaxMainContextTokens
	return h
}

// estimateTokens implements the spec's deterministic estimator:
// ceil(charLength / 4).
func estimateTokens(s string) int {
	return int(math.Ceil(float64(len(s)) / 4.0))
}

func (h *Hierarchy) mainContextTokens() int {
	total := estimateTokens(h.systemPrompt)
	for _, f := range h.coreMemoryHuman {
		total += estimateTokens(f)
	}
	for _, f := range h.coreMemoryAgent {
		total += estimateTokens(f)
	}
	for _, e := range h.working {
		total += estimateTokens(e.Content)
	}
	return total
}

// MainContext renders the always-visible context the provider sees.
func (h *Hierarchy) MainContext() *types.MainContext {
	return &types.MainContext{
		SystemPrompt:    h.systemPrompt,
		CoreMemoryHuman: append([]string(nil), h.coreMemoryHuman...),
		CoreMemoryAgent: append([]string(nil), h.coreMemoryAgent...),
		Working:         append([]*types.MemoryEntry(nil), h.working...),
		EstimatedTokens: h.mainContextTokens(),
		MaxTokens:       h.cfg.MaxMainContextTokens,
	}
}

// SetSystemPrompt sets the system prompt contributing to main-context
// token estimation.
func (h *Hierarchy) SetSystemPrompt(p string) { h.systemPrompt = p }

// AddToWorkingMemory appends to main working memory and recall storage;
// may trigger auto-eviction.
func (h *Hierarchy) AddToWorkingMemory(ctx context.Context, content string, importance float64, source types.MemorySource, sourceID string) (*types.MemoryEntry, error) {
	if content == "" {
		return nil, types.NewError(types.ErrInvalidInput, "content must not be empty")
	}
	now := h.clock.Now()
	entry := &types.MemoryEntry{
		ID: uuid.NewString(), Tier: types.TierMain, Content: content,
		Importance: types.Clamp01(importance), LastAccessedAt: now, CreatedAt: now,
		Source: source, SourceID: sourceID,
	}
	h.working = append(h.working, entry)
	if promoted := h.appendToRecall(entry); promoted != nil {
		// best-effort: a failed archival rescue does not block this insert,
		// it just means the rescued entry is lost rather than archived.
		_ = h.store.SaveMemoryEntry(ctx, h.sessionID, promoted)
	}
	h.stats.TotalInserts++

	if err := h.store.SaveMemoryEntry(ctx, h.sessionID, entry); err != nil {
		return entry, types.WrapError(types.ErrPersistenceDegraded, "failed to persist working memory entry", err)
	}

	h.maybeAutoEvict(ctx)
	h.publishStats()
	return entry, nil
}

// appendToRecall enforces the recall window: when it overflows, the
// oldest entry is shifted out. If its importance exceeds the eviction
// threshold it is rescued into archival (returned here for the caller to
// persist); otherwise it is simply dropped.
func (h *Hierarchy) appendToRecall(entry *types.MemoryEntry) *types.MemoryEntry {
	cp := *entry
	cp.Tier = types.TierRecall
	h.recall = append(h.recall, &cp)

	if h.cfg.RecallWindowSize <= 0 || len(h.recall) <= h.cfg.RecallWindowSize {
		return nil
	}
	oldest := h.recall[0]
	h.recall = h.recall[1:]
	if oldest.Importance > h.cfg.EvictionThreshold {
		archival := *oldest
		archival.Tier = types.TierArchival
		return &archival
	}
	return nil
}

// ArchivalInsert appends to archival with clamped importance.
func (h *Hierarchy) ArchivalInsert(ctx context.Context, content string, tags []string, importance float64) (*types.MemoryEntry, error) {
	if content == "" {
		return nil, types.NewError(types.ErrInvalidInput, "content must not be empty")
	}
	now := h.clock.Now()
	entry := &types.MemoryEntry{
		ID: uuid.NewString(), Tier: types.TierArchival, Content: content, Tags: tags,
		Importance: types.Clamp01(importance), LastAccessedAt: now, CreatedAt: now,
	}
	h.stats.TotalInserts++
	if err := h.store.SaveMemoryEntry(ctx, h.sessionID, entry); err != nil {
		return entry, types.WrapError(types.ErrPersistenceDegraded, "failed to persist archival entry", err)
	}
	h.publishStats()
	return entry, nil
}

// ArchivalSearch tokenises the query into terms longer than two
// characters and scores every archival entry per spec §4.3.
func (h *Hierarchy) ArchivalSearch(ctx context.Context, query string, limit int) ([]*types.MemoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	h.stats.TotalSearches++

	terms := searchTerms(query)
	entries, err := h.store.ListMemoryEntries(ctx, h.sessionID, types.TierArchival)
	if err != nil {
		return nil, types.WrapError(types.ErrPersistenceDegraded, "failed to list archival entries", err)
	}
	if len(terms) == 0 {
		return nil, nil
	}

	type scored struct {
		entry *types.MemoryEntry
		score float64
	}
	var candidates []scored
	now := h.clock.Now()
	for _, e := range entries {
		score := 0.0
		lowerContent := strings.ToLower(e.Content)
		for _, t := range terms {
			if strings.Contains(lowerContent, t) {
				score++
			}
			for _, tag := range e.Tags {
				if strings.Contains(strings.ToLower(tag), t) {
					score += 0.5
				}
			}
		}
		if score <= 0 {
			continue
		}
		score += 0.3 * e.Importance
		ageDays := now.Sub(e.CreatedAt).Hours() / 24
		score -= 0.01 * ageDays
		candidates = append(candidates, scored{entry: e, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*types.MemoryEntry, 0, len(candidates))
	for _, c := range candidates {
		c.entry.LastAccessedAt = now
		c.entry.AccessCount++
		if err := h.store.SaveMemoryEntry(ctx, h.sessionID, c.entry); err != nil {
			continue // access-count bookkeeping failure does not drop the result
		}
		out = append(out, c.entry)
	}
	h.publishStats()
	return out, nil
}

func searchTerms(query string) []string {
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if len(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

// RecallSearch is a case-insensitive substring filter over recall
// storage, sorted by lastAccessedAt desc; it has no side effects on
// access counters.
func (h *Hierarchy) RecallSearch(query string, limit int) []*types.MemoryEntry {
	if limit <= 0 {
		limit = 10
	}
	h.stats.TotalSearches++

	lowerQuery := strings.ToLower(query)
	var hits []*types.MemoryEntry
	for _, e := range h.recall {
		if lowerQuery == "" || strings.Contains(strings.ToLower(e.Content), lowerQuery) {
			hits = append(hits, e)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].LastAccessedAt.After(hits[j].LastAccessedAt) })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// CoreMemoryAppend appends a fact to the named section; token count
// updates implicitly via mainContextTokens on next read.
func (h *Hierarchy) CoreMemoryAppend(section types.CoreMemorySection, content string) error {
	switch section {
	case types.SectionHuman:
		h.coreMemoryHuman = append(h.coreMemoryHuman, content)
	case types.SectionAgent:
		h.coreMemoryAgent = append(h.coreMemoryAgent, content)
	default:
		return types.NewError(types.ErrInvalidInput, "unknown core memory section")
	}
	return nil
}

// CoreMemoryReplace replaces oldContent with newContent by exact match.
func (h *Hierarchy) CoreMemoryReplace(section types.CoreMemorySection, oldContent, newContent string) error {
	list := &h.coreMemoryHuman
	if section == types.SectionAgent {
		list = &h.coreMemoryAgent
	}
	for i, f := range *list {
		if f == oldContent {
			(*list)[i] = newContent
			return nil
		}
	}
	return types.NewError(types.ErrInvalidInput, "not found")
}

// EvictToArchival removes entries present in working memory, preserving
// their id, tagging them source=compaction, and pushes them to archival.
// Already-archival ids are a no-op (idempotent).
func (h *Hierarchy) EvictToArchival(ctx context.Context, ids []string) error {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	remaining := h.working[:0:0]
	var evicted []string
	for _, e := range h.working {
		if !idSet[e.ID] {
			remaining = append(remaining, e)
			continue
		}
		archival := *e
		archival.Tier = types.TierArchival
		archival.Source = types.SourceCompaction
		if err := h.store.SaveMemoryEntry(ctx, h.sessionID, &archival); err != nil {
			remaining = append(remaining, e) // persistence failure: leave it in working memory
			continue
		}
		evicted = append(evicted, e.ID)
	}
	h.working = remaining
	if len(evicted) == 0 {
		return nil
	}
	h.stats.TotalEvictions++
	h.publishStats()
	if h.callbacks.OnEviction != nil {
		h.callbacks.OnEviction(evicted)
	}
	return nil
}

// PromoteToWorking is the symmetric operation to EvictToArchival; may
// trigger auto-eviction afterwards.
func (h *Hierarchy) PromoteToWorking(ctx context.Context, ids []string) error {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	entries, err := h.store.ListMemoryEntries(ctx, h.sessionID, types.TierArchival)
	if err != nil {
		return types.WrapError(types.ErrPersistenceDegraded, "failed to list archival entries", err)
	}

	var promoted []string
	for _, e := range entries {
		if !idSet[e.ID] {
			continue
		}
		working := *e
		working.Tier = types.TierMain
		if err := h.store.SaveMemoryEntry(ctx, h.sessionID, &working); err != nil {
			continue
		}
		h.working = append(h.working, &working)
		promoted = append(promoted, e.ID)
	}
	if len(promoted) == 0 {
		return nil
	}
	h.stats.TotalPromotions++
	if h.callbacks.OnPromotion != nil {
		h.callbacks.OnPromotion(promoted)
	}
	h.maybeAutoEvict(ctx)
	h.publishStats()
	return nil
}

// maybeAutoEvict implements the auto-eviction rule: when main-context
// tokens exceed maxMainContextTokens, pop the least-important working
// entries until estimated tokens are at or below 80% of max. Core memory
// is never touched.
func (h *Hierarchy) maybeAutoEvict(ctx context.Context) {
	if h.cfg.MaxMainContextTokens <= 0 || h.mainContextTokens() <= h.cfg.MaxMainContextTokens {
		return
	}
	sorted := append([]*types.MemoryEntry(nil), h.working...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Importance < sorted[j].Importance })

	target := int(0.8 * float64(h.cfg.MaxMainContextTokens))
	var popIDs []string
	remaining := map[string]bool{}
	for _, e := range h.working {
		remaining[e.ID] = true
	}
	for _, e := range sorted {
		if h.tokensFor(remaining) <= target {
			break
		}
		popIDs = append(popIDs, e.ID)
		delete(remaining, e.ID)
	}
	if len(popIDs) == 0 {
		return
	}
	_ = h.EvictToArchival(ctx, popIDs)
}

func (h *Hierarchy) tokensFor(keep map[string]bool) int {
	total := estimateTokens(h.systemPrompt)
	for _, f := range h.coreMemoryHuman {
		total += estimateTokens(f)
	}
	for _, f := range h.coreMemoryAgent {
		total += estimateTokens(f)
	}
	for _, e := range h.working {
		if keep[e.ID] {
			total += estimateTokens(e.Content)
		}
	}
	return total
}

// Statistics returns the current snapshot.
func (h *Hierarchy) Statistics(ctx context.Context) Stats {
	archivalCount := 0
	if entries, err := h.store.ListMemoryEntries(ctx, h.sessionID, types.TierArchival); err == nil {
		archivalCount = len(entries)
	}
	s := h.stats
	s.MainEntries = len(h.working)
	s.RecallEntries = len(h.recall)
	s.ArchivalEntries = archivalCount
	s.MainTokens = h.mainContextTokens()
	s.Capacity = h.cfg.MaxMainContextTokens
	if h.cfg.MaxMainContextTokens > 0 {
		s.Utilisation = float64(s.MainTokens) / float64(h.cfg.MaxMainContextTokens)
	}
	return s
}

func (h *Hierarchy) publishStats() {
	if h.callbacks.OnStatsUpdate != nil {
		h.callbacks.OnStatsUpdate(h.Statistics(context.Background()))
	}
}
