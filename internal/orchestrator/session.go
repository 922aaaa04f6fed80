// Package orchestrator implements the Orchestrator control loop: session
// lifecycle, complexity routing, dynamic effort, budget enforcement,
// compaction boundary creation, and plan extraction, per spec §4.5.
package orchestrator

import (
	"sync"

	"reasonforge/internal/types"
)

// maxRecentBlocks is the spec's rolling-thinking-history cap per session.
const maxRecentBlocks = 50

// Session tracks one client's orchestrator state: cumulative output tokens,
// compaction count, the budget-warning-triggered flag, a bounded rolling
// list of recent thinking blocks, the latest task plan, and the last-node
// pointer. A session is exclusively owned by one worker; the mutex guards
// against the orchestrator's own concurrent Process calls racing on the
// same session, not cross-process access.
type Session struct {
	mu sync.Mutex

	ID                     string
	CumulativeOutputTokens int
	CompactionCount        int
	BudgetWarningTriggered bool
	RecentBlocks           []types.ContentBlock
	Plan                   *types.TaskPlan
	LastThinkingNodeID     string
	State                  types.SessionState
}

// NewSession builds a fresh, active session.
func NewSession(id string) *Session {
	return &Session{ID: id, State: types.SessionActive}
}

// AppendBlocks appends new thinking blocks to the rolling history, then
// truncates to the most recent maxRecentBlocks entries (spec §4.5 step 6).
func (s *Session) AppendBlocks(blocks []types.ContentBlock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecentBlocks = append(s.RecentBlocks, blocks...)
	if len(s.RecentBlocks) > maxRecentBlocks {
		s.RecentBlocks = append([]types.ContentBlock(nil), s.RecentBlocks[len(s.RecentBlocks)-maxRecentBlocks:]...)
	}
}

// BudgetStatus renders the session's current budget snapshot against cfg.
func (s *Session) BudgetStatus(cfg Budget) types.BudgetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := types.BudgetStatus{
		CumulativeOutputTokens: s.CumulativeOutputTokens,
		MaxSessionOutputTokens: cfg.MaxSessionOutputTokens,
		CompactionCount:        s.CompactionCount,
		MaxCompactions:         cfg.MaxCompactions,
		WarningTriggered:       s.BudgetWarningTriggered,
	}
	if cfg.MaxSessionOutputTokens > 0 {
		status.PercentUsed = float64(s.CumulativeOutputTokens) / float64(cfg.MaxSessionOutputTokens)
	}
	return status
}

// addOutputTokens increments the cumulative counter and reports whether
// this call crossed warnAtPercent for the first time.
func (s *Session) addOutputTokens(n int, cfg Budget) (crossedWarning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CumulativeOutputTokens += n
	if s.BudgetWarningTriggered || cfg.MaxSessionOutputTokens <= 0 {
		return false
	}
	percent := float64(s.CumulativeOutputTokens) / float64(cfg.MaxSessionOutputTokens)
	if percent >= cfg.WarnAtPercent {
		s.BudgetWarningTriggered = true
		return true
	}
	return false
}

// exhausted reports whether the session has hit its hard output-token cap.
func (s *Session) exhausted(cfg Budget) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cfg.Enabled && cfg.MaxSessionOutputTokens > 0 && s.CumulativeOutputTokens >= cfg.MaxSessionOutputTokens
}

// sealed reports whether the session has hit its hard compaction cap.
func (s *Session) sealed(cfg Budget) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cfg.Enabled && cfg.MaxCompactions > 0 && s.CompactionCount >= cfg.MaxCompactions
}

func (s *Session) setState(state types.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
}

// state returns the session's current lifecycle state.
func (s *Session) state() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

func (s *Session) setPlan(plan *types.TaskPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Plan = plan
}

func (s *Session) setLastNode(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastThinkingNodeID = id
}

func (s *Session) lastNode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastThinkingNodeID
}

func (s *Session) incrementCompactions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CompactionCount++
}

// sessionTable is a concurrency-safe map of session id -> *Session, owned
// by one Orchestrator instance.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{sessions: make(map[string]*Session)}
}

func (t *sessionTable) getOrCreate(id string) *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[id]; ok {
		return s
	}
	s := NewSession(id)
	t.sessions[id] = s
	return s
}

func (t *sessionTable) evict(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}
