package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reasonforge/internal/engine"
	"reasonforge/internal/graph"
	"reasonforge/internal/provider"
	"reasonforge/internal/schema"
	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

// Budget configures per-session token and compaction enforcement.
type Budget struct {
	Enabled                bool
	MaxSessionOutputTokens int
	WarnAtPercent          float64
	MaxCompactions         int
}

// DefaultBudget is a permissive default: enforcement on, generous caps.
func DefaultBudget() Budget {
	return Budget{
		Enabled:                true,
		MaxSessionOutputTokens: 200000,
		WarnAtPercent:          0.8,
		MaxCompactions:         10,
	}
}

// Config bundles the orchestrator's tunables.
type Config struct {
	SystemPrompt  string
	EffortRouting EffortRouting
	Budget        Budget
}

// DefaultConfig returns the spec's default orchestrator tuning.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:  "You are a careful, structured reasoning assistant.",
		EffortRouting: DefaultEffortRouting(),
		Budget:        DefaultBudget(),
	}
}

// Hooks are fired synchronously by Process at the point named, mirroring
// the memory hierarchy's callback surface.
type Hooks struct {
	OnBudgetWarning   func(sessionID string, status types.BudgetStatus)
	OnBudgetExhausted func(sessionID string, status types.BudgetStatus)
}

// Orchestrator is the control loop described by spec §4.5: it classifies
// incoming queries, routes them to a dynamic effort level, enforces
// per-session budgets, drives the ThinkingEngine, persists to ThinkGraph,
// and hands off compaction-boundary bookkeeping.
type Orchestrator struct {
	Provider provider.ThinkingProvider
	Mode     types.ThinkingMode
	Graph    *graph.ThinkGraph
	Memory   MemoryManager
	Clock    testsupport.Clock
	Config   Config
	Hooks    Hooks

	sessions *sessionTable
}

// New builds an Orchestrator. mem and clock may be nil (NoopMemoryManager,
// real clock substituted).
func New(p provider.ThinkingProvider, mode types.ThinkingMode, g *graph.ThinkGraph, mem MemoryManager, clock testsupport.Clock, cfg Config) *Orchestrator {
	if mem == nil {
		mem = NoopMemoryManager{}
	}
	if clock == nil {
		clock = testsupport.RealClock{}
	}
	return &Orchestrator{
		Provider: p, Mode: mode, Graph: g, Memory: mem, Clock: clock, Config: cfg,
		sessions: newSessionTable(),
	}
}

// Session returns the session state for id, creating it active if absent.
func (o *Orchestrator) Session(id string) *Session {
	return o.sessions.getOrCreate(id)
}

// OrchestratorResult is the outcome of one Process call.
type OrchestratorResult struct {
	SessionID         string
	Complexity        types.Complexity
	Effort            types.Effort
	Response          string
	Node              *types.ThinkingNode
	DecisionPoints    []*types.DecisionPoint
	Plan              *types.TaskPlan
	BudgetStatus      types.BudgetStatus
	Degraded          bool
	PersistenceIssues []graph.PersistenceIssue
	Compacted         bool
	Terminal          bool
	TerminalReason    string
}

// Process implements spec §4.5's nine-step algorithm for one user message
// within sessionID.
func (o *Orchestrator) Process(ctx context.Context, sessionID, userMessage string) (*OrchestratorResult, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "message must not be empty")
	}

	sess := o.sessions.getOrCreate(sessionID)

	// Terminal states reject further Process calls outright (spec §4.5
	// session state machine) without re-running the budget math below.
	switch sess.state() {
	case types.SessionExhausted:
		return &OrchestratorResult{
			SessionID: sessionID, BudgetStatus: sess.BudgetStatus(o.Config.Budget),
			Terminal: true, TerminalReason: "session output token budget exhausted",
		}, nil
	case types.SessionSealed:
		return &OrchestratorResult{
			SessionID: sessionID, BudgetStatus: sess.BudgetStatus(o.Config.Budget),
			Terminal: true, TerminalReason: "session compaction cap reached",
		}, nil
	}

	// Step 1: budget gate.
	if sess.exhausted(o.Config.Budget) {
		status := sess.BudgetStatus(o.Config.Budget)
		if o.Hooks.OnBudgetExhausted != nil {
			o.Hooks.OnBudgetExhausted(sessionID, status)
		}
		sess.setState(types.SessionExhausted)
		return &OrchestratorResult{
			SessionID: sessionID, BudgetStatus: status,
			Terminal: true, TerminalReason: "session output token budget exhausted",
		}, nil
	}
	if sess.sealed(o.Config.Budget) {
		status := sess.BudgetStatus(o.Config.Budget)
		sess.setState(types.SessionSealed)
		return &OrchestratorResult{
			SessionID: sessionID, BudgetStatus: status,
			Terminal: true, TerminalReason: "session compaction cap reached",
		}, nil
	}

	// Step 2: complexity classification -> effort routing.
	complexity := Classify(userMessage)
	effort := o.Config.EffortRouting.EffortFor(complexity)

	// Step 3: knowledge context from the MemoryManager collaborator.
	prompt := userMessage
	if snippets, err := o.Memory.RelevantSnippets(ctx, sessionID, userMessage); err == nil && len(snippets) > 0 {
		var b strings.Builder
		b.WriteString("Relevant context:\n")
		for _, s := range snippets {
			b.WriteString("- ")
			b.WriteString(s)
			b.WriteString("\n")
		}
		b.WriteString("\nQuery:\n")
		b.WriteString(userMessage)
		prompt = b.String()
	}

	// Step 4: routing call.
	eng := engine.New(o.Provider, effort, o.Mode)
	res, err := eng.Think(ctx, o.Config.SystemPrompt, []provider.Message{{Role: "user", Content: prompt}}, engine.ThinkOptions{
		Effort: effort,
		Tools:  []provider.ToolSchema{schema.ToolCreateTaskPlan(), schema.ToolRouteToAgent()},
	})
	if err != nil {
		return nil, err
	}

	var plan *types.TaskPlan
	for _, call := range res.ToolUses {
		if call.ToolName == "create_task_plan" {
			plan = &types.TaskPlan{
				Goal:  schema.CoerceString(call.ToolInput["goal"]),
				Tasks: schema.CoerceStrings(call.ToolInput["tasks"]),
			}
		}
	}
	if plan != nil {
		sess.setPlan(plan)
	}

	// Step 5: token accounting + first-crossing warning.
	crossed := sess.addOutputTokens(res.Usage.OutputTokens, o.Config.Budget)
	if crossed && o.Hooks.OnBudgetWarning != nil {
		o.Hooks.OnBudgetWarning(sessionID, sess.BudgetStatus(o.Config.Budget))
	}

	// Step 6: thinking-history cap.
	sess.AppendBlocks(res.Content)

	// Step 7: graph persistence.
	var responseText string
	for _, t := range res.Text {
		responseText += t.Text
	}
	var reasoning strings.Builder
	for _, t := range res.Thinking {
		reasoning.WriteString(t.Text)
	}

	parentID := sess.lastNode()
	persisted := o.Graph.PersistThinkingNode(ctx, graph.NodeInput{
		SessionID:    sessionID,
		InputQuery:   userMessage,
		Response:     responseText,
		Reasoning:    reasoning.String(),
		NodeType:     types.NodeThinking,
		Usage:        res.Usage,
		ParentNodeID: parentID,
	})
	if persisted.Node != nil && nodeStagePersisted(persisted) {
		sess.setLastNode(persisted.Node.ID)
	}

	result := &OrchestratorResult{
		SessionID:         sessionID,
		Complexity:        complexity,
		Effort:            effort,
		Response:          responseText,
		Node:              persisted.Node,
		DecisionPoints:    persisted.DecisionPoints,
		Plan:              plan,
		Degraded:          persisted.Degraded,
		PersistenceIssues: persisted.PersistenceIssues,
		Compacted:         res.Compacted,
	}

	// Step 8: compaction handling.
	if res.Compacted {
		o.handleCompaction(ctx, sess, res, persisted.Node)
	}

	result.BudgetStatus = sess.BudgetStatus(o.Config.Budget)
	return result, nil
}

// nodeStagePersisted reports whether the node row itself was durably
// saved, as opposed to only the decision-point or edge stages degrading.
func nodeStagePersisted(p *graph.PersistResult) bool {
	for _, issue := range p.PersistenceIssues {
		if issue.Stage == "node" {
			return false
		}
	}
	return true
}

// handleCompaction creates a compaction-boundary node summarising what was
// compacted, links it via supersedes to the session's prior last node, and
// advances the last-node pointer to the boundary. Persistence failures
// degrade rather than abort, matching spec §4.5 step 8.
func (o *Orchestrator) handleCompaction(ctx context.Context, sess *Session, res *provider.Result, preCompactionNode *types.ThinkingNode) {
	sess.incrementCompactions()
	n := sess.CompactionCount

	var summaries strings.Builder
	for _, c := range res.Compactions {
		summaries.WriteString(c.Summary)
		summaries.WriteString("\n")
	}

	preID := ""
	if preCompactionNode != nil {
		preID = preCompactionNode.ID
	}
	summary := fmt.Sprintf(
		"compaction #%d at %s: pre-compaction node %s, cumulative output tokens %d, history size %d\n%s",
		n, o.Clock.Now().Format(time.RFC3339), preID, sess.CumulativeOutputTokens, len(sess.RecentBlocks), summaries.String(),
	)

	boundary := o.Graph.PersistCompactionBoundary(ctx, sess.ID, summary, sess.lastNode(), n, "provider_compaction_event", res.Usage)
	if boundary.Node != nil {
		sess.setLastNode(boundary.Node.ID)
	}
}
