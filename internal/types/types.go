// Package types defines the core data structures shared across the reasoning
// engine: thinking blocks, the persisted ThinkGraph (nodes, edges, decision
// points), fork/debate results, and the tiered memory model.
//
// These types are value objects: once returned from a constructor they are
// safe to pass between goroutines as long as callers don't mutate shared
// slices/maps concurrently. The storage layer is responsible for any
// deep-copy guarantees it needs for concurrent readers.
package types

import "time"

// Effort is a coarse budget hint shaping provider thinking depth.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
	EffortMax    Effort = "max"
)

// ThinkingMode selects whether the engine lets the provider decide its own
// thinking budget (adaptive) or passes an explicit token budget (budgeted).
type ThinkingMode string

const (
	ThinkingAdaptive ThinkingMode = "adaptive"
	ThinkingBudgeted ThinkingMode = "budgeted"
)

// EffortBudgets maps an Effort to a token budget for ThinkingBudgeted mode.
var EffortBudgets = map[Effort]int{
	EffortLow:    5000,
	EffortMedium: 10000,
	EffortHigh:   20000,
	EffortMax:    50000,
}

// BlockKind enumerates the closed set of content block kinds a provider may
// emit within a single response.
type BlockKind string

const (
	BlockThinking  BlockKind = "thinking"
	BlockRedacted  BlockKind = "redacted"
	BlockText      BlockKind = "text"
	BlockToolUse   BlockKind = "tool_use"
	BlockCompact   BlockKind = "compaction"
)

// ContentBlock is one element of a provider response. Ordering within a
// response is preserved and meaningful; only the fields relevant to Kind are
// populated.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// BlockThinking
	Text      string `json:"text,omitempty"`
	Signature string `json:"signature,omitempty"`

	// BlockRedacted
	Opaque string `json:"opaque,omitempty"`

	// BlockToolUse
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// BlockCompact
	Summary string `json:"summary,omitempty"`
}

// TokenUsage records provider-reported token consumption for one call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StepKind categorizes one entry of a node's structured reasoning.
type StepKind string

const (
	StepAnalysis     StepKind = "analysis"
	StepHypothesis   StepKind = "hypothesis"
	StepEvaluation   StepKind = "evaluation"
	StepConsideration StepKind = "consideration"
	StepConclusion   StepKind = "conclusion"
)

// ReasoningStep is one tagged entry of a node's structured reasoning.
type ReasoningStep struct {
	Kind       StepKind `json:"kind"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
}

// NodeType enumerates the closed set of ThinkingNode kinds.
type NodeType string

const (
	NodeThinking    NodeType = "thinking"
	NodeCompaction  NodeType = "compaction"
	NodeForkBranch  NodeType = "fork_branch"
)

// ThinkingNode is one unit of persisted reasoning in the ThinkGraph. Nodes
// are never mutated after creation except that their outbound edges may
// grow via the graph package.
type ThinkingNode struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Reasoning  string     `json:"reasoning"`
	InputQuery string     `json:"input_query,omitempty"`
	Response   string     `json:"response,omitempty"`
	Confidence float64    `json:"confidence"`
	Steps      []ReasoningStep `json:"steps,omitempty"`
	NodeType   NodeType   `json:"node_type"`
	Usage      TokenUsage `json:"usage"`
	ParentID   string     `json:"parent_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EdgeType enumerates the closed set of ReasoningEdge types.
type EdgeType string

const (
	EdgeInfluences EdgeType = "influences"
	EdgeSupports   EdgeType = "supports"
	EdgeRefines    EdgeType = "refines"
	EdgeContradicts EdgeType = "contradicts"
	EdgeSupersedes EdgeType = "supersedes"
)

// ReasoningEdge is a directed, typed connection between two ThinkingNodes.
type ReasoningEdge struct {
	ID       string         `json:"id"`
	SourceID string         `json:"source_id"`
	TargetID string         `json:"target_id"`
	Type     EdgeType       `json:"type"`
	Weight   float64        `json:"weight"`
	Metadata map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Alternative is a rejected path recorded alongside a DecisionPoint.
type Alternative struct {
	Path           string `json:"path"`
	ReasonRejected string `json:"reason_rejected"`
}

// DecisionPoint belongs to exactly one ThinkingNode.
type DecisionPoint struct {
	ID               string        `json:"id"`
	NodeID           string        `json:"node_id"`
	StepNumber       int           `json:"step_number"`
	Description      string        `json:"description"`
	ChosenPath       string        `json:"chosen_path"`
	Alternatives     []Alternative `json:"alternatives,omitempty"`
	Confidence       float64       `json:"confidence"`
	ReasoningExcerpt string        `json:"reasoning_excerpt,omitempty"`
}

// Style is one of the four stylistically-distinct ThinkFork reasoning
// branches.
type Style string

const (
	StyleConservative Style = "conservative"
	StyleAggressive   Style = "aggressive"
	StyleBalanced     Style = "balanced"
	StyleContrarian   Style = "contrarian"
)

// CanonicalStyleOrder is the tie-break and default-selection order used
// throughout ThinkFork.
var CanonicalStyleOrder = []Style{StyleConservative, StyleAggressive, StyleBalanced, StyleContrarian}

// ForkBranchResult is the outcome of one reasoning branch for one style.
type ForkBranchResult struct {
	Style        Style    `json:"style"`
	Conclusion   string   `json:"conclusion"`
	Confidence   float64  `json:"confidence"`
	KeyInsights  []string `json:"key_insights"`
	Risks        []string `json:"risks,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	Assumptions  []string `json:"assumptions,omitempty"`
	Tokens       int      `json:"tokens"`
	DurationMS   int64    `json:"duration_ms"`
	Error        string   `json:"error,omitempty"`
}

// Agreement categorizes how strongly branches converge on a topic.
type Agreement string

const (
	AgreementFull    Agreement = "full"
	AgreementPartial Agreement = "partial"
	AgreementNone    Agreement = "none"
)

// ConvergencePoint records a topic on which some set of styles agree.
type ConvergencePoint struct {
	Topic     string    `json:"topic"`
	Agreement Agreement `json:"agreement"`
	Styles    []Style   `json:"styles"`
	Summary   string    `json:"summary"`
}

// Significance categorizes how consequential a divergence is.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
)

// StylePosition is one style's stance within a DivergencePoint.
type StylePosition struct {
	Style    Style  `json:"style"`
	Position string `json:"position"`
}

// DivergencePoint records a topic on which styles disagree.
type DivergencePoint struct {
	Topic          string          `json:"topic"`
	Positions      []StylePosition `json:"positions"`
	Significance   Significance    `json:"significance"`
	Recommendation string          `json:"recommendation,omitempty"`
}

// RecommendedApproach is the comparison step's pick of the strongest branch.
type RecommendedApproach struct {
	Style      Style   `json:"style"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
}

// ThinkForkResult is the aggregate outcome of one fork() call.
type ThinkForkResult struct {
	Query                string                `json:"query"`
	Branches             []ForkBranchResult    `json:"branches"`
	ConvergencePoints     []ConvergencePoint    `json:"convergence_points,omitempty"`
	DivergencePoints      []DivergencePoint     `json:"divergence_points,omitempty"`
	MetaInsight           string                `json:"meta_insight"`
	RecommendedApproach   *RecommendedApproach  `json:"recommended_approach,omitempty"`
	TotalTokens           int                   `json:"total_tokens"`
	TotalDurationMS       int64                 `json:"total_duration_ms"`
	Errors                []string              `json:"errors,omitempty"`
	FallbackPromptsUsed   []Style               `json:"fallback_prompts_used,omitempty"`
	AppliedGuidance       []Style               `json:"applied_guidance,omitempty"`
}

// DebateRoundEntry is one style's response within one debate round.
type DebateRoundEntry struct {
	Style             Style    `json:"style"`
	Round             int      `json:"round"`
	Response          string   `json:"response"`
	Confidence        float64  `json:"confidence"`
	PositionChanged   bool     `json:"position_changed"`
	KeyCounterpoints  []string `json:"key_counterpoints,omitempty"`
	Concessions       []string `json:"concessions,omitempty"`
}

// DebateResult is the aggregate outcome of one debate() call.
type DebateResult struct {
	Fork               *ThinkForkResult    `json:"fork"`
	Entries            []DebateRoundEntry  `json:"entries"`
	Consensus          string              `json:"consensus,omitempty"`
	ConsensusConfidence float64            `json:"consensus_confidence,omitempty"`
}

// MemoryTier is one of the three tiers of the memory hierarchy.
type MemoryTier string

const (
	TierMain      MemoryTier = "main_context"
	TierRecall    MemoryTier = "recall_storage"
	TierArchival  MemoryTier = "archival_storage"
)

// MemorySource categorizes where a MemoryEntry originated.
type MemorySource string

const (
	SourceUserInput      MemorySource = "user_input"
	SourceThinkingNode   MemorySource = "thinking_node"
	SourceDecisionPoint  MemorySource = "decision_point"
	SourceMetacognitive  MemorySource = "metacognitive"
	SourceKnowledgeBase  MemorySource = "knowledge_base"
	SourceCompaction     MemorySource = "compaction"
)

// MemoryEntry is one unit of tiered memory content.
type MemoryEntry struct {
	ID             string       `json:"id"`
	Tier           MemoryTier   `json:"tier"`
	Content        string       `json:"content"`
	Importance     float64      `json:"importance"`
	LastAccessedAt time.Time    `json:"last_accessed_at"`
	AccessCount    int          `json:"access_count"`
	Source         MemorySource `json:"source"`
	SourceID       string       `json:"source_id,omitempty"`
	Tags           []string     `json:"tags,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// CoreMemorySection is one of the two always-visible core-memory facts
// lists.
type CoreMemorySection string

const (
	SectionHuman CoreMemorySection = "human"
	SectionAgent CoreMemorySection = "agent"
)

// MainContext is the part of memory always visible to the provider.
type MainContext struct {
	SystemPrompt    string              `json:"system_prompt"`
	CoreMemoryHuman []string            `json:"core_memory_human"`
	CoreMemoryAgent []string            `json:"core_memory_agent"`
	Working         []*MemoryEntry      `json:"working"`
	EstimatedTokens int                 `json:"estimated_tokens"`
	MaxTokens       int                 `json:"max_tokens"`
}

// TaskPlan is the structured output of the orchestrator's create_task_plan
// tool.
type TaskPlan struct {
	Goal  string   `json:"goal"`
	Tasks []string `json:"tasks"`
}

// BudgetStatus summarizes a session's token and compaction budget.
type BudgetStatus struct {
	CumulativeOutputTokens int     `json:"cumulative_output_tokens"`
	MaxSessionOutputTokens int     `json:"max_session_output_tokens"`
	PercentUsed            float64 `json:"percent_used"`
	CompactionCount        int     `json:"compaction_count"`
	MaxCompactions         int     `json:"max_compactions"`
	WarningTriggered       bool    `json:"warning_triggered"`
}

// SessionState is the orchestrator's session lifecycle state machine.
type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionExhausted SessionState = "exhausted"
	SessionSealed    SessionState = "sealed"
)

// Complexity is the orchestrator's classification of an incoming query.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityStandard Complexity = "standard"
	ComplexityComplex  Complexity = "complex"
)

// SteeringAction enumerates the closed set of post-fork, human-driven
// steering operations.
type SteeringAction string

const (
	SteeringExpand    SteeringAction = "expand"
	SteeringMerge     SteeringAction = "merge"
	SteeringChallenge SteeringAction = "challenge"
	SteeringRefork    SteeringAction = "refork"
)

// SteeringResult is the outcome of one steering action against a prior
// ThinkForkResult.
type SteeringResult struct {
	Action      SteeringAction `json:"action"`
	Result      string         `json:"result"`
	Confidence  float64        `json:"confidence"`
	KeyInsights []string       `json:"key_insights,omitempty"`
	Tokens      int            `json:"tokens"`
	DurationMS  int64          `json:"duration_ms"`
}
