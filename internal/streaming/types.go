// Package streaming implements the engine's streaming event protocol from
// spec §6: a closed set of JSON event types describing ThinkFork/debate
// progress, emitted in causal order over a producer-consumer channel. The
// wire-level transport (HTTP/SSE, MCP progress notifications, ...) is a
// collaborator's concern — this package only produces correctly-ordered,
// correctly-shaped events and the "data: ...\n\n" / ": heartbeat\n\n" text
// a transport adapter serialises onto its wire.
package streaming

import "reasonforge/internal/types"

// EventType enumerates the complete closed set of event `type` values.
type EventType string

const (
	EventForkStart           EventType = "fork:start"
	EventBranchStart         EventType = "branch:start"
	EventBranchComplete      EventType = "branch:complete"
	EventBranchError         EventType = "branch:error"
	EventComparisonStart     EventType = "comparison:start"
	EventComparisonComplete  EventType = "comparison:complete"
	EventDebateStart         EventType = "debate:start"
	EventDebateEntryStart    EventType = "debate:entry_start"
	EventDebateEntryComplete EventType = "debate:entry_complete"
	EventDebateRoundComplete EventType = "debate:round_complete"
	EventDone                EventType = "done"
	EventError               EventType = "error"
)

// Event is one emission of the streaming protocol. Only the fields relevant
// to Type are populated; the rest are left zero and dropped by encoding/json
// via `omitempty`.
type Event struct {
	Type EventType `json:"type"`

	// fork:start
	Styles []types.Style `json:"styles,omitempty"`
	Mode   string        `json:"mode,omitempty"`

	// branch:start, branch:complete, branch:error, debate:entry_start,
	// debate:entry_complete (Style is shared across all of these)
	Style types.Style `json:"style,omitempty"`
	Index int         `json:"index,omitempty"`
	Total int         `json:"total,omitempty"`

	// branch:complete
	Conclusion    string   `json:"conclusion,omitempty"`
	Confidence    float64  `json:"confidence,omitempty"`
	KeyInsights   []string `json:"keyInsights,omitempty"`
	Risks         []string `json:"risks,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	Assumptions   []string `json:"assumptions,omitempty"`

	// branch:error, error
	Error string `json:"error,omitempty"`

	// comparison:complete
	ConvergencePoints   []types.ConvergencePoint   `json:"convergencePoints,omitempty"`
	DivergencePoints    []types.DivergencePoint    `json:"divergencePoints,omitempty"`
	MetaInsight         string                     `json:"metaInsight,omitempty"`
	RecommendedApproach *types.RecommendedApproach `json:"recommendedApproach,omitempty"`

	// debate:start, debate:round_complete
	TotalRounds int `json:"totalRounds,omitempty"`
	Round       int `json:"round,omitempty"`

	// debate:entry_complete
	Response          string   `json:"response,omitempty"`
	PositionChanged   bool     `json:"positionChanged,omitempty"`
	KeyCounterpoints  []string `json:"keyCounterpoints,omitempty"`
	Concessions       []string `json:"concessions,omitempty"`

	// done
	Result          any    `json:"result,omitempty"`
	AnalysisID      string `json:"analysisId,omitempty"`
	CorrelationID   string `json:"correlationId,omitempty"`
	Degraded        bool   `json:"degraded,omitempty"`
	PersistenceError string `json:"persistenceError,omitempty"`

	// error
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	Recoverable bool   `json:"recoverable,omitempty"`
}
