package streaming

import (
	"reasonforge/internal/fork"
	"reasonforge/internal/types"
)

// ChannelSink implements fork.EventSink by translating each callback into an
// Event and sending it on Events. Sends block, so callers run ThinkFork in
// its own goroutine when a slow consumer must not stall branch execution.
type ChannelSink struct {
	Events chan<- Event
}

// NewChannelSink builds a ChannelSink writing to ch.
func NewChannelSink(ch chan<- Event) *ChannelSink {
	return &ChannelSink{Events: ch}
}

var _ fork.EventSink = (*ChannelSink)(nil)

func (s *ChannelSink) ForkStart(styles []types.Style, mode string) {
	s.Events <- Event{Type: EventForkStart, Styles: styles, Mode: mode}
}

func (s *ChannelSink) BranchStart(style types.Style, index, total int) {
	s.Events <- Event{Type: EventBranchStart, Style: style, Index: index, Total: total}
}

func (s *ChannelSink) BranchComplete(style types.Style, result types.ForkBranchResult) {
	s.Events <- Event{
		Type:          EventBranchComplete,
		Style:         style,
		Conclusion:    result.Conclusion,
		Confidence:    result.Confidence,
		KeyInsights:   result.KeyInsights,
		Risks:         result.Risks,
		Opportunities: result.Opportunities,
		Assumptions:   result.Assumptions,
	}
}

func (s *ChannelSink) BranchError(style types.Style, message string) {
	s.Events <- Event{Type: EventBranchError, Style: style, Error: message}
}

func (s *ChannelSink) ComparisonStart() {
	s.Events <- Event{Type: EventComparisonStart}
}

func (s *ChannelSink) ComparisonComplete(result *types.ThinkForkResult) {
	ev := Event{Type: EventComparisonComplete}
	if result != nil {
		ev.ConvergencePoints = result.ConvergencePoints
		ev.DivergencePoints = result.DivergencePoints
		ev.MetaInsight = result.MetaInsight
		ev.RecommendedApproach = result.RecommendedApproach
	}
	s.Events <- ev
}

func (s *ChannelSink) DebateStart(totalRounds int) {
	s.Events <- Event{Type: EventDebateStart, TotalRounds: totalRounds}
}

func (s *ChannelSink) DebateEntryStart(round int, style types.Style) {
	s.Events <- Event{Type: EventDebateEntryStart, Round: round, Style: style}
}

func (s *ChannelSink) DebateEntryComplete(round int, entry types.DebateRoundEntry) {
	s.Events <- Event{
		Type:             EventDebateEntryComplete,
		Round:            round,
		Style:            entry.Style,
		Response:         entry.Response,
		Confidence:       entry.Confidence,
		PositionChanged:  entry.PositionChanged,
		KeyCounterpoints: entry.KeyCounterpoints,
		Concessions:      entry.Concessions,
	}
}

func (s *ChannelSink) DebateRoundComplete(round int) {
	s.Events <- Event{Type: EventDebateRoundComplete, Round: round}
}

// Done builds the terminal `done` event. Not part of fork.EventSink — the
// orchestrator/transport layer emits it once Fork/Debate has returned,
// since spec §4.5's degraded/persistenceIssues bookkeeping lives above
// ThinkFork.
func Done(result any, analysisID, correlationID string, degraded bool, persistenceErr error) Event {
	ev := Event{
		Type:          EventDone,
		Result:        result,
		AnalysisID:    analysisID,
		CorrelationID: correlationID,
		Degraded:      degraded,
	}
	if persistenceErr != nil {
		ev.PersistenceError = persistenceErr.Error()
	}
	return ev
}

// ErrorEvent builds a sanitised `error` event from an engine error, never
// leaking raw provider/internal error text to the client.
func ErrorEvent(err error, correlationID string) Event {
	kind := types.KindOf(err)
	return Event{
		Type:          EventError,
		Code:          string(kind),
		Message:       types.SanitizedMessage(kind),
		Recoverable:   recoverable(kind),
		CorrelationID: correlationID,
	}
}

func recoverable(kind types.ErrorKind) bool {
	switch kind {
	case types.ErrProviderRateLimited, types.ErrProviderTimeout, types.ErrProviderOverloaded, types.ErrPersistenceDegraded:
		return true
	default:
		return false
	}
}
