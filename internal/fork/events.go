package fork

import "reasonforge/internal/types"

// EventSink receives ThinkFork/debate lifecycle events as they happen, in
// the causal order required by the streaming protocol: ForkStart precedes
// every BranchStart; each style's BranchStart precedes its
// BranchComplete/BranchError; Comparison events follow the last branch
// event. A nil EventSink is valid — fork/debate run silently.
type EventSink interface {
	ForkStart(styles []types.Style, mode string)
	BranchStart(style types.Style, index, total int)
	BranchComplete(style types.Style, result types.ForkBranchResult)
	BranchError(style types.Style, message string)
	ComparisonStart()
	ComparisonComplete(result *types.ThinkForkResult)
	DebateStart(totalRounds int)
	DebateEntryStart(round int, style types.Style)
	DebateEntryComplete(round int, entry types.DebateRoundEntry)
	DebateRoundComplete(round int)
}

// noopSink discards every event; used when Options.Events is nil so the
// rest of the package never has to nil-check the sink.
type noopSink struct{}

func (noopSink) ForkStart([]types.Style, string)                  {}
func (noopSink) BranchStart(types.Style, int, int)                {}
func (noopSink) BranchComplete(types.Style, types.ForkBranchResult) {}
func (noopSink) BranchError(types.Style, string)                  {}
func (noopSink) ComparisonStart()                                 {}
func (noopSink) ComparisonComplete(*types.ThinkForkResult)        {}
func (noopSink) DebateStart(int)                                  {}
func (noopSink) DebateEntryStart(int, types.Style)                {}
func (noopSink) DebateEntryComplete(int, types.DebateRoundEntry)  {}
func (noopSink) DebateRoundComplete(int)                          {}
