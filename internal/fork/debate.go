package fork

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reasonforge/internal/engine"
	"reasonforge/internal/provider"
	"reasonforge/internal/schema"
	"reasonforge/internal/types"
)

// DebateOptions configures one debate() call.
type DebateOptions struct {
	Fork   Options
	Rounds int
	Events EventSink
}

func (o DebateOptions) events() EventSink {
	if o.Events == nil {
		return noopSink{}
	}
	return o.Events
}

type position struct {
	conclusion string
	confidence float64
	insights   []string
}

// Debate runs fork() to establish initial positions, then Options.Rounds
// sequential rounds of adversarial exchange between surviving styles.
func (e *ThinkForkEngine) Debate(ctx context.Context, query string, opts DebateOptions) (*types.DebateResult, error) {
	if opts.Rounds < 1 || opts.Rounds > 5 {
		return nil, types.NewError(types.ErrInvalidInput, "rounds must be in [1,5]")
	}

	forkResult, err := e.fork(ctx, query, opts.Fork, "debate")
	if err != nil {
		return nil, err
	}

	positions := make(map[types.Style]position)
	var surviving []types.Style
	for _, b := range forkResult.Branches {
		if b.Error != "" {
			continue
		}
		positions[b.Style] = position{conclusion: b.Conclusion, confidence: b.Confidence, insights: b.KeyInsights}
		surviving = append(surviving, b.Style)
	}

	sink := opts.events()
	sink.DebateStart(opts.Rounds)

	var entries []types.DebateRoundEntry
	var lastRoundChanged bool
	for round := 1; round <= opts.Rounds; round++ {
		roundEntries, changed := e.runDebateRound(ctx, query, round, surviving, positions, opts.Fork.Effort, sink)
		entries = append(entries, roundEntries...)
		lastRoundChanged = changed
		sink.DebateRoundComplete(round)
	}

	result := &types.DebateResult{Fork: forkResult, Entries: entries}
	if consensus, confidence, ok := detectConsensus(surviving, positions, lastRoundChanged); ok {
		result.Consensus = consensus
		result.ConsensusConfidence = confidence
	}
	return result, nil
}

// runDebateRound runs one think() call per surviving style concurrently;
// results are applied to positions only after every call in the round has
// settled, matching "rounds are strictly sequential, within a round
// ordering is unspecified".
func (e *ThinkForkEngine) runDebateRound(ctx context.Context, query string, round int, surviving []types.Style, positions map[types.Style]position, effort types.Effort, sink EventSink) (entries []types.DebateRoundEntry, anyChanged bool) {
	type outcome struct {
		entry   types.DebateRoundEntry
		updated position
	}
	results := make([]outcome, len(surviving))

	var wg sync.WaitGroup
	for i, style := range surviving {
		sink.DebateEntryStart(round, style)
		wg.Add(1)
		go func(i int, style types.Style) {
			defer wg.Done()
			entry, updated := e.runDebateEntry(ctx, query, round, style, surviving, positions, effort)
			results[i] = outcome{entry: entry, updated: updated}
		}(i, style)
	}
	wg.Wait()

	for i, style := range surviving {
		entries = append(entries, results[i].entry)
		positions[style] = results[i].updated
		sink.DebateEntryComplete(round, results[i].entry)
		if results[i].entry.PositionChanged {
			anyChanged = true
		}
	}
	return entries, anyChanged
}

func (e *ThinkForkEngine) runDebateEntry(ctx context.Context, query string, round int, style types.Style, surviving []types.Style, positions map[types.Style]position, effort types.Effort) (types.DebateRoundEntry, position) {
	own := positions[style]
	prompt := debatePrompt(query, style, surviving, positions)
	systemPrompt, _ := resolvePrompt(e.Prompts, style)

	eng := engine.New(e.Provider, effort, e.Mode)
	res, err := eng.Think(ctx, systemPrompt, []provider.Message{{Role: "user", Content: prompt}}, engine.ThinkOptions{
		Effort: effort,
		Tools:  []provider.ToolSchema{schema.ToolRecordDebateResponse()},
	})
	if err != nil {
		// fallback entry: previous confidence, empty counterpoints
		return types.DebateRoundEntry{Style: style, Round: round, Response: own.conclusion, Confidence: own.confidence}, own
	}

	call := findToolUse(res.ToolUses, "record_debate_response")
	if call == nil {
		return types.DebateRoundEntry{Style: style, Round: round, Response: own.conclusion, Confidence: own.confidence}, own
	}

	entry := types.DebateRoundEntry{
		Style:            style,
		Round:            round,
		Response:         schema.CoerceString(call.ToolInput["response"]),
		Confidence:       schema.CoerceConfidence(call.ToolInput["confidence"]),
		PositionChanged:  schema.CoerceBool(call.ToolInput["position_changed"]),
		KeyCounterpoints: schema.CoerceStrings(call.ToolInput["key_counterpoints"]),
		Concessions:      schema.CoerceStrings(call.ToolInput["concessions"]),
	}
	updated := position{conclusion: entry.Response, confidence: entry.Confidence, insights: own.insights}
	return entry, updated
}

func debatePrompt(query string, self types.Style, surviving []types.Style, positions map[types.Style]position) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Debate topic:\n%s\n\n", query)
	fmt.Fprintf(&b, "Your previous position (%s):\n%s (confidence %.2f)\n\n", self, positions[self].conclusion, positions[self].confidence)
	b.WriteString("Other participants' current positions:\n")
	for _, s := range surviving {
		if s == self {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s (confidence %.2f)\n", s, positions[s].conclusion, positions[s].confidence)
	}
	b.WriteString("\nRespond to their positions: hold, concede, or refine your own.")
	return b.String()
}

// detectConsensus implements the end-of-debate consensus test: every
// surviving style's final confidence >= 0.7, no position changed in the
// last round, and at least one surviving style.
func detectConsensus(surviving []types.Style, positions map[types.Style]position, lastRoundChanged bool) (consensus string, confidence float64, ok bool) {
	if len(surviving) == 0 || lastRoundChanged {
		return "", 0, false
	}
	sum := 0.0
	var parts []string
	for _, s := range surviving {
		p := positions[s]
		if p.confidence < 0.7 {
			return "", 0, false
		}
		sum += p.confidence
		parts = append(parts, fmt.Sprintf("[%s] %s", s, p.conclusion))
	}
	return strings.Join(parts, " "), sum / float64(len(surviving)), true
}
