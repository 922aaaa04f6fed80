// Package fork implements ThinkForkEngine: concurrent multi-style
// reasoning over a single query (fork), post-fork human steering
// (expand/merge/challenge/refork), and multi-round adversarial debate
// between styles (debate).
package fork

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reasonforge/internal/engine"
	"reasonforge/internal/provider"
	"reasonforge/internal/schema"
	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

// ThinkForkEngine runs reasoning branches against a shared provider. Each
// branch gets its own *engine.ThinkingEngine instance, the way each
// teacher thinking mode owned its own piece of state rather than sharing
// mutable fields across concurrent calls.
type ThinkForkEngine struct {
	Provider provider.ThinkingProvider
	Mode     types.ThinkingMode
	Prompts  PromptRegistry
	Clock    testsupport.Clock
}

// New builds a ThinkForkEngine. prompts and clock may be nil; sensible
// defaults are substituted (built-in-only prompt registry, real clock).
func New(p provider.ThinkingProvider, mode types.ThinkingMode, prompts PromptRegistry, clock testsupport.Clock) *ThinkForkEngine {
	if prompts == nil {
		prompts = DefaultPromptRegistry()
	}
	if clock == nil {
		clock = testsupport.RealClock{}
	}
	return &ThinkForkEngine{Provider: p, Mode: mode, Prompts: prompts, Clock: clock}
}

// Options configures one fork() call.
type Options struct {
	Styles []types.Style // default: types.CanonicalStyleOrder
	Effort types.Effort

	// AnalyzeConvergence defaults to true when nil.
	AnalyzeConvergence *bool

	AdditionalContext string
	BranchGuidance    map[types.Style]string
	Events            EventSink
}

func (o Options) analyzeConvergence() bool {
	return o.AnalyzeConvergence == nil || *o.AnalyzeConvergence
}

func (o Options) events() EventSink {
	if o.Events == nil {
		return noopSink{}
	}
	return o.Events
}

func (o Options) styles() []types.Style {
	if len(o.Styles) == 0 {
		return types.CanonicalStyleOrder
	}
	return o.Styles
}

var validStyles = map[types.Style]bool{
	types.StyleConservative: true,
	types.StyleAggressive:   true,
	types.StyleBalanced:     true,
	types.StyleContrarian:   true,
}

func validateStyles(styles []types.Style) error {
	if len(styles) == 0 {
		return types.NewError(types.ErrInvalidInput, "styles must not be empty")
	}
	seen := make(map[types.Style]bool, len(styles))
	for _, s := range styles {
		if !validStyles[s] {
			return types.NewError(types.ErrInvalidInput, fmt.Sprintf("unknown style %q", s))
		}
		if seen[s] {
			return types.NewError(types.ErrInvalidInput, fmt.Sprintf("duplicate style %q", s))
		}
		seen[s] = true
	}
	return nil
}

// Fork runs one fork() call: N concurrent branches, optional convergence
// analysis, and fallback meta-insight synthesis.
func (e *ThinkForkEngine) Fork(ctx context.Context, query string, opts Options) (*types.ThinkForkResult, error) {
	return e.fork(ctx, query, opts, "fork")
}

func (e *ThinkForkEngine) fork(ctx context.Context, query string, opts Options, mode string) (*types.ThinkForkResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.NewError(types.ErrInvalidInput, "query must not be empty")
	}
	styles := opts.styles()
	if err := validateStyles(styles); err != nil {
		return nil, err
	}
	sink := opts.events()
	sink.ForkStart(styles, mode)

	branches, fallbacks, appliedGuidance, totalTokens, totalDuration := e.runBranches(ctx, query, styles, opts, sink)

	result := &types.ThinkForkResult{
		Query:               query,
		Branches:            branches,
		TotalTokens:         totalTokens,
		TotalDurationMS:      totalDuration,
		FallbackPromptsUsed: fallbacks,
		AppliedGuidance:     appliedGuidance,
	}
	for _, b := range branches {
		if b.Error != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", b.Style, b.Error))
		}
	}

	succeeded := successfulBranches(branches)
	if opts.analyzeConvergence() && len(succeeded) >= 2 {
		sink.ComparisonStart()
		if err := e.runComparison(ctx, query, succeeded, opts.Effort, result); err != nil {
			result.Errors = append(result.Errors, "comparison: "+err.Error())
			result.MetaInsight = basicMetaInsight(branches)
		}
		sink.ComparisonComplete(result)
	} else {
		result.MetaInsight = basicMetaInsight(branches)
	}

	return result, nil
}

// runBranches launches one concurrent branch per style and waits for all
// settled results, preserving the caller's style order in the output
// slice regardless of completion order.
func (e *ThinkForkEngine) runBranches(ctx context.Context, query string, styles []types.Style, opts Options, sink EventSink) (branches []types.ForkBranchResult, fallbacks, appliedGuidance []types.Style, totalTokens int, totalDurationMS int64) {
	n := len(styles)
	results := make([]types.ForkBranchResult, n)
	usedFallback := make([]bool, n)
	usedGuidance := make([]bool, n)

	var wg sync.WaitGroup
	for i, style := range styles {
		sink.BranchStart(style, i, n)
		wg.Add(1)
		go func(i int, style types.Style) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = types.ForkBranchResult{Style: style, Error: fmt.Sprintf("panic: %v", r)}
				}
			}()
			res, fellBack, guided := e.runBranch(ctx, query, style, opts)
			results[i] = res
			usedFallback[i] = fellBack
			usedGuidance[i] = guided
		}(i, style)
	}
	wg.Wait()

	for i, style := range styles {
		if results[i].Error != "" {
			sink.BranchError(style, results[i].Error)
		} else {
			sink.BranchComplete(style, results[i])
		}
		if usedFallback[i] {
			fallbacks = append(fallbacks, style)
		}
		if usedGuidance[i] {
			appliedGuidance = append(appliedGuidance, style)
		}
		totalTokens += results[i].Tokens
		totalDurationMS = maxInt64(totalDurationMS, results[i].DurationMS)
	}
	return results, fallbacks, appliedGuidance, totalTokens, totalDurationMS
}

func (e *ThinkForkEngine) runBranch(ctx context.Context, query string, style types.Style, opts Options) (result types.ForkBranchResult, usedFallback, usedGuidance bool) {
	result.Style = style
	systemPrompt, fellBack := resolvePrompt(e.Prompts, style)
	guidance, hasGuidance := opts.BranchGuidance[style]

	var user strings.Builder
	if hasGuidance && guidance != "" {
		user.WriteString("Human guidance for this branch:\n")
		user.WriteString(guidance)
		user.WriteString("\n\n")
	}
	if opts.AdditionalContext != "" {
		user.WriteString("Additional context:\n")
		user.WriteString(opts.AdditionalContext)
		user.WriteString("\n\n")
	}
	user.WriteString("Query:\n")
	user.WriteString(query)

	start := e.Clock.Now()
	eng := engine.New(e.Provider, opts.Effort, e.Mode)
	res, err := eng.Think(ctx, systemPrompt, []provider.Message{{Role: "user", Content: user.String()}}, engine.ThinkOptions{
		Effort: opts.Effort,
		Tools:  []provider.ToolSchema{schema.ToolRecordConclusion()},
	})
	duration := e.Clock.Now().Sub(start).Milliseconds()
	result.DurationMS = duration

	if err != nil {
		result.Error = types.SanitizedMessage(types.KindOf(err))
		return result, fellBack, hasGuidance
	}
	result.Tokens = res.Usage.OutputTokens

	call := findToolUse(res.ToolUses, "record_conclusion")
	if call == nil {
		result.Error = "Model did not provide structured conclusion"
		return result, fellBack, hasGuidance
	}
	result.Conclusion = schema.CoerceString(call.ToolInput["conclusion"])
	result.Confidence = schema.CoerceConfidence(call.ToolInput["confidence"])
	result.KeyInsights = schema.CoerceStrings(call.ToolInput["key_insights"])
	result.Risks = schema.CoerceStrings(call.ToolInput["risks"])
	result.Opportunities = schema.CoerceStrings(call.ToolInput["opportunities"])
	result.Assumptions = schema.CoerceStrings(call.ToolInput["assumptions"])
	return result, fellBack, hasGuidance
}

func findToolUse(blocks []types.ContentBlock, name string) *types.ContentBlock {
	for i := range blocks {
		if blocks[i].ToolName == name {
			return &blocks[i]
		}
	}
	return nil
}

func successfulBranches(branches []types.ForkBranchResult) []types.ForkBranchResult {
	var out []types.ForkBranchResult
	for _, b := range branches {
		if b.Error == "" {
			out = append(out, b)
		}
	}
	return out
}

// basicMetaInsight synthesises a meta-insight when the comparison call
// cannot or did not run.
func basicMetaInsight(branches []types.ForkBranchResult) string {
	succeeded := successfulBranches(branches)
	if len(succeeded) == 0 {
		return "all branches failed"
	}
	high, low := 0, 0
	sum := 0.0
	for _, b := range succeeded {
		sum += b.Confidence
		switch {
		case b.Confidence >= 0.7:
			high++
		case b.Confidence < 0.4:
			low++
		}
	}
	avg := sum / float64(len(succeeded))
	switch {
	case high == len(succeeded):
		return "robust answer across all branches"
	case low == len(succeeded):
		return "significant uncertainty across all branches"
	default:
		return fmt.Sprintf("mixed confidence (avg %.0f%%), consider exploring divergence", avg*100)
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
