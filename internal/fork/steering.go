package fork

import (
	"context"
	"fmt"
	"strings"

	"reasonforge/internal/engine"
	"reasonforge/internal/provider"
	"reasonforge/internal/schema"
	"reasonforge/internal/types"
)

// Expand asks one style to go deeper on its prior conclusion, optionally
// steered in a human-specified direction.
func (e *ThinkForkEngine) Expand(ctx context.Context, prior *types.ThinkForkResult, style types.Style, direction string, effort types.Effort) (*types.SteeringResult, error) {
	branch, err := findBranch(prior, style)
	if err != nil {
		return nil, err
	}
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Original query:\n%s\n\nYour prior conclusion:\n%s\n\n", prior.Query, branch.Conclusion)
	if direction != "" {
		fmt.Fprintf(&prompt, "Expand specifically in this direction: %s\n", direction)
	} else {
		prompt.WriteString("Expand on this conclusion with more depth and nuance.\n")
	}
	return e.runSteering(ctx, types.SteeringExpand, style, prompt.String(), effort)
}

// Merge synthesises a single position from >= 2 prior styles' conclusions.
func (e *ThinkForkEngine) Merge(ctx context.Context, prior *types.ThinkForkResult, styles []types.Style, focus string, effort types.Effort) (*types.SteeringResult, error) {
	if len(styles) < 2 {
		return nil, types.NewError(types.ErrInvalidInput, "merge requires at least 2 styles")
	}
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Original query:\n%s\n\nSynthesise a single merged position from these conclusions:\n", prior.Query)
	for _, s := range styles {
		branch, err := findBranch(prior, s)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&prompt, "[%s] %s\n", s, branch.Conclusion)
	}
	if focus != "" {
		fmt.Fprintf(&prompt, "\nFocus the synthesis on: %s\n", focus)
	}
	return e.runSteering(ctx, types.SteeringMerge, types.StyleBalanced, prompt.String(), effort)
}

// Challenge asks one style to defend its conclusion against a specific
// objection.
func (e *ThinkForkEngine) Challenge(ctx context.Context, prior *types.ThinkForkResult, style types.Style, challenge string, effort types.Effort) (*types.SteeringResult, error) {
	branch, err := findBranch(prior, style)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf("Original query:\n%s\n\nYour conclusion:\n%s\n\nChallenge:\n%s\n\nRespond to this challenge directly.", prior.Query, branch.Conclusion, challenge)
	return e.runSteering(ctx, types.SteeringChallenge, style, prompt, effort)
}

// Refork re-runs fork() with fresh additional context layered on top of
// the original query.
func (e *ThinkForkEngine) Refork(ctx context.Context, prior *types.ThinkForkResult, newContext string, opts Options) (*types.ThinkForkResult, error) {
	opts.AdditionalContext = strings.TrimSpace(strings.Join([]string{opts.AdditionalContext, newContext}, "\n"))
	return e.Fork(ctx, prior.Query, opts)
}

func (e *ThinkForkEngine) runSteering(ctx context.Context, action types.SteeringAction, style types.Style, prompt string, effort types.Effort) (*types.SteeringResult, error) {
	systemPrompt, _ := resolvePrompt(e.Prompts, style)
	start := e.Clock.Now()
	eng := engine.New(e.Provider, effort, e.Mode)
	res, err := eng.Think(ctx, systemPrompt, []provider.Message{{Role: "user", Content: prompt}}, engine.ThinkOptions{
		Effort: effort,
		Tools:  []provider.ToolSchema{schema.ToolRecordConclusion()},
	})
	duration := e.Clock.Now().Sub(start).Milliseconds()
	if err != nil {
		return nil, types.WrapError(types.KindOf(err), types.SanitizedMessage(types.KindOf(err)), err)
	}

	result := &types.SteeringResult{Action: action, Tokens: res.Usage.OutputTokens, DurationMS: duration}
	call := findToolUse(res.ToolUses, "record_conclusion")
	if call == nil {
		result.Result = joinText(res.Text)
		result.Confidence = 0.5
		return result, nil
	}
	result.Result = schema.CoerceString(call.ToolInput["conclusion"])
	result.Confidence = schema.CoerceConfidence(call.ToolInput["confidence"])
	result.KeyInsights = schema.CoerceStrings(call.ToolInput["key_insights"])
	return result, nil
}

func findBranch(prior *types.ThinkForkResult, style types.Style) (*types.ForkBranchResult, error) {
	for i := range prior.Branches {
		if prior.Branches[i].Style == style {
			if prior.Branches[i].Error != "" {
				return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("style %q has no successful conclusion to steer from", style))
			}
			return &prior.Branches[i], nil
		}
	}
	return nil, types.NewError(types.ErrInvalidInput, fmt.Sprintf("style %q not present in prior result", style))
}

func joinText(blocks []types.ContentBlock) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.Text)
	}
	return b.String()
}
