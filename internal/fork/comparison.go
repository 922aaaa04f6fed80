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

// runComparison issues the comparison think() call over every successful
// branch and fills in result's convergence/divergence/meta-insight fields.
// Returns an error only when the call itself fails or the tool was never
// invoked; the caller falls back to basicMetaInsight in that case.
func (e *ThinkForkEngine) runComparison(ctx context.Context, query string, succeeded []types.ForkBranchResult, effort types.Effort, result *types.ThinkForkResult) error {
	eng := engine.New(e.Provider, effort, e.Mode)
	prompt := comparisonPrompt(query, succeeded)

	res, err := eng.Think(ctx, comparisonSystemPrompt, []provider.Message{{Role: "user", Content: prompt}}, engine.ThinkOptions{
		Effort: effort,
		Tools:  []provider.ToolSchema{schema.ToolRecordComparison()},
	})
	if err != nil {
		return err
	}
	result.TotalTokens += res.Usage.OutputTokens

	call := findToolUse(res.ToolUses, "record_comparison")
	if call == nil {
		return types.NewError(types.ErrToolMissing, "model did not provide structured comparison")
	}

	result.ConvergencePoints = parseConvergencePoints(call.ToolInput["convergence_points"])
	result.DivergencePoints = parseDivergencePoints(call.ToolInput["divergence_points"])
	result.MetaInsight = schema.CoerceString(call.ToolInput["meta_insight"])
	result.RecommendedApproach = parseRecommendedApproach(call.ToolInput["recommended_approach"])
	return nil
}

const comparisonSystemPrompt = "You compare several independent reasoning conclusions on the same question. Identify where they converge, where they diverge and how significantly, and synthesise one meta-insight."

func comparisonPrompt(query string, branches []types.ForkBranchResult) string {
	var b strings.Builder
	b.WriteString("Original query:\n")
	b.WriteString(query)
	b.WriteString("\n\nBranch conclusions:\n")
	for _, br := range branches {
		fmt.Fprintf(&b, "\n[%s] (confidence %.2f)\n", br.Style, br.Confidence)
		fmt.Fprintf(&b, "Conclusion: %s\n", br.Conclusion)
		if len(br.KeyInsights) > 0 {
			fmt.Fprintf(&b, "Key insights: %s\n", strings.Join(br.KeyInsights, "; "))
		}
		if len(br.Risks) > 0 {
			fmt.Fprintf(&b, "Risks: %s\n", strings.Join(br.Risks, "; "))
		}
		if len(br.Opportunities) > 0 {
			fmt.Fprintf(&b, "Opportunities: %s\n", strings.Join(br.Opportunities, "; "))
		}
		if len(br.Assumptions) > 0 {
			fmt.Fprintf(&b, "Assumptions: %s\n", strings.Join(br.Assumptions, "; "))
		}
	}
	return b.String()
}

func parseConvergencePoints(v any) []types.ConvergencePoint {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]types.ConvergencePoint, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, types.ConvergencePoint{
			Topic:     schema.CoerceString(m["topic"]),
			Agreement: schema.DefaultAgreement(m["agreement"]),
			Styles:    coerceStyles(m["styles"]),
			Summary:   schema.CoerceString(m["summary"]),
		})
	}
	return out
}

func parseDivergencePoints(v any) []types.DivergencePoint {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]types.DivergencePoint, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, types.DivergencePoint{
			Topic:          schema.CoerceString(m["topic"]),
			Positions:      parseStylePositions(m["positions"]),
			Significance:   schema.DefaultSignificance(m["significance"]),
			Recommendation: schema.CoerceString(m["recommendation"]),
		})
	}
	return out
}

func parseStylePositions(v any) []types.StylePosition {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]types.StylePosition, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, types.StylePosition{
			Style:    schema.DefaultStyle(m["style"]),
			Position: schema.CoerceString(m["position"]),
		})
	}
	return out
}

func parseRecommendedApproach(v any) *types.RecommendedApproach {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return &types.RecommendedApproach{
		Style:      schema.DefaultStyle(m["style"]),
		Rationale:  schema.CoerceString(m["rationale"]),
		Confidence: schema.CoerceConfidence(m["confidence"]),
	}
}

func coerceStyles(v any) []types.Style {
	strs := schema.CoerceStrings(v)
	out := make([]types.Style, 0, len(strs))
	for _, s := range strs {
		if validStyles[types.Style(s)] {
			out = append(out, types.Style(s))
		}
	}
	return out
}
