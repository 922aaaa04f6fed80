package fork

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

func conclusionBlock(conclusion string, confidence float64, insights []string) types.ContentBlock {
	return testsupport.ToolConclusion(conclusion, confidence, insights)
}

func comparisonBlock(convergence []any, divergence []any, metaInsight string, recommended map[string]any) types.ContentBlock {
	input := map[string]any{
		"convergence_points": convergence,
		"divergence_points":  divergence,
		"meta_insight":       metaInsight,
	}
	if recommended != nil {
		input["recommended_approach"] = recommended
	}
	return types.ContentBlock{Kind: types.BlockToolUse, ToolName: "record_comparison", ToolInput: input}
}

func TestForkRejectsEmptyQuery(t *testing.T) {
	eng := New(testsupport.NewMockProvider(), types.ThinkingAdaptive, nil, nil)
	_, err := eng.Fork(context.Background(), "", Options{})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.KindOf(err))
}

func TestForkRejectsUnknownStyle(t *testing.T) {
	eng := New(testsupport.NewMockProvider(), types.ThinkingAdaptive, nil, nil)
	_, err := eng.Fork(context.Background(), "q", Options{Styles: []types.Style{"bogus"}})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.KindOf(err))
}

func TestForkAllFourStylesCanonicalOrder(t *testing.T) {
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("A", 0.8, []string{"insight"})}, Usage: types.TokenUsage{OutputTokens: 10}},
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("B", 0.6, nil)}, Usage: types.TokenUsage{OutputTokens: 10}},
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("C", 0.9, nil)}, Usage: types.TokenUsage{OutputTokens: 10}},
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("D", 0.5, nil)}, Usage: types.TokenUsage{OutputTokens: 10}},
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{comparisonBlock(nil, nil, "robust", nil)}, Usage: types.TokenUsage{OutputTokens: 5}},
	)
	eng := New(mock, types.ThinkingAdaptive, nil, nil)
	result, err := eng.Fork(context.Background(), "Should we pivot B2C to B2B?", Options{})
	require.NoError(t, err)
	require.Len(t, result.Branches, 4)

	for i, style := range types.CanonicalStyleOrder {
		assert.Equal(t, style, result.Branches[i].Style)
	}
	assert.Equal(t, 45, result.TotalTokens) // 4*10 + 5
}

func TestForkBranchFailureDoesNotCancelSiblings(t *testing.T) {
	rateLimitErr := types.NewError(types.ErrProviderRateLimited, "429")
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("A", 0.8, nil)}, Usage: types.TokenUsage{OutputTokens: 1}},
		testsupport.ErrorResponse(rateLimitErr),
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("C", 0.9, nil)}, Usage: types.TokenUsage{OutputTokens: 1}},
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("D", 0.5, nil)}, Usage: types.TokenUsage{OutputTokens: 1}},
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{comparisonBlock(nil, nil, "mixed", nil)}, Usage: types.TokenUsage{OutputTokens: 1}},
	)
	eng := New(mock, types.ThinkingAdaptive, nil, nil)
	result, err := eng.Fork(context.Background(), "query", Options{})
	require.NoError(t, err)
	require.Len(t, result.Branches, 4)

	aggressive := result.Branches[1]
	assert.Equal(t, types.StyleAggressive, aggressive.Style)
	assert.Equal(t, "API rate limit exceeded. Please wait and retry.", aggressive.Error)
	assert.Equal(t, 0.0, aggressive.Confidence)
	assert.Empty(t, aggressive.KeyInsights)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "aggressive:")
}

func TestForkMissingToolUseYieldsStructuredError(t *testing.T) {
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{{Kind: types.BlockText, Text: "no tool call"}}},
	)
	eng := New(mock, types.ThinkingAdaptive, nil, nil)
	result, err := eng.Fork(context.Background(), "q", Options{Styles: []types.Style{types.StyleBalanced}})
	require.NoError(t, err)
	require.Len(t, result.Branches, 1)
	assert.Equal(t, "Model did not provide structured conclusion", result.Branches[0].Error)
}

func TestForkBasicMetaInsightWhenComparisonSkipped(t *testing.T) {
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("A", 0.9, nil)}},
	)
	eng := New(mock, types.ThinkingAdaptive, nil, nil)
	disabled := false
	result, err := eng.Fork(context.Background(), "q", Options{Styles: []types.Style{types.StyleBalanced}, AnalyzeConvergence: &disabled})
	require.NoError(t, err)
	assert.Equal(t, "robust answer across all branches", result.MetaInsight)
}

func TestForkZeroSuccessfulBranchesMetaInsight(t *testing.T) {
	err1 := types.NewError(types.ErrProviderTimeout, "timeout")
	mock := testsupport.NewMockProvider(testsupport.ErrorResponse(err1))
	eng := New(mock, types.ThinkingAdaptive, nil, nil)
	result, err := eng.Fork(context.Background(), "q", Options{Styles: []types.Style{types.StyleBalanced}})
	require.NoError(t, err)
	assert.Equal(t, "all branches failed", result.MetaInsight)
}

func TestForkRecordsFallbackPromptsWhenRegistryEmpty(t *testing.T) {
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("A", 0.8, nil)}},
	)
	eng := New(mock, types.ThinkingAdaptive, DefaultPromptRegistry(), nil)
	result, err := eng.Fork(context.Background(), "q", Options{Styles: []types.Style{types.StyleBalanced}})
	require.NoError(t, err)
	assert.Equal(t, []types.Style{types.StyleBalanced}, result.FallbackPromptsUsed)
}

type scriptedRegistry map[types.Style]string

func (r scriptedRegistry) Load(s types.Style) (string, error) {
	if p, ok := r[s]; ok {
		return p, nil
	}
	return "", errPromptNotFound
}

func TestForkUsesRegisteredPromptWithoutFallback(t *testing.T) {
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("A", 0.8, nil)}},
	)
	reg := scriptedRegistry{types.StyleBalanced: "custom balanced prompt"}
	eng := New(mock, types.ThinkingAdaptive, reg, nil)
	result, err := eng.Fork(context.Background(), "q", Options{Styles: []types.Style{types.StyleBalanced}})
	require.NoError(t, err)
	assert.Empty(t, result.FallbackPromptsUsed)
}

func TestForkAppliesBranchGuidance(t *testing.T) {
	mock := testsupport.NewMockProvider(
		testsupport.ScriptedResponse{Blocks: []types.ContentBlock{conclusionBlock("A", 0.8, nil)}},
	)
	eng := New(mock, types.ThinkingAdaptive, nil, nil)
	result, err := eng.Fork(context.Background(), "q", Options{
		Styles:         []types.Style{types.StyleBalanced},
		BranchGuidance: map[types.Style]string{types.StyleBalanced: "focus on cost"},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Style{types.StyleBalanced}, result.AppliedGuidance)
}
