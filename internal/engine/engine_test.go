package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/provider"
	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

func TestThinkRejectsEmptyMessages(t *testing.T) {
	eng := New(testsupport.NewMockProvider(), types.EffortLow, types.ThinkingAdaptive)
	_, err := eng.Think(context.Background(), "sys", nil, ThinkOptions{})
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidInput, types.KindOf(err))
}

func TestThinkPreservesBlockOrder(t *testing.T) {
	blocks := []types.ContentBlock{
		{Kind: types.BlockThinking, Text: "first"},
		{Kind: types.BlockText, Text: "second"},
		{Kind: types.BlockThinking, Text: "third"},
	}
	mock := testsupport.NewMockProvider(testsupport.ScriptedResponse{Blocks: blocks, Usage: types.TokenUsage{OutputTokens: 5}})
	eng := New(mock, types.EffortMedium, types.ThinkingAdaptive)

	result, err := eng.Think(context.Background(), "sys", []provider.Message{{Role: "user", Content: "hi"}}, ThinkOptions{})
	require.NoError(t, err)
	require.Len(t, result.Content, 3)
	assert.Equal(t, "first", result.Content[0].Text)
	assert.Equal(t, "second", result.Content[1].Text)
	assert.Equal(t, "third", result.Content[2].Text)
	assert.Len(t, result.Thinking, 2)
	assert.Len(t, result.Text, 1)
}

func TestEffortOverrideDoesNotMutateDefault(t *testing.T) {
	mock := testsupport.NewMockProvider()
	var seenEffort types.Effort
	mock.OnThink = func(req provider.Request) { seenEffort = req.Effort }

	eng := New(mock, types.EffortLow, types.ThinkingAdaptive)
	_, err := eng.Think(context.Background(), "sys", []provider.Message{{Role: "user", Content: "hi"}}, ThinkOptions{Effort: types.EffortMax})
	require.NoError(t, err)
	assert.Equal(t, types.EffortMax, seenEffort)
	assert.Equal(t, types.EffortLow, eng.DefaultEffort)
}

func TestThinkStreamingForwardsDeltasWithoutReordering(t *testing.T) {
	blocks := []types.ContentBlock{
		{Kind: types.BlockThinking, Text: "first"},
		{Kind: types.BlockText, Text: "second"},
		{Kind: types.BlockThinking, Text: "third"},
	}
	mock := testsupport.NewMockProvider(testsupport.ScriptedResponse{Blocks: blocks, Usage: types.TokenUsage{OutputTokens: 5}})
	eng := New(mock, types.EffortMedium, types.ThinkingAdaptive)

	var kinds []string
	var payloads []string
	onDelta := func(kind, payload string) {
		kinds = append(kinds, kind)
		payloads = append(payloads, payload)
	}

	result, err := eng.Think(context.Background(), "sys", []provider.Message{{Role: "user", Content: "hi"}}, ThinkOptions{
		Streaming: true,
		OnDelta:   onDelta,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"thinking_delta", "text_delta", "thinking_delta"}, kinds)
	assert.Equal(t, []string{"first", "second", "third"}, payloads)

	require.Len(t, result.Content, 3)
	assert.Equal(t, "first", result.Content[0].Text)
	assert.Equal(t, "second", result.Content[1].Text)
	assert.Equal(t, "third", result.Content[2].Text)
}

func TestBudgetForTable(t *testing.T) {
	assert.Equal(t, 5000, BudgetFor(types.EffortLow))
	assert.Equal(t, 10000, BudgetFor(types.EffortMedium))
	assert.Equal(t, 20000, BudgetFor(types.EffortHigh))
	assert.Equal(t, 50000, BudgetFor(types.EffortMax))
}
