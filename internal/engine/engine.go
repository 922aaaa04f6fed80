// Package engine implements ThinkingEngine, a thin adapter over a
// provider.ThinkingProvider that normalizes streaming/non-streaming calls,
// applies per-call effort overrides, and exposes streaming callbacks
// without ever reordering blocks.
package engine

import (
	"context"

	"reasonforge/internal/provider"
	"reasonforge/internal/types"
)

// ThinkingEngine wraps a provider.ThinkingProvider with a default effort and
// thinking mode, restoring any per-call override once the call returns.
type ThinkingEngine struct {
	Provider     provider.ThinkingProvider
	DefaultEffort types.Effort
	Mode         types.ThinkingMode
}

// New builds a ThinkingEngine with the given default effort and mode.
// Mode defaults to adaptive when empty, per spec: adaptive is preferred.
func New(p provider.ThinkingProvider, defaultEffort types.Effort, mode types.ThinkingMode) *ThinkingEngine {
	if mode == "" {
		mode = types.ThinkingAdaptive
	}
	if defaultEffort == "" {
		defaultEffort = types.EffortMedium
	}
	return &ThinkingEngine{Provider: p, DefaultEffort: defaultEffort, Mode: mode}
}

// ThinkOptions configures one Think call. Effort, when non-empty, overrides
// the engine default for this call only; the override never persists.
type ThinkOptions struct {
	Effort    types.Effort
	Streaming bool
	OnDelta   provider.StreamCallback
	Tools     []provider.ToolSchema
}

// Think issues one call to the underlying provider and returns the
// normalized result. The effort override, if any, is scoped to this call;
// the engine's default is never mutated by it.
func (e *ThinkingEngine) Think(ctx context.Context, systemPrompt string, messages []provider.Message, opts ThinkOptions) (*provider.Result, error) {
	if len(messages) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "messages must not be empty")
	}

	effort := opts.Effort
	if effort == "" {
		effort = e.DefaultEffort
	}

	req := provider.Request{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        opts.Tools,
		Effort:       effort,
		Mode:         e.Mode,
		Streaming:    opts.Streaming,
		OnDelta:      opts.OnDelta,
	}

	result, err := e.Provider.Think(ctx, req)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BudgetFor returns the token budget that would be used for effort under
// ThinkingBudgeted mode, per the low:5k, medium:10k, high:20k, max:50k
// table.
func BudgetFor(effort types.Effort) int {
	return types.EffortBudgets[effort]
}
