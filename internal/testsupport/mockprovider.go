package testsupport

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"reasonforge/internal/provider"
	"reasonforge/internal/types"
)

// MockProvider is a scriptable provider.ThinkingProvider returning canned
// content blocks per call, the way the teacher's MockLLMClient returns
// canned continuations. Script entries are consumed in order; once
// exhausted, the last entry repeats.
type MockProvider struct {
	mu      sync.Mutex
	Script  []ScriptedResponse
	calls   int64
	OnThink func(req provider.Request) // optional hook for call inspection
}

// ScriptedResponse is one pre-programmed outcome for a MockProvider.Think
// call.
type ScriptedResponse struct {
	Blocks []types.ContentBlock
	Usage  types.TokenUsage
	Err    error
}

// NewMockProvider builds a MockProvider from a fixed script.
func NewMockProvider(script ...ScriptedResponse) *MockProvider {
	return &MockProvider{Script: script}
}

// CallCount returns the number of Think invocations so far.
func (m *MockProvider) CallCount() int64 {
	return atomic.LoadInt64(&m.calls)
}

func (m *MockProvider) Think(ctx context.Context, req provider.Request) (*provider.Result, error) {
	if m.OnThink != nil {
		m.OnThink(req)
	}
	n := atomic.AddInt64(&m.calls, 1) - 1

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Script) == 0 {
		return provider.NewResult([]types.ContentBlock{
			{Kind: types.BlockThinking, Text: "default reasoning"},
			{Kind: types.BlockText, Text: "default answer"},
		}, types.TokenUsage{OutputTokens: 10}), nil
	}
	idx := int(n)
	if idx >= len(m.Script) {
		idx = len(m.Script) - 1
	}
	resp := m.Script[idx]
	if resp.Err != nil {
		return nil, resp.Err
	}
	if req.Streaming && req.OnDelta != nil {
		emitDeltas(resp.Blocks, req.OnDelta)
	}
	return provider.NewResult(resp.Blocks, resp.Usage), nil
}

// emitDeltas forwards one delta per thinking/text/compaction block, in
// block order, the way a real streaming call would precede its final
// accumulated message with incremental deltas.
func emitDeltas(blocks []types.ContentBlock, onDelta provider.StreamCallback) {
	for _, b := range blocks {
		switch b.Kind {
		case types.BlockThinking:
			onDelta("thinking_delta", b.Text)
		case types.BlockText:
			onDelta("text_delta", b.Text)
		case types.BlockCompact:
			onDelta("compaction", b.Summary)
		}
	}
}

// ToolConclusion builds the tool_use block record_conclusion emits, for
// scripting ThinkFork branch tests.
func ToolConclusion(conclusion string, confidence float64, insights []string) types.ContentBlock {
	return types.ContentBlock{
		Kind:     types.BlockToolUse,
		ToolName: "record_conclusion",
		ToolInput: map[string]any{
			"conclusion":   conclusion,
			"confidence":   confidence,
			"key_insights": toAnySlice(insights),
		},
	}
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}

// ErrorResponse is a convenience ScriptedResponse that fails the call.
func ErrorResponse(err error) ScriptedResponse {
	return ScriptedResponse{Err: err}
}

// String implements fmt.Stringer for debugging test failures.
func (r ScriptedResponse) String() string {
	return fmt.Sprintf("ScriptedResponse{blocks=%d err=%v}", len(r.Blocks), r.Err)
}
