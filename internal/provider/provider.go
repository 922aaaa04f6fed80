// Package provider defines the abstract ThinkingProvider boundary the
// engine sits in front of, plus the taxonomy of faults a provider call can
// surface. Concrete implementations (mock, Anthropic) live alongside this
// interface; callers should depend only on ThinkingProvider.
package provider

import (
	"context"

	"reasonforge/internal/types"
)

// ToolSchema describes one tool exposed to the provider. Schema is a
// JSON-Schema subset (object type, named properties, typed items) built by
// the internal/schema package from jsonschema literals; it is sent to the
// provider as built, without validation.
type ToolSchema struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Message is one turn of the conversation sent to the provider.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// StreamCallback receives incremental deltas during a streaming call. kind
// is one of "thinking_delta", "text_delta", or "compaction". Streaming
// never reorders blocks relative to the final Result.Content.
type StreamCallback func(kind string, payload string)

// Request bundles the parameters of one think() call.
type Request struct {
	SystemPrompt string
	Messages     []Message
	Tools        []ToolSchema
	Effort       types.Effort
	Mode         types.ThinkingMode // adaptive (preferred) or budgeted
	Streaming    bool
	OnDelta      StreamCallback // optional, only consulted when Streaming is true
}

// Result is the normalized outcome of one think() call.
type Result struct {
	Content    []types.ContentBlock
	Thinking   []types.ContentBlock
	Text       []types.ContentBlock
	ToolUses   []types.ContentBlock
	Compactions []types.ContentBlock
	Usage      types.TokenUsage
	Compacted  bool
}

// ThinkingProvider is the abstract LLM transport. Implementations never
// retry; retry/backoff is the orchestrator's responsibility.
type ThinkingProvider interface {
	Think(ctx context.Context, req Request) (*Result, error)
}

// Split separates a raw block slice into the typed sub-slices Result
// exposes, preserving order within each sub-slice.
func Split(blocks []types.ContentBlock) (thinking, text, toolUses, compactions []types.ContentBlock) {
	for _, b := range blocks {
		switch b.Kind {
		case types.BlockThinking, types.BlockRedacted:
			thinking = append(thinking, b)
		case types.BlockText:
			text = append(text, b)
		case types.BlockToolUse:
			toolUses = append(toolUses, b)
		case types.BlockCompact:
			compactions = append(compactions, b)
		}
	}
	return
}

// NewResult builds a Result from a raw, ordered block slice and usage,
// populating the typed sub-slices via Split. Shared by every concrete
// provider so the normalization rule lives in one place.
func NewResult(blocks []types.ContentBlock, usage types.TokenUsage) *Result {
	thinking, text, toolUses, compactions := Split(blocks)
	return &Result{
		Content:     blocks,
		Thinking:    thinking,
		Text:        text,
		ToolUses:    toolUses,
		Compactions: compactions,
		Usage:       usage,
		Compacted:   len(compactions) > 0,
	}
}
