package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"reasonforge/internal/types"
)

// messagesClient captures the subset of the Anthropic SDK used by
// AnthropicProvider, so tests can substitute a fake without a live API key.
type messagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// AnthropicProvider implements ThinkingProvider on top of Anthropic's
// Messages API, including extended-thinking content blocks.
type AnthropicProvider struct {
	msg       messagesClient
	model     string
	maxTokens int
}

// NewAnthropicProvider builds a provider from an API key and model
// identifier. maxTokens bounds provider output per call (config option
// maxTokens in spec §6).
func NewAnthropicProvider(apiKey, model string, maxTokens int) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if model == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{msg: &client.Messages, model: model, maxTokens: maxTokens}, nil
}

// Think issues a Messages.New request (streaming or not) and normalizes the
// response into a Result.
func (p *AnthropicProvider) Think(ctx context.Context, req Request) (*Result, error) {
	if len(req.Messages) == 0 {
		return nil, types.NewError(types.ErrInvalidInput, "messages must not be empty")
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.model),
		MaxTokens: int64(p.maxTokens),
		Messages:  encodeMessages(req.Messages),
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	if req.Mode == types.ThinkingBudgeted {
		budget := int64(types.EffortBudgets[req.Effort])
		if budget > 0 && budget < int64(p.maxTokens) {
			params.Thinking = sdk.ThinkingConfigParamOfEnabled(budget)
		}
	} else {
		// Adaptive mode: let the provider choose its own budget, still
		// gated by a generous ceiling derived from effort so "max" effort
		// can think longer than "low" effort.
		ceiling := int64(types.EffortBudgets[types.EffortMax])
		if budget := int64(types.EffortBudgets[req.Effort]); budget > 0 && budget < int64(p.maxTokens) {
			ceiling = budget
		}
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(ceiling)
	}

	if req.Streaming {
		return p.thinkStreaming(ctx, params, req.OnDelta)
	}

	msg, err := p.msg.New(ctx, params)
	if err != nil {
		return nil, translateError(err)
	}
	return convertMessage(msg), nil
}

// thinkStreaming issues Messages.NewStreaming and adapts incremental
// events into thinking_delta/text_delta callbacks as they arrive, while
// accumulating the same ordered ContentBlock slice the non-streaming path
// produces, so the accumulated Result is always available on return
// regardless of whether the caller streamed.
func (p *AnthropicProvider) thinkStreaming(ctx context.Context, params sdk.MessageNewParams, onDelta StreamCallback) (*Result, error) {
	stream := p.msg.NewStreaming(ctx, params)
	defer stream.Close()

	acc := newStreamAccumulator()
	for stream.Next() {
		acc.handle(stream.Current(), onDelta)
	}
	if err := stream.Err(); err != nil {
		return nil, translateError(err)
	}
	return NewResult(acc.blocks(), acc.usage), nil
}

// streamAccumulator turns a sequence of sdk.MessageStreamEventUnion events
// into the same ordered ContentBlock slice convertMessage builds from a
// finished *sdk.Message, by index-keyed buffers filled in as each block's
// start/delta/stop events arrive.
type streamAccumulator struct {
	order  []int
	kind   map[int]types.BlockKind
	text   map[int]*strings.Builder
	sig    map[int]string
	opaque map[int]string
	name   map[int]string
	input  map[int]*strings.Builder
	usage  types.TokenUsage
}

func newStreamAccumulator() *streamAccumulator {
	return &streamAccumulator{
		kind:   make(map[int]types.BlockKind),
		text:   make(map[int]*strings.Builder),
		sig:    make(map[int]string),
		opaque: make(map[int]string),
		name:   make(map[int]string),
		input:  make(map[int]*strings.Builder),
	}
}

func (a *streamAccumulator) handle(event sdk.MessageStreamEventUnion, onDelta StreamCallback) {
	switch ev := event.AsAny().(type) {
	case sdk.ContentBlockStartEvent:
		idx := int(ev.Index)
		a.order = append(a.order, idx)
		switch start := ev.ContentBlock.AsAny().(type) {
		case sdk.TextBlock:
			a.kind[idx] = types.BlockText
			a.text[idx] = &strings.Builder{}
		case sdk.ThinkingBlock:
			a.kind[idx] = types.BlockThinking
			a.text[idx] = &strings.Builder{}
		case sdk.RedactedThinkingBlock:
			a.kind[idx] = types.BlockRedacted
			a.opaque[idx] = start.Data
		case sdk.ToolUseBlock:
			a.kind[idx] = types.BlockToolUse
			a.name[idx] = start.Name
			a.input[idx] = &strings.Builder{}
		}
	case sdk.ContentBlockDeltaEvent:
		idx := int(ev.Index)
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return
			}
			if b := a.text[idx]; b != nil {
				b.WriteString(delta.Text)
			}
			if onDelta != nil {
				onDelta("text_delta", delta.Text)
			}
		case sdk.ThinkingDelta:
			if delta.Thinking == "" {
				return
			}
			if b := a.text[idx]; b != nil {
				b.WriteString(delta.Thinking)
			}
			if onDelta != nil {
				onDelta("thinking_delta", delta.Thinking)
			}
		case sdk.SignatureDelta:
			a.sig[idx] = delta.Signature
		case sdk.InputJSONDelta:
			if b := a.input[idx]; b != nil {
				b.WriteString(delta.PartialJSON)
			}
		}
	case sdk.MessageDeltaEvent:
		if ev.Usage.InputTokens > 0 {
			a.usage.InputTokens = int(ev.Usage.InputTokens)
		}
		a.usage.OutputTokens = int(ev.Usage.OutputTokens)
	}
}

// blocks renders the accumulated per-index buffers into the final ordered
// ContentBlock slice, in content-block-start order.
func (a *streamAccumulator) blocks() []types.ContentBlock {
	out := make([]types.ContentBlock, 0, len(a.order))
	for _, idx := range a.order {
		switch a.kind[idx] {
		case types.BlockText:
			text := a.text[idx].String()
			if text == "" {
				continue
			}
			out = append(out, types.ContentBlock{Kind: types.BlockText, Text: text})
		case types.BlockThinking:
			out = append(out, types.ContentBlock{Kind: types.BlockThinking, Text: a.text[idx].String(), Signature: a.sig[idx]})
		case types.BlockRedacted:
			out = append(out, types.ContentBlock{Kind: types.BlockRedacted, Opaque: a.opaque[idx]})
		case types.BlockToolUse:
			out = append(out, types.ContentBlock{
				Kind:      types.BlockToolUse,
				ToolName:  a.name[idx],
				ToolInput: decodeToolInputJSON(a.input[idx].String()),
			})
		}
	}
	return out
}

// decodeToolInputJSON parses the concatenated InputJSONDelta fragments for
// one tool_use block, the way toolBuffer.finalInput's joined fragments are
// decoded in the teacher's streaming adapter.
func decodeToolInputJSON(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]any{}
	}
	return m
}

func encodeMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out = append(out, sdk.NewAssistantMessage(block))
		default:
			out = append(out, sdk.NewUserMessage(block))
		}
	}
	return out
}

func encodeTools(tools []ToolSchema) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		u := sdk.ToolUnionParamOfTool(toolInputSchema(t.Schema), t.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(t.Description)
		}
		out = append(out, u)
	}
	return out
}

// toolInputSchema forwards the entire JSON-Schema map (type, properties,
// required, ...) as extra fields, rather than cherry-picking properties,
// so the model sees the full schema it was given.
func toolInputSchema(schema map[string]any) sdk.ToolInputSchemaParam {
	if len(schema) == 0 {
		return sdk.ToolInputSchemaParam{}
	}
	return sdk.ToolInputSchemaParam{ExtraFields: schema}
}

// convertMessage translates a finished *sdk.Message into our ordered
// ContentBlock slice, preserving block order.
func convertMessage(msg *sdk.Message) *Result {
	blocks := make([]types.ContentBlock, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text == "" {
				continue
			}
			blocks = append(blocks, types.ContentBlock{Kind: types.BlockText, Text: block.Text})
		case "thinking":
			blocks = append(blocks, types.ContentBlock{Kind: types.BlockThinking, Text: block.Thinking, Signature: block.Signature})
		case "redacted_thinking":
			blocks = append(blocks, types.ContentBlock{Kind: types.BlockRedacted, Opaque: block.Data})
		case "tool_use":
			blocks = append(blocks, types.ContentBlock{
				Kind:      types.BlockToolUse,
				ToolName:  block.Name,
				ToolInput: decodeToolInput(block.Input),
			})
		}
	}
	usage := types.TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	return NewResult(blocks, usage)
}

func decodeToolInput(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// translateError maps an Anthropic SDK error into the engine's closed error
// taxonomy. The engine never retries; this classification only informs the
// sanitised messages of types.SanitizedMessage and, eventually, the transport's own retry
// policy for idempotent reads.
func translateError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429:
			return types.WrapError(types.ErrProviderRateLimited, "rate limited", err)
		case 401, 403:
			return types.WrapError(types.ErrProviderAuthFailed, "authentication failed", err)
		case 529, 503:
			return types.WrapError(types.ErrProviderOverloaded, "provider overloaded", err)
		case 408:
			return types.WrapError(types.ErrProviderTimeout, "request timed out", err)
		}
		if apiErr.StatusCode >= 500 {
			return types.WrapError(types.ErrProviderOverloaded, "provider overloaded", err)
		}
		return types.WrapError(types.ErrProviderPermanent, fmt.Sprintf("provider error %d", apiErr.StatusCode), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapError(types.ErrProviderTimeout, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return types.WrapError(types.ErrCancelled, "request cancelled", err)
	}
	return types.WrapError(types.ErrProviderPermanent, "unclassified provider error", err)
}
