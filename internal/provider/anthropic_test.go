package provider

import (
	"context"
	"encoding/json"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/types"
)

// stubMessagesClient is a fake messagesClient, the same shape as the
// grounding source's stubMessagesClient, for testing AnthropicProvider
// without a live API key.
type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
	stream     *ssestream.Stream[sdk.MessageStreamEventUnion]
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubMessagesClient) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	s.lastParams = body
	return s.stream
}

// testDecoder feeds a fixed sequence of events to an ssestream.Stream.
type testDecoder struct {
	events []ssestream.Event
	i      int
}

func (d *testDecoder) Event() ssestream.Event { return d.events[d.i-1] }
func (d *testDecoder) Next() bool {
	if d.i >= len(d.events) {
		return false
	}
	d.i++
	return true
}
func (d *testDecoder) Close() error { return nil }
func (d *testDecoder) Err() error   { return nil }

func newProviderForTest(stub *stubMessagesClient) *AnthropicProvider {
	return &AnthropicProvider{msg: stub, model: "claude-test", maxTokens: 4096}
}

func TestEncodeToolsForwardsDescriptionAndFullSchema(t *testing.T) {
	tool := ToolSchema{
		Name:        "record_conclusion",
		Description: "Record the branch's conclusion",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"conclusion": map[string]any{"type": "string"},
			},
			"required": []any{"conclusion"},
		},
	}

	out := encodeTools([]ToolSchema{tool})
	require.Len(t, out, 1)
	require.NotNil(t, out[0].OfTool)
	assert.Equal(t, "record_conclusion", out[0].OfTool.Name)
	require.NotNil(t, out[0].OfTool.Description)
	assert.Equal(t, "Record the branch's conclusion", out[0].OfTool.Description.Value)

	schema := out[0].OfTool.InputSchema.ExtraFields
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema, "required")
	assert.Contains(t, schema, "properties")
}

func TestThinkStreamingAccumulatesBlocksAndForwardsDeltas(t *testing.T) {
	events := []ssestream.Event{
		sseEvent(t, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"thinking","thinking":"","signature":""}}`),
		sseEvent(t, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"step one"}}`),
		sseEvent(t, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"signature_delta","signature":"sig"}}`),
		sseEvent(t, "content_block_start", `{"type":"content_block_start","index":1,"content_block":{"type":"text","text":""}}`),
		sseEvent(t, "content_block_delta", `{"type":"content_block_delta","index":1,"delta":{"type":"text_delta","text":"final answer"}}`),
		sseEvent(t, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"input_tokens":12,"output_tokens":7}}`),
	}
	dec := &testDecoder{events: events}
	stub := &stubMessagesClient{stream: ssestream.NewStream[sdk.MessageStreamEventUnion](dec, nil)}
	p := newProviderForTest(stub)

	var kinds, payloads []string
	onDelta := func(kind, payload string) {
		kinds = append(kinds, kind)
		payloads = append(payloads, payload)
	}

	result, err := p.Think(context.Background(), Request{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		Streaming: true,
		OnDelta:   onDelta,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"thinking_delta", "text_delta"}, kinds)
	assert.Equal(t, []string{"step one", "final answer"}, payloads)

	require.Len(t, result.Content, 2)
	assert.Equal(t, types.BlockThinking, result.Content[0].Kind)
	assert.Equal(t, "step one", result.Content[0].Text)
	assert.Equal(t, "sig", result.Content[0].Signature)
	assert.Equal(t, types.BlockText, result.Content[1].Kind)
	assert.Equal(t, "final answer", result.Content[1].Text)
	assert.Equal(t, 12, result.Usage.InputTokens)
	assert.Equal(t, 7, result.Usage.OutputTokens)
}

func sseEvent(t *testing.T, eventType, data string) ssestream.Event {
	t.Helper()
	var v sdk.MessageStreamEventUnion
	require.NoError(t, json.Unmarshal([]byte(data), &v))
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return ssestream.Event{Type: eventType, Data: raw}
}
