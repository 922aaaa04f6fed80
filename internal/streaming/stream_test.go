package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/fork"
	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

func TestStream_OrderingForkThenBranches(t *testing.T) {
	stream := NewStream(32)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream.Run(ctx, time.Hour) // heartbeat interval irrelevant to this test

	mock := testsupport.NewMockProvider(testsupport.ScriptedResponse{
		Blocks: []types.ContentBlock{testsupport.ToolConclusion("ok", 0.8, []string{"insight"})},
		Usage:  types.TokenUsage{OutputTokens: 5},
	})
	engine := fork.New(mock, types.ThinkingAdaptive, nil, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := engine.Fork(context.Background(), "a query", fork.Options{
			Styles: []types.Style{types.StyleConservative, types.StyleBalanced},
			Events: stream.Sink(),
		})
		require.NoError(t, err)
	}()

	var seen []EventType
collect:
	for {
		select {
		case f := <-stream.Frames():
			if f.IsHeartbeat() {
				continue
			}
			seen = append(seen, f.Event.Type)
			if f.Event.Type == EventComparisonComplete {
				break collect
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	<-done

	require.NotEmpty(t, seen)
	assert.Equal(t, EventForkStart, seen[0])
	// The first branch:start precedes comparison:start.
	firstBranchStart := indexOf(seen, EventBranchStart)
	firstComparison := indexOf(seen, EventComparisonStart)
	require.NotEqual(t, -1, firstBranchStart)
	if firstComparison != -1 {
		assert.Less(t, firstBranchStart, firstComparison)
	}
}

func indexOf(s []EventType, t EventType) int {
	for i, v := range s {
		if v == t {
			return i
		}
	}
	return -1
}

func TestStream_HeartbeatInterleaves(t *testing.T) {
	stream := NewStream(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream.Run(ctx, 10*time.Millisecond)

	var gotHeartbeat bool
	for i := 0; i < 5; i++ {
		select {
		case f := <-stream.Frames():
			if f.IsHeartbeat() {
				gotHeartbeat = true
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for heartbeat")
		}
		if gotHeartbeat {
			break
		}
	}
	assert.True(t, gotHeartbeat)
}

func TestStream_CloseSuppressesDoneAndClosesOutput(t *testing.T) {
	stream := NewStream(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream.Run(ctx, time.Hour)

	stream.Close()
	stream.Close() // idempotent

	stream.EmitDone(Done("result", "", "corr-1", false, nil))

	_, open := <-stream.Frames()
	assert.False(t, open, "output channel should be closed after Close")
}

func TestStream_ContextCancelStopsStream(t *testing.T) {
	stream := NewStream(8)
	ctx, cancel := context.WithCancel(context.Background())
	stream.Run(ctx, time.Hour)
	cancel()

	// Drain until the output channel closes; no done event should appear.
	var sawDone bool
	for f := range stream.Frames() {
		if !f.IsHeartbeat() && f.Event.Type == EventDone {
			sawDone = true
		}
	}
	assert.False(t, sawDone)
}
