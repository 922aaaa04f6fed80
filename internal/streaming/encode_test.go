package streaming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/types"
)

func TestEncode_Heartbeat(t *testing.T) {
	b, err := Encode(Frame{})
	require.NoError(t, err)
	assert.Equal(t, ": heartbeat\n\n", string(b))
}

func TestEncode_DataFrame(t *testing.T) {
	ev := Event{Type: EventBranchStart, Style: types.StyleConservative, Index: 0, Total: 4}
	b, err := Encode(Frame{Event: &ev})
	require.NoError(t, err)

	s := string(b)
	assert.True(t, strings.HasPrefix(s, "data: "))
	assert.True(t, strings.HasSuffix(s, "\n\n"))
	assert.Contains(t, s, `"type":"branch:start"`)
	assert.Contains(t, s, `"style":"conservative"`)
	assert.NotContains(t, s, "conclusion")
}

func TestEncode_OmitsEmptyFields(t *testing.T) {
	ev := Event{Type: EventComparisonStart}
	b, err := Encode(Frame{Event: &ev})
	require.NoError(t, err)
	assert.Equal(t, `data: {"type":"comparison:start"}`+"\n\n", string(b))
}

func TestErrorEvent_SanitizesMessage(t *testing.T) {
	raw := types.WrapError(types.ErrProviderRateLimited, "429 from upstream", assertError{"raw provider detail"})
	ev := ErrorEvent(raw, "corr-42")

	assert.Equal(t, string(types.ErrProviderRateLimited), ev.Code)
	assert.Equal(t, "API rate limit exceeded. Please wait and retry.", ev.Message)
	assert.NotContains(t, ev.Message, "raw provider detail")
	assert.True(t, ev.Recoverable)
	assert.Equal(t, "corr-42", ev.CorrelationID)
}

type assertError struct{ s string }

func (e assertError) Error() string { return e.s }
