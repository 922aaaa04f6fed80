package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reasonforge/internal/provider"
	"reasonforge/internal/types"
)

func TestToolRecordConclusionHasRequiredFields(t *testing.T) {
	tool := ToolRecordConclusion()
	assert.Equal(t, "record_conclusion", tool.Name)
	props, ok := tool.Schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "conclusion")
	assert.Contains(t, props, "confidence")
	assert.Contains(t, props, "key_insights")
}

func TestAllToolsProduceObjectSchemas(t *testing.T) {
	tools := []provider.ToolSchema{
		ToolRecordConclusion(), ToolRecordComparison(), ToolRecordDebateResponse(),
		ToolCreateTaskPlan(), ToolRouteToAgent(),
	}
	for _, tool := range tools {
		assert.Equal(t, "object", tool.Schema["type"])
		assert.NotEmpty(t, tool.Name)
	}
}

func TestCoerceConfidenceDefaultsAndClamps(t *testing.T) {
	assert.Equal(t, 0.5, CoerceConfidence(nil))
	assert.Equal(t, 0.5, CoerceConfidence("not a number"))
	assert.Equal(t, 0.5, CoerceConfidence(0.0))
	assert.Equal(t, 1.0, CoerceConfidence(5.0))
	assert.Equal(t, 0.0, CoerceConfidence(-5.0))
	assert.Equal(t, 0.75, CoerceConfidence(0.75))
}

func TestCoerceStringsFiltersNonStrings(t *testing.T) {
	in := []any{"a", 1, "b", true, "c"}
	assert.Equal(t, []string{"a", "b", "c"}, CoerceStrings(in))
	assert.Equal(t, []string{}, CoerceStrings(nil))
	assert.Equal(t, []string{}, CoerceStrings(42))
}

func TestDefaultAgreementDefaultsToPartial(t *testing.T) {
	assert.Equal(t, types.AgreementFull, DefaultAgreement("full"))
	assert.Equal(t, types.AgreementNone, DefaultAgreement("none"))
	assert.Equal(t, types.AgreementPartial, DefaultAgreement("partial"))
	assert.Equal(t, types.AgreementPartial, DefaultAgreement("unknown-value"))
	assert.Equal(t, types.AgreementPartial, DefaultAgreement(nil))
}

func TestDefaultSignificanceDefaultsToMedium(t *testing.T) {
	assert.Equal(t, types.SignificanceHigh, DefaultSignificance("high"))
	assert.Equal(t, types.SignificanceLow, DefaultSignificance("low"))
	assert.Equal(t, types.SignificanceMedium, DefaultSignificance("bogus"))
}

func TestDefaultStyleDefaultsToBalanced(t *testing.T) {
	assert.Equal(t, types.StyleConservative, DefaultStyle("conservative"))
	assert.Equal(t, types.StyleBalanced, DefaultStyle("nonsense"))
}
