package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reasonforge/internal/types"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    types.Complexity
	}{
		{"greeting", "Hi", types.ComplexitySimple},
		{"short definitional", "What is Go?", types.ComplexitySimple},
		{"complex debug query", "Debug and refactor this pipeline for lower latency, step by step.", types.ComplexityComplex},
		{"long query defaults complex", makeLong(501), types.ComplexityComplex},
		{"mid-length standard", "Can you summarise the quarterly results and note any risks we should track going forward please", types.ComplexityStandard},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.message))
		})
	}
}

func makeLong(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func TestEffortRouting_Default(t *testing.T) {
	r := DefaultEffortRouting()
	assert.Equal(t, types.EffortLow, r.EffortFor(types.ComplexitySimple))
	assert.Equal(t, types.EffortMedium, r.EffortFor(types.ComplexityStandard))
	assert.Equal(t, types.EffortMax, r.EffortFor(types.ComplexityComplex))
}

func TestEffortRouting_Disabled(t *testing.T) {
	r := DefaultEffortRouting()
	r.Enabled = false
	assert.Equal(t, r.Standard, r.EffortFor(types.ComplexitySimple))
	assert.Equal(t, r.Standard, r.EffortFor(types.ComplexityComplex))
}
