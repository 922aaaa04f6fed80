package orchestrator

import (
	"regexp"

	"reasonforge/internal/types"
)

// complexPatterns match keywords that dominate classification regardless of
// length, per spec §4.5 step 2.
var complexPatterns = regexp.MustCompile(`(?i)\b(debug|design|trade-?offs?|research|step[- ]by[- ]step|refactor|architecture|investigate)\b`)

// simplePatterns match short greetings/definitional queries.
var simplePatterns = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|thanks|thank you|what is|who is|define)\b`)

// Classify applies the ordered pattern list: complex patterns dominate,
// then simple patterns, then a length heuristic, defaulting to standard.
func Classify(message string) types.Complexity {
	switch {
	case complexPatterns.MatchString(message):
		return types.ComplexityComplex
	case simplePatterns.MatchString(message):
		return types.ComplexitySimple
	case len(message) < 50:
		return types.ComplexitySimple
	case len(message) > 500:
		return types.ComplexityComplex
	default:
		return types.ComplexityStandard
	}
}

// EffortRouting maps query complexity to a provider effort level.
type EffortRouting struct {
	Enabled bool
	Simple  types.Effort
	Standard types.Effort
	Complex types.Effort
}

// DefaultEffortRouting is the spec's default complexity->effort mapping.
func DefaultEffortRouting() EffortRouting {
	return EffortRouting{
		Enabled:  true,
		Simple:   types.EffortLow,
		Standard: types.EffortMedium,
		Complex:  types.EffortMax,
	}
}

// EffortFor resolves complexity to an effort level under this routing
// table; when routing is disabled, every complexity maps to Standard.
func (r EffortRouting) EffortFor(c types.Complexity) types.Effort {
	if !r.Enabled {
		return r.Standard
	}
	switch c {
	case types.ComplexitySimple:
		return r.Simple
	case types.ComplexityComplex:
		return r.Complex
	default:
		return r.Standard
	}
}
