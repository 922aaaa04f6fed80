package fork

import "reasonforge/internal/types"

// builtinPrompts are the fallback system prompts used when a
// PromptRegistry has no entry for a style, or returns an error.
var builtinPrompts = map[types.Style]string{
	types.StyleConservative: "You reason conservatively: favor proven approaches, minimize risk, and flag anything that depends on an untested assumption.",
	types.StyleAggressive:   "You reason aggressively: favor bold moves, optimize for upside, and treat caution as a cost to be justified rather than a default.",
	types.StyleBalanced:     "You reason by weighing every option's costs and benefits evenhandedly, without favoring risk or caution by default.",
	types.StyleContrarian:   "You reason contrarian to the obvious answer: actively look for the weakest link in the consensus view and argue the opposite case.",
}

// PromptRegistry resolves a style to its system prompt. A concrete registry
// may load prompts from disk or a config service; Load returning a
// non-nil error is treated the same as a missing entry.
type PromptRegistry interface {
	Load(style types.Style) (string, error)
}

// defaultPromptRegistry has no entries of its own; every style always
// falls back to builtinPrompts. It exists so callers that don't need a
// custom registry can pass one in without a nil check.
type defaultPromptRegistry struct{}

func (defaultPromptRegistry) Load(types.Style) (string, error) {
	return "", errPromptNotFound
}

// DefaultPromptRegistry returns a registry with no entries, so every style
// resolves via the built-in fallback template.
func DefaultPromptRegistry() PromptRegistry { return defaultPromptRegistry{} }

// resolvePrompt returns the style's system prompt, recording a fallback if
// the registry has no usable entry for it.
func resolvePrompt(reg PromptRegistry, style types.Style) (prompt string, usedFallback bool) {
	if reg != nil {
		if p, err := reg.Load(style); err == nil && p != "" {
			return p, false
		}
	}
	return builtinPrompts[style], true
}
