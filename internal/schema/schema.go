// Package schema defines the JSON-Schema tool definitions exposed to the
// thinking provider, and the safe-coercion helpers used to parse their
// tool_use payloads back into typed results without panicking on malformed
// model output.
package schema

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"reasonforge/internal/provider"
)

func ptr[T any](v T) *T { return &v }

// ToolFor renders a *jsonschema.Schema into the map[string]any shape
// provider.ToolSchema carries, by round-tripping through JSON — the same
// representation every provider implementation ultimately sends over the
// wire.
func ToolFor(name, description string, s *jsonschema.Schema) provider.ToolSchema {
	raw, err := json.Marshal(s)
	if err != nil {
		// A hand-authored schema literal failing to marshal is a programmer
		// error, not a runtime condition to recover from.
		panic("schema: " + name + ": " + err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		panic("schema: " + name + ": " + err.Error())
	}
	return provider.ToolSchema{Name: name, Description: description, Schema: m}
}

// RecordConclusion is the tool ThinkFork branches call to report their
// per-style conclusion.
var RecordConclusion = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"conclusion":   {Type: "string", Description: "the branch's concluding answer"},
		"confidence":   {Type: "number", Description: "confidence in [0,1]", Minimum: ptr(0.0), Maximum: ptr(1.0)},
		"key_insights": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"risks":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"opportunities": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"assumptions":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
	},
	Required: []string{"conclusion", "confidence", "key_insights"},
}

// RecordComparison is the tool the convergence/divergence comparison call
// uses to report its analysis across all successful branches.
var RecordComparison = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"convergence_points": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"topic":     {Type: "string"},
					"agreement": {Type: "string", Enum: []any{"full", "partial", "none"}},
					"styles":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"summary":   {Type: "string"},
				},
				Required: []string{"topic", "agreement", "styles", "summary"},
			},
		},
		"divergence_points": {
			Type: "array",
			Items: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"topic": {Type: "string"},
					"positions": {
						Type: "array",
						Items: &jsonschema.Schema{
							Type: "object",
							Properties: map[string]*jsonschema.Schema{
								"style":    {Type: "string"},
								"position": {Type: "string"},
							},
							Required: []string{"style", "position"},
						},
					},
					"significance":   {Type: "string", Enum: []any{"high", "medium", "low"}},
					"recommendation": {Type: "string"},
				},
				Required: []string{"topic", "positions", "significance"},
			},
		},
		"meta_insight": {Type: "string"},
		"recommended_approach": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"style":      {Type: "string"},
				"rationale":  {Type: "string"},
				"confidence": {Type: "number", Minimum: ptr(0.0), Maximum: ptr(1.0)},
			},
		},
	},
	Required: []string{"convergence_points", "divergence_points", "meta_insight"},
}

// RecordDebateResponse is the tool each surviving style calls once per
// debate round.
var RecordDebateResponse = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"response":           {Type: "string"},
		"confidence":         {Type: "number", Minimum: ptr(0.0), Maximum: ptr(1.0)},
		"position_changed":   {Type: "boolean"},
		"key_counterpoints":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"concessions":        {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
	},
	Required: []string{"response", "confidence", "position_changed"},
}

// CreateTaskPlan is the orchestrator-level tool used to extract a TaskPlan
// from the routing call.
var CreateTaskPlan = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"goal":  {Type: "string"},
		"tasks": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
	},
	Required: []string{"goal", "tasks"},
}

// RouteToAgent is the orchestrator-level tool used to hand off to a
// downstream agent; the core only records the call, it does not itself
// dispatch to agents.
var RouteToAgent = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"agent":   {Type: "string"},
		"context": {Type: "string"},
	},
	Required: []string{"agent"},
}

// ToolRecordConclusion returns the record_conclusion tool definition ready
// to attach to a Request.Tools slice.
func ToolRecordConclusion() provider.ToolSchema {
	return ToolFor("record_conclusion", "Report this branch's conclusion, confidence, and supporting insights.", RecordConclusion)
}

// ToolRecordComparison returns the record_comparison tool definition.
func ToolRecordComparison() provider.ToolSchema {
	return ToolFor("record_comparison", "Report convergence points, divergence points, and a meta-insight across branches.", RecordComparison)
}

// ToolRecordDebateResponse returns the record_debate_response tool
// definition.
func ToolRecordDebateResponse() provider.ToolSchema {
	return ToolFor("record_debate_response", "Respond to the other styles' current positions in this debate round.", RecordDebateResponse)
}

// ToolCreateTaskPlan returns the create_task_plan tool definition.
func ToolCreateTaskPlan() provider.ToolSchema {
	return ToolFor("create_task_plan", "Propose a goal and an ordered list of tasks to achieve it.", CreateTaskPlan)
}

// ToolRouteToAgent returns the route_to_agent tool definition.
func ToolRouteToAgent() provider.ToolSchema {
	return ToolFor("route_to_agent", "Hand off the query to a named downstream agent with context.", RouteToAgent)
}
