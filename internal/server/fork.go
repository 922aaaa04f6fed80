package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"reasonforge/internal/fork"
	"reasonforge/internal/types"
)

// ForkRequest is the input for the fork tool.
type ForkRequest struct {
	Query  string   `json:"query"`
	Styles []string `json:"styles,omitempty"`
	Effort string   `json:"effort,omitempty"`
}

func (s *Server) handleFork(ctx context.Context, req *mcp.CallToolRequest, input ForkRequest) (*mcp.CallToolResult, *types.ThinkForkResult, error) {
	opts, err := forkOptionsFrom(input.Styles, input.Effort)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.forkEngine.Fork(ctx, input.Query, opts)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

// DebateRequest is the input for the debate tool.
type DebateRequest struct {
	Query  string   `json:"query"`
	Rounds int      `json:"rounds"`
	Styles []string `json:"styles,omitempty"`
	Effort string   `json:"effort,omitempty"`
}

func (s *Server) handleDebate(ctx context.Context, req *mcp.CallToolRequest, input DebateRequest) (*mcp.CallToolResult, *types.DebateResult, error) {
	opts, err := forkOptionsFrom(input.Styles, input.Effort)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.forkEngine.Debate(ctx, input.Query, fork.DebateOptions{Fork: opts, Rounds: input.Rounds})
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

// ExpandRequest steers one style from a prior fork to go deeper.
type ExpandRequest struct {
	Prior     *types.ThinkForkResult `json:"prior"`
	Style     string                 `json:"style"`
	Direction string                 `json:"direction,omitempty"`
	Effort    string                 `json:"effort,omitempty"`
}

func (s *Server) handleExpand(ctx context.Context, req *mcp.CallToolRequest, input ExpandRequest) (*mcp.CallToolResult, *types.SteeringResult, error) {
	effort, err := effortFrom(input.Effort)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.forkEngine.Expand(ctx, input.Prior, types.Style(input.Style), input.Direction, effort)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

// MergeRequest synthesises a position from two or more prior styles.
type MergeRequest struct {
	Prior  *types.ThinkForkResult `json:"prior"`
	Styles []string               `json:"styles"`
	Focus  string                 `json:"focus,omitempty"`
	Effort string                 `json:"effort,omitempty"`
}

func (s *Server) handleMerge(ctx context.Context, req *mcp.CallToolRequest, input MergeRequest) (*mcp.CallToolResult, *types.SteeringResult, error) {
	effort, err := effortFrom(input.Effort)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.forkEngine.Merge(ctx, input.Prior, stylesFrom(input.Styles), input.Focus, effort)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

// ChallengeRequest asks one style to defend its prior conclusion.
type ChallengeRequest struct {
	Prior     *types.ThinkForkResult `json:"prior"`
	Style     string                 `json:"style"`
	Challenge string                 `json:"challenge"`
	Effort    string                 `json:"effort,omitempty"`
}

func (s *Server) handleChallenge(ctx context.Context, req *mcp.CallToolRequest, input ChallengeRequest) (*mcp.CallToolResult, *types.SteeringResult, error) {
	effort, err := effortFrom(input.Effort)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.forkEngine.Challenge(ctx, input.Prior, types.Style(input.Style), input.Challenge, effort)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

// ReforkRequest re-runs a fork with additional context layered on top.
type ReforkRequest struct {
	Prior      *types.ThinkForkResult `json:"prior"`
	NewContext string                 `json:"new_context"`
	Styles     []string               `json:"styles,omitempty"`
	Effort     string                 `json:"effort,omitempty"`
}

func (s *Server) handleRefork(ctx context.Context, req *mcp.CallToolRequest, input ReforkRequest) (*mcp.CallToolResult, *types.ThinkForkResult, error) {
	opts, err := forkOptionsFrom(input.Styles, input.Effort)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.forkEngine.Refork(ctx, input.Prior, input.NewContext, opts)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func effortFrom(raw string) (types.Effort, error) {
	if raw == "" {
		return types.EffortMedium, nil
	}
	e := types.Effort(raw)
	if _, ok := types.EffortBudgets[e]; !ok {
		return "", types.NewError(types.ErrInvalidInput, "effort must be one of low, medium, high, max")
	}
	return e, nil
}

func stylesFrom(raw []string) []types.Style {
	if len(raw) == 0 {
		return nil
	}
	styles := make([]types.Style, len(raw))
	for i, s := range raw {
		styles[i] = types.Style(s)
	}
	return styles
}

func forkOptionsFrom(rawStyles []string, rawEffort string) (fork.Options, error) {
	effort, err := effortFrom(rawEffort)
	if err != nil {
		return fork.Options{}, err
	}
	return fork.Options{Styles: stylesFrom(rawStyles), Effort: effort}, nil
}
