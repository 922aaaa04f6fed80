package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"reasonforge/internal/types"
)

// ThinkRequest is the input for the think tool: a session identifier (the
// orchestrator creates the session on first use) and the user's message.
type ThinkRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ThinkResponse mirrors the parts of orchestrator.OrchestratorResult a
// caller needs to continue the conversation or inspect what happened.
type ThinkResponse struct {
	SessionID      string                  `json:"session_id"`
	Complexity     types.Complexity        `json:"complexity"`
	Effort         types.Effort            `json:"effort"`
	Response       string                  `json:"response"`
	NodeID         string                  `json:"node_id,omitempty"`
	DecisionPoints []*types.DecisionPoint  `json:"decision_points,omitempty"`
	Plan           *types.TaskPlan         `json:"plan,omitempty"`
	BudgetStatus   types.BudgetStatus      `json:"budget_status"`
	Degraded       bool                    `json:"degraded"`
	Compacted      bool                    `json:"compacted"`
	Terminal       bool                    `json:"terminal,omitempty"`
	TerminalReason string                  `json:"terminal_reason,omitempty"`
}

func (s *Server) handleThink(ctx context.Context, req *mcp.CallToolRequest, input ThinkRequest) (*mcp.CallToolResult, *ThinkResponse, error) {
	if err := validateSessionID(input.SessionID); err != nil {
		return nil, nil, err
	}

	result, err := s.orchestrator.Process(ctx, input.SessionID, input.Message)
	if err != nil {
		return nil, nil, err
	}

	resp := &ThinkResponse{
		SessionID:      result.SessionID,
		Complexity:     result.Complexity,
		Effort:         result.Effort,
		Response:       result.Response,
		DecisionPoints: result.DecisionPoints,
		Plan:           result.Plan,
		BudgetStatus:   result.BudgetStatus,
		Degraded:       result.Degraded,
		Compacted:      result.Compacted,
		Terminal:       result.Terminal,
		TerminalReason: result.TerminalReason,
	}
	if result.Node != nil {
		resp.NodeID = result.Node.ID
	}
	return nil, resp, nil
}

func validateSessionID(id string) error {
	if id == "" {
		return types.NewError(types.ErrInvalidInput, "session_id must not be empty")
	}
	return nil
}
