// Package server implements the MCP (Model Context Protocol) transport
// adapter exposing the reasoning engine's orchestrator and fork/debate
// engine as tools over stdio.
//
// Available tools:
//   - think: route a message through the orchestrator control loop
//   - fork: run concurrent multi-style reasoning over a query
//   - debate: run fork followed by adversarial rounds between styles
//   - expand, merge, challenge, refork: steer a prior fork result
package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"reasonforge/internal/fork"
	"reasonforge/internal/orchestrator"
)

// Server coordinates the orchestrator and fork engine and provides MCP
// tool handlers for both.
type Server struct {
	orchestrator *orchestrator.Orchestrator
	forkEngine   *fork.ThinkForkEngine
}

// New builds a Server. Either collaborator may be nil if a deployment only
// wants to expose a subset of tools; RegisterTools skips tools whose
// collaborator is absent.
func New(o *orchestrator.Orchestrator, f *fork.ThinkForkEngine) *Server {
	return &Server{orchestrator: o, forkEngine: f}
}

// RegisterTools registers every tool this Server has a collaborator for.
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	if s.orchestrator != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "think",
			Description: "Route a message through the reasoning engine's classify/route/persist control loop for a session",
		}, s.handleThink)
	}

	if s.forkEngine != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "fork",
			Description: "Run concurrent multi-style reasoning (conservative, aggressive, balanced, contrarian) over a query",
		}, s.handleFork)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "debate",
			Description: "Fork a query then run sequential adversarial debate rounds between surviving styles",
		}, s.handleDebate)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "expand",
			Description: "Ask one style from a prior fork to go deeper on its conclusion",
		}, s.handleExpand)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "merge",
			Description: "Synthesise a single position from two or more styles in a prior fork",
		}, s.handleMerge)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "challenge",
			Description: "Challenge one style from a prior fork to defend its conclusion",
		}, s.handleChallenge)

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        "refork",
			Description: "Re-run a fork with additional context layered onto the original query",
		}, s.handleRefork)
	}
}
