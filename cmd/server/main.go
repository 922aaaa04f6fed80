// Package main provides the entry point for the reasoning engine's MCP
// server.
//
// This server is designed to be spawned as a child process by an MCP
// client and communicates via stdio using the Model Context Protocol. It
// exposes the orchestrator control loop and the fork/debate engine as
// tools: think, fork, debate, expand, merge, challenge, refork.
//
// Environment variables:
//   - ANTHROPIC_API_KEY: Anthropic API key for the reasoning provider
//   - RF_*: configuration overrides, see internal/config
//   - STORAGE_TYPE, SQLITE_PATH: storage backend selection
package main

import (
	"context"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		log.Println("Starting reasoning engine server in debug mode...")
	}

	components, err := InitializeServer()
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer func() {
		if err := components.Cleanup(); err != nil {
			log.Printf("Warning: failed to clean up server resources: %v", err)
		}
	}()

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    components.Config.Server.Name,
		Version: components.Config.Server.Version,
	}, nil)
	log.Println("Created MCP server")

	components.Server.RegisterTools(mcpServer)
	log.Println("Registered tools: think, fork, debate, expand, merge, challenge, refork")

	transport := &mcp.StdioTransport{}
	log.Println("Created stdio transport")

	ctx := context.Background()
	log.Println("Starting MCP server...")
	if err := mcpServer.Run(ctx, transport); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
