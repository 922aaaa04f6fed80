package main

import (
	"context"
	"log"
	"os"

	"reasonforge/internal/config"
	"reasonforge/internal/fork"
	"reasonforge/internal/graph"
	"reasonforge/internal/memory"
	"reasonforge/internal/orchestrator"
	"reasonforge/internal/provider"
	"reasonforge/internal/server"
	"reasonforge/internal/storage"
	"reasonforge/internal/testsupport"
	"reasonforge/internal/types"
)

// ServerComponents holds every initialized collaborator the MCP transport
// adapter needs. Extracted from main() so tests can exercise wiring
// without running the stdio transport loop.
type ServerComponents struct {
	Config       *config.Config
	Storage      storage.Storage
	Provider     provider.ThinkingProvider
	Graph        *graph.ThinkGraph
	Registry     *orchestrator.SessionRegistry
	Memory       orchestrator.MemoryManager
	Orchestrator *orchestrator.Orchestrator
	ForkEngine   *fork.ThinkForkEngine
	Server       *server.Server
}

// InitializeServer builds every collaborator from configuration and
// environment variables.
func InitializeServer() (*ServerComponents, error) {
	components := &ServerComponents{}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	components.Config = cfg
	log.Printf("Loaded configuration for environment %q", cfg.Server.Environment)

	store, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	components.Storage = store
	log.Printf("Initialized %s storage backend", cfg.Storage.Type)

	thinkingProvider, err := newProviderFromEnv(cfg)
	if err != nil {
		return nil, err
	}
	components.Provider = thinkingProvider

	mode := types.ThinkingAdaptive
	if cfg.Engine.ThinkingType == string(types.ThinkingBudgeted) {
		mode = types.ThinkingBudgeted
	}

	g := graph.New(store)
	components.Graph = g
	log.Println("Initialized reasoning graph")

	registry := orchestrator.NewSessionRegistry()
	registry.SetEvictionHook(func(sessionID string, h *memory.Hierarchy) {
		log.Printf("Evicted memory hierarchy for session %s from registry cache", sessionID)
	})
	components.Registry = registry

	hydrate := hydrateFunc(store, cfg)
	memManager := newMemoryManager(cfg, registry, hydrate)
	components.Memory = memManager
	log.Println("Initialized memory hierarchy manager")

	orchConfig := orchestrator.DefaultConfig()
	orchConfig.EffortRouting = effortRoutingFromConfig(cfg)
	orchConfig.Budget = orchestrator.Budget{
		Enabled:                cfg.Budget.Enabled,
		MaxSessionOutputTokens: cfg.Budget.MaxSessionOutputTokens,
		WarnAtPercent:          cfg.Budget.WarnAtPercent,
		MaxCompactions:         cfg.Budget.MaxCompactions,
	}

	orch := orchestrator.New(thinkingProvider, mode, g, memManager, nil, orchConfig)
	components.Orchestrator = orch
	log.Println("Initialized orchestrator control loop")

	forkEngine := fork.New(thinkingProvider, mode, nil, nil)
	components.ForkEngine = forkEngine
	log.Println("Initialized fork engine")

	components.Server = server.New(orch, forkEngine)
	log.Println("Created MCP transport adapter")

	return components, nil
}

// newProviderFromEnv builds the Anthropic-backed ThinkingProvider, or a
// scripted MockProvider when ANTHROPIC_API_KEY is unset, so the server can
// start (e.g. for local tool-schema inspection) without live credentials.
func newProviderFromEnv(cfg *config.Config) (provider.ThinkingProvider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Println("ANTHROPIC_API_KEY not set; using a scripted mock provider")
		return testsupport.NewMockProvider(testsupport.ErrorResponse(
			types.NewError(types.ErrInvalidInput, "no provider configured: set ANTHROPIC_API_KEY"),
		)), nil
	}
	return provider.NewAnthropicProvider(apiKey, cfg.Engine.Model, cfg.Engine.MaxTokens)
}

// newMemoryManager builds the orchestrator's knowledge-context collaborator.
// When VOYAGE_API_KEY is set it layers semantic (embedding) search on top
// of the always-on keyword-scored search, the same posture the teacher
// takes for its VOYAGE_API_KEY-gated embedder: semantic retrieval is an
// enhancement, never a dependency, of the knowledge-context step. A
// failure to open the embedding index degrades to keyword-only search
// rather than failing server startup.
func newMemoryManager(cfg *config.Config, registry *orchestrator.SessionRegistry, hydrate orchestrator.HydrateFunc) orchestrator.MemoryManager {
	apiKey := os.Getenv("VOYAGE_API_KEY")
	if apiKey == "" {
		log.Println("VOYAGE_API_KEY not set, semantic memory search disabled (keyword-only retrieval)")
		return orchestrator.NewHierarchyMemoryManager(registry, hydrate)
	}

	embedder := memory.NewVoyageEmbedder(apiKey, os.Getenv("EMBEDDINGS_MODEL"))
	idx, err := memory.NewChromemIndex(cfg.Memory.EmbeddingIndexPath, "archival", embedder)
	if err != nil {
		log.Printf("Failed to initialize semantic memory index: %v. Falling back to keyword-only retrieval.", err)
		return orchestrator.NewHierarchyMemoryManager(registry, hydrate)
	}
	log.Println("Initialized semantic memory search (chromem-go + Voyage embeddings)")
	return orchestrator.NewSemanticMemoryManager(registry, hydrate, idx, float32(cfg.Memory.SearchThreshold))
}

// hydrateFunc builds a fresh MemoryHierarchy for a session over store with
// the configured memory tuning. Archival entries are read from store when
// searched; the main-context and recall tiers start empty, and persisted
// entries of those tiers are not reloaded.
func hydrateFunc(store storage.Storage, cfg *config.Config) orchestrator.HydrateFunc {
	return func(ctx context.Context, sessionID string) (*memory.Hierarchy, error) {
		memCfg := memory.DefaultConfig()
		memCfg.MaxMainContextTokens = cfg.Memory.MaxMainContextTokens
		memCfg.RecallWindowSize = cfg.Memory.RecallWindowSize
		memCfg.EvictionThreshold = cfg.Memory.EvictionThreshold
		return memory.New(sessionID, store, memCfg, nil, memory.Callbacks{}), nil
	}
}

func effortRoutingFromConfig(cfg *config.Config) orchestrator.EffortRouting {
	return orchestrator.EffortRouting{
		Enabled:  cfg.EffortRouting.Enabled,
		Simple:   types.Effort(cfg.EffortRouting.SimpleEffort),
		Standard: types.Effort(cfg.EffortRouting.StandardEffort),
		Complex:  types.Effort(cfg.EffortRouting.ComplexEffort),
	}
}

// Cleanup closes every resource that needs an orderly shutdown.
func (c *ServerComponents) Cleanup() error {
	if c.Storage != nil {
		return storage.CloseStorage(c.Storage)
	}
	return nil
}
