package memory

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder turns text into a vector. The hierarchy never generates
// embeddings itself (out of scope per spec §1); it only consumes one,
// the way spec §4.3's `searchThreshold` option is "reserved for semantic
// mode" rather than wired into the core keyword-scoring path.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingMatch is one semantic-search hit.
type EmbeddingMatch struct {
	EntryID    string
	Content    string
	Similarity float32
}

// EmbeddingIndex is the abstract semantic-search collaborator spec §1
// names but deliberately excludes from the core engine: a concrete
// implementation is optional, and ArchivalSearch's keyword scoring never
// depends on one being configured.
type EmbeddingIndex interface {
	Upsert(ctx context.Context, entryID, content string, metadata map[string]string) error
	Query(ctx context.Context, query string, limit int) ([]EmbeddingMatch, error)
	Delete(ctx context.Context, entryID string) error
}

// ChromemIndex is a concrete, in-process EmbeddingIndex backed by
// chromem-go, with embedding generation delegated to an injected Embedder
// so this package never talks to an embedding provider directly.
type ChromemIndex struct {
	db         *chromem.DB
	collection string
	embedder   Embedder
}

// NewChromemIndex builds a ChromemIndex. persistPath may be empty for an
// in-memory-only index.
func NewChromemIndex(persistPath, collection string, embedder Embedder) (*ChromemIndex, error) {
	var db *chromem.DB
	var err error
	if persistPath != "" {
		db, err = chromem.NewPersistentDB(persistPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open persistent embedding index: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}
	return &ChromemIndex{db: db, collection: collection, embedder: embedder}, nil
}

func (c *ChromemIndex) getOrCreateCollection() (*chromem.Collection, error) {
	col := c.db.GetCollection(c.collection, nil)
	if col != nil {
		return col, nil
	}
	return c.db.CreateCollection(c.collection, nil, nil)
}

// Upsert embeds content via the configured Embedder and stores it,
// replacing any prior vector for entryID.
func (c *ChromemIndex) Upsert(ctx context.Context, entryID, content string, metadata map[string]string) error {
	vec, err := c.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("failed to embed archival entry: %w", err)
	}
	col, err := c.getOrCreateCollection()
	if err != nil {
		return err
	}
	doc := chromem.Document{ID: entryID, Content: content, Metadata: metadata, Embedding: vec}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert into embedding index: %w", err)
	}
	return nil
}

// Query embeds query and returns the nearest stored entries by cosine
// similarity, most similar first.
func (c *ChromemIndex) Query(ctx context.Context, query string, limit int) ([]EmbeddingMatch, error) {
	if limit <= 0 {
		limit = 10
	}
	col := c.db.GetCollection(c.collection, nil)
	if col == nil {
		return nil, nil
	}
	if n := col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query failed: %w", err)
	}
	matches := make([]EmbeddingMatch, len(results))
	for i, r := range results {
		matches[i] = EmbeddingMatch{EntryID: r.ID, Content: r.Content, Similarity: r.Similarity}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	return matches, nil
}

// Delete removes entryID's vector, if present.
func (c *ChromemIndex) Delete(ctx context.Context, entryID string) error {
	col := c.db.GetCollection(c.collection, nil)
	if col == nil {
		return nil
	}
	return col.Delete(ctx, nil, nil, entryID)
}

var _ EmbeddingIndex = (*ChromemIndex)(nil)
