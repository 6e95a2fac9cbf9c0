// Package rag provides retrieval-augmented lookup over indexed guideline
// passages: embed the query, score every stored chunk by cosine
// similarity, and return the top matches above a threshold.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/user/careline/internal/types"
)

// Item is one passage to index with its metadata. Metadata key "source"
// groups chunks for bulk deletion; key "category" scopes specialist
// retrieval.
type Item struct {
	Content  string
	Metadata map[string]string
}

// Scored is a retrieved chunk with its similarity to the query.
type Scored struct {
	Chunk *types.Chunk
	Score float64
}

// Index wraps a chunk store and an embedder.
type Index struct {
	store types.ChunkStore
	embed types.Embedder
}

// New creates an Index over the given store and embedder.
func New(store types.ChunkStore, embed types.Embedder) *Index {
	return &Index{store: store, embed: embed}
}

// Add embeds and indexes a single passage.
func (i *Index) Add(ctx context.Context, content string, metadata map[string]string) error {
	return i.AddBatch(ctx, []Item{{Content: content, Metadata: metadata}})
}

// AddBatch embeds and indexes passages in one transaction.
func (i *Index) AddBatch(ctx context.Context, items []Item) error {
	chunks := make([]*types.Chunk, 0, len(items))
	for _, item := range items {
		vec, err := i.embed.Embed(ctx, item.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk: %w", err)
		}
		source := "unknown"
		if s, ok := item.Metadata["source"]; ok {
			source = s
		}
		chunks = append(chunks, &types.Chunk{
			ID:        types.NewChunkID(),
			Content:   item.Content,
			Embedding: vec,
			Source:    source,
			Metadata:  item.Metadata,
			CreatedAt: time.Now().UTC(),
		})
	}
	if err := i.store.InsertChunks(ctx, chunks); err != nil {
		return err
	}
	slog.Debug("indexed chunks", "count", len(chunks))
	return nil
}

// Search returns up to topK chunks whose cosine similarity to the query
// meets threshold, highest first. Ties keep insertion order.
func (i *Index) Search(ctx context.Context, query string, topK int, threshold float64) ([]Scored, error) {
	return i.search(ctx, query, "", topK, threshold)
}

// SearchCategory is Search restricted to chunks tagged with the category.
func (i *Index) SearchCategory(ctx context.Context, query, category string, topK int, threshold float64) ([]Scored, error) {
	return i.search(ctx, query, category, topK, threshold)
}

func (i *Index) search(ctx context.Context, query, category string, topK int, threshold float64) ([]Scored, error) {
	queryVec, err := i.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	chunks, err := i.store.AllChunks(ctx)
	if err != nil {
		return nil, err
	}

	var scored []Scored
	for _, c := range chunks {
		if category != "" && c.Metadata["category"] != category {
			continue
		}
		score := cosine(queryVec, c.Embedding)
		if score >= threshold {
			scored = append(scored, Scored{Chunk: c, Score: score})
		}
	}

	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Score > scored[b].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// DeleteSource removes every chunk indexed from the given source.
func (i *Index) DeleteSource(ctx context.Context, source string) (int, error) {
	return i.store.DeleteChunksBySource(ctx, source)
}

// Count returns the number of indexed chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	return i.store.CountChunks(ctx)
}

// cosine returns the cosine similarity of two vectors. Mismatched lengths
// or a zero-norm vector score 0, never NaN.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
