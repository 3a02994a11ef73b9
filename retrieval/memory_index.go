package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process cosine-similarity index over embedded dish
// documents. Add order is preserved so equal scores rank by insertion order.
type MemoryIndex struct {
	embedder Embedder

	mu      sync.RWMutex
	entries []indexEntry
}

type indexEntry struct {
	doc    DishDocument
	vector []float32
}

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{embedder: embedder}
}

// Add embeds and stores the documents. Called at load time and by the
// periodic refresh; safe for concurrent use with Search.
func (x *MemoryIndex) Add(ctx context.Context, docs []DishDocument) error {
	entries := make([]indexEntry, 0, len(docs))
	for _, doc := range docs {
		vec, err := x.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to embed document %q: %w", doc.Name, err)
		}
		entries = append(entries, indexEntry{doc: doc, vector: vec})
	}

	x.mu.Lock()
	x.entries = append(x.entries, entries...)
	x.mu.Unlock()
	return nil
}

// Replace swaps the whole index content atomically.
func (x *MemoryIndex) Replace(ctx context.Context, docs []DishDocument) error {
	entries := make([]indexEntry, 0, len(docs))
	for _, doc := range docs {
		vec, err := x.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to embed document %q: %w", doc.Name, err)
		}
		entries = append(entries, indexEntry{doc: doc, vector: vec})
	}

	x.mu.Lock()
	x.entries = entries
	x.mu.Unlock()
	return nil
}

// Len returns the number of indexed documents.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Search ranks documents by cosine similarity to the query, descending.
// Ties keep insertion order. topK <= 0 returns all documents.
func (x *MemoryIndex) Search(ctx context.Context, query string, topK int) ([]DishDocument, error) {
	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	x.mu.RLock()
	type scored struct {
		doc   DishDocument
		score float64
		pos   int
	}
	results := make([]scored, len(x.entries))
	for i, entry := range x.entries {
		results[i] = scored{doc: entry.doc, score: cosineSimilarity(queryVec, entry.vector), pos: i}
	}
	x.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].pos < results[j].pos
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	docs := make([]DishDocument, len(results))
	for i, r := range results {
		docs[i] = r.doc
	}
	return docs, nil
}

func cosineSimilarity(a, b []float32) float64 {
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
