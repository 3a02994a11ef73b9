// Package retrieval provides similarity search over dish documents. The
// orchestrator and the menu_lookup tool consume the Index interface; the
// backing implementation (in-memory cosine index or pgvector) is chosen at
// startup.
package retrieval

import (
	"context"
)

// DishDocument is one menu item as seen by the retrieval layer. Documents are
// immutable from the orchestrator's perspective.
type DishDocument struct {
	Name     string            `json:"name"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Index is similarity search over dish documents. Results are ranked by
// descending relevance; ties preserve insertion order in the underlying
// index. topK <= 0 returns all matches.
type Index interface {
	Search(ctx context.Context, query string, topK int) ([]DishDocument, error)
}
