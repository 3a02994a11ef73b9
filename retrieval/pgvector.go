package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// PgVectorIndex is a durable Index backed by a Postgres table with a pgvector
// embedding column. Schema:
//
//	CREATE TABLE dish_documents (
//	    id          SERIAL PRIMARY KEY,
//	    name        TEXT NOT NULL,
//	    content     TEXT NOT NULL,
//	    category    TEXT,
//	    ingredients TEXT,
//	    embedding   vector NOT NULL
//	);
type PgVectorIndex struct {
	db       *sql.DB
	embedder Embedder
}

func NewPgVectorIndex(dsn string, embedder Embedder) (*PgVectorIndex, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &PgVectorIndex{db: db, embedder: embedder}, nil
}

func (x *PgVectorIndex) Close() error {
	return x.db.Close()
}

// Count returns the number of stored documents.
func (x *PgVectorIndex) Count(ctx context.Context) (int, error) {
	var count int
	if err := x.db.QueryRowContext(ctx, "SELECT count(*) FROM dish_documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Store embeds and inserts the documents.
func (x *PgVectorIndex) Store(ctx context.Context, docs []DishDocument) error {
	for _, doc := range docs {
		vec, err := x.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to embed document %q: %w", doc.Name, err)
		}
		_, err = x.db.ExecContext(ctx,
			"INSERT INTO dish_documents (name, content, category, ingredients, embedding) VALUES ($1, $2, $3, $4, $5)",
			doc.Name, doc.Content, doc.Metadata["Category"], doc.Metadata["Ingredients"], vectorLiteral(vec))
		if err != nil {
			return fmt.Errorf("failed to insert document %q: %w", doc.Name, err)
		}
	}
	return nil
}

// Search ranks by cosine distance, ascending distance = descending relevance.
// topK <= 0 returns all documents.
func (x *PgVectorIndex) Search(ctx context.Context, query string, topK int) ([]DishDocument, error) {
	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	sqlQuery := `
        SELECT name, content, category, ingredients
        FROM dish_documents
        ORDER BY embedding <=> $1, id ASC`
	args := []any{vectorLiteral(queryVec)}
	if topK > 0 {
		sqlQuery += " LIMIT $2"
		args = append(args, topK)
	}

	rows, err := x.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var docs []DishDocument
	for rows.Next() {
		var doc DishDocument
		var category, ingredients sql.NullString
		if err := rows.Scan(&doc.Name, &doc.Content, &category, &ingredients); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}
		doc.Metadata = map[string]string{"Name": doc.Name}
		if category.Valid {
			doc.Metadata["Category"] = category.String
		}
		if ingredients.Valid {
			doc.Metadata["Ingredients"] = ingredients.String
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// vectorLiteral renders a float32 slice in pgvector's input format.
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
