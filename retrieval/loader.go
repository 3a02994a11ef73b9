package retrieval

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
)

// LoadDishCSV reads dish documents from a CSV file with a Name, Category,
// Ingredients header. Content is the searchable text; the raw columns are
// kept in metadata for rendering.
func LoadDishCSV(path string) ([]DishDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dish file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse dish file: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dish file %s has no data rows", path)
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Name", "Category", "Ingredients"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("dish file %s is missing column %q", path, required)
		}
	}

	docs := make([]DishDocument, 0, len(records)-1)
	for _, rec := range records[1:] {
		name := strings.TrimSpace(rec[col["Name"]])
		category := strings.TrimSpace(rec[col["Category"]])
		ingredients := strings.TrimSpace(rec[col["Ingredients"]])
		if name == "" {
			continue
		}
		docs = append(docs, DishDocument{
			Name:    name,
			Content: fmt.Sprintf("%s %s %s", name, category, ingredients),
			Metadata: map[string]string{
				"Name":        name,
				"Category":    category,
				"Ingredients": ingredients,
			},
		})
	}
	return docs, nil
}

// Loader fills a MemoryIndex from the dish CSV and optionally keeps it fresh
// on a cron schedule, so menu edits land without a restart.
type Loader struct {
	Path  string
	Index *MemoryIndex

	cron *cron.Cron
}

func NewLoader(path string, index *MemoryIndex) *Loader {
	return &Loader{Path: path, Index: index}
}

// Load reads the CSV and replaces the index content.
func (l *Loader) Load(ctx context.Context) error {
	docs, err := LoadDishCSV(l.Path)
	if err != nil {
		return err
	}
	if err := l.Index.Replace(ctx, docs); err != nil {
		return err
	}
	log.Printf("Loaded %d dish documents from %s", len(docs), l.Path)
	return nil
}

// StartRefresh schedules periodic reloads with the given cron spec
// (e.g. "@every 1h"). Failed reloads keep the previous index content.
func (l *Loader) StartRefresh(spec string) error {
	l.cron = cron.New()
	_, err := l.cron.AddFunc(spec, func() {
		if err := l.Load(context.Background()); err != nil {
			log.Printf("Dish index refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	l.cron.Start()
	return nil
}

// StopRefresh stops the refresh schedule, if any.
func (l *Loader) StopRefresh() {
	if l.cron != nil {
		l.cron.Stop()
	}
}
