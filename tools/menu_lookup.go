package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/prompt"
	"github.com/delaight/waiter/retrieval"
)

// MenuRequest carries the dish name or ingredient the customer asked about.
type MenuRequest struct {
	Dish string `json:"dish"`
}

// MenuResponse lists the matching menu entries, rendered as dish lines.
type MenuResponse struct {
	Dishes []string `json:"dishes"`
}

// MenuLookupTool declares the menu_lookup tool over the given index.
func MenuLookupTool(index retrieval.Index) (models.Declaration, Handler) {
	decl := models.Declaration{
		Name:        "menu_lookup",
		Description: "Look up menu dishes matching a dish name or ingredient. Returns each matching dish with its ingredients.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]any{
				"dish": map[string]any{
					"type":        "string",
					"description": "Dish name or ingredient to search the menu for",
				},
			},
			Required: []string{"dish"},
		},
	}
	return decl, menuLookupHandler(index)
}

func menuLookupHandler(index retrieval.Index) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		dish, ok := args["dish"].(string)
		if !ok || strings.TrimSpace(dish) == "" {
			return "", &models.ToolError{
				Code: models.ToolInvalidArguments,
				Tool: "menu_lookup",
				Err:  fmt.Errorf("missing required string argument 'dish'"),
			}
		}

		docs, err := index.Search(ctx, dish, 0)
		if err != nil {
			return "", fmt.Errorf("menu search failed: %w", err)
		}

		dishes := make([]string, len(docs))
		for i, doc := range docs {
			dishes[i] = prompt.DishLine(doc)
		}
		log.Printf("Menu lookup for %q matched %d dishes", dish, len(dishes))

		out, err := json.Marshal(MenuResponse{Dishes: dishes})
		if err != nil {
			return "", fmt.Errorf("failed to encode menu response: %w", err)
		}
		return string(out), nil
	}
}
