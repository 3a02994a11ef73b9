package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/delaight/waiter/models"
)

// OrderRequest lists the meals the customer settled on.
type OrderRequest struct {
	Meals []string `json:"meals"`
}

// OrderResponse reports the kitchen's delivery estimate.
type OrderResponse struct {
	DeliveredInMinutes int `json:"deliveredInMinutes"`
}

// Scheduler estimates delivery time for an order.
type Scheduler interface {
	Schedule(ctx context.Context, meals []string) (int, error)
}

// FixedScheduler always quotes the same delivery estimate. The kitchen has no
// real queue yet, so every order lands in the default slot.
type FixedScheduler struct {
	ETAMinutes int
}

func (s FixedScheduler) Schedule(_ context.Context, meals []string) (int, error) {
	log.Printf("Order placed for %d meal(s): %v", len(meals), meals)
	return s.ETAMinutes, nil
}

// DefaultScheduler quotes the standard 20 minute estimate.
func DefaultScheduler() Scheduler {
	return FixedScheduler{ETAMinutes: 20}
}

// PlaceOrderTool declares the place_order tool backed by the given scheduler.
func PlaceOrderTool(scheduler Scheduler) (models.Declaration, Handler) {
	decl := models.Declaration{
		Name:        "place_order",
		Description: "Place the customer's order for the chosen meals. Returns the delivery estimate in minutes.",
		Parameters: models.Parameters{
			Type: "object",
			Properties: map[string]any{
				"meals": map[string]any{
					"type":        "array",
					"description": "Names of the dishes the customer ordered",
					"items": map[string]any{
						"type": "string",
					},
				},
			},
			Required: []string{"meals"},
		},
	}
	return decl, placeOrderHandler(scheduler)
}

func placeOrderHandler(scheduler Scheduler) Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		meals, err := decodeMeals(args["meals"])
		if err != nil {
			return "", &models.ToolError{Code: models.ToolInvalidArguments, Tool: "place_order", Err: err}
		}

		minutes, err := scheduler.Schedule(ctx, meals)
		if err != nil {
			return "", fmt.Errorf("order scheduling failed: %w", err)
		}

		out, err := json.Marshal(OrderResponse{DeliveredInMinutes: minutes})
		if err != nil {
			return "", fmt.Errorf("failed to encode order response: %w", err)
		}
		return string(out), nil
	}
}

// decodeMeals accepts the []any shape JSON argument decoding produces.
func decodeMeals(raw any) ([]string, error) {
	items, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]string); ok {
			items = make([]any, len(typed))
			for i, s := range typed {
				items[i] = s
			}
		} else {
			return nil, fmt.Errorf("missing required array argument 'meals'")
		}
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("'meals' must contain at least one dish")
	}

	meals := make([]string, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("'meals' entries must be non-empty strings")
		}
		meals[i] = s
	}
	return meals, nil
}
