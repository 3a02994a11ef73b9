package tools

import (
	"github.com/delaight/waiter/retrieval"
)

// WaiterRegistry builds the registry the ordering assistant runs with:
// menu_lookup over the dish index and place_order over the scheduler.
func WaiterRegistry(index retrieval.Index, scheduler Scheduler) *Registry {
	registry := NewRegistry()
	registry.Register(MenuLookupTool(index))
	registry.Register(PlaceOrderTool(scheduler))
	return registry
}
