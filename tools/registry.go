package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/delaight/waiter/models"
)

// Handler executes a tool call with already-decoded arguments and returns the
// output string handed back to the completion engine.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Registry maps tool names to declarations and handlers. Registration happens
// at startup; Invoke is safe for concurrent use afterwards.
type Registry struct {
	declarations map[string]models.Declaration
	handlers     map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		declarations: map[string]models.Declaration{},
		handlers:     map[string]Handler{},
	}
}

// Register adds a tool. Re-registering a name replaces the previous entry.
func (r *Registry) Register(decl models.Declaration, handler Handler) {
	if _, exists := r.declarations[decl.Name]; exists {
		log.Printf("Replacing tool registration for %s", decl.Name)
	}
	r.declarations[decl.Name] = decl
	r.handlers[decl.Name] = handler
}

// Declarations returns the registered tool declarations in name order, for
// advertising to the completion engine.
func (r *Registry) Declarations() []models.Declaration {
	names := make([]string, 0, len(r.declarations))
	for name := range r.declarations {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]models.Declaration, 0, len(names))
	for _, name := range names {
		decls = append(decls, r.declarations[name])
	}
	return decls
}

// Invoke runs the named tool. Failures come back as *models.ToolError so the
// caller can distinguish an unknown tool from a handler failure.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return "", &models.ToolError{
			Code: models.ToolUnknown,
			Tool: name,
			Err:  fmt.Errorf("no tool registered under this name"),
		}
	}

	output, err := handler(ctx, args)
	if err != nil {
		var toolErr *models.ToolError
		if errors.As(err, &toolErr) {
			return "", toolErr
		}
		return "", &models.ToolError{Code: models.ToolHandlerFailure, Tool: name, Err: err}
	}
	return output, nil
}
