package prompt

import (
	"strings"

	"github.com/delaight/waiter/retrieval"
)

// DishLine renders a single retrieved document the way the menu tool and the
// user prompt both present dishes.
func DishLine(doc retrieval.DishDocument) string {
	name := doc.Metadata["Name"]
	if name == "" {
		name = doc.Name
	}
	return "Dish: " + name + " Dish with Ingredients: " + doc.Content
}

// RenderContext joins dish lines into the bulleted block embedded under
// 'Dish context' in the user prompt.
func RenderContext(docs []retrieval.DishDocument) string {
	if len(docs) == 0 {
		return ""
	}
	lines := make([]string, len(docs))
	for i, doc := range docs {
		lines[i] = DishLine(doc)
	}
	return "- " + strings.Join(lines, "\n - ")
}

// Assemble fills the user prompt template with the customer query and the
// retrieved dish context.
func Assemble(query string, docs []retrieval.DishDocument) string {
	out := strings.ReplaceAll(UserPrompt, "{query}", query)
	return strings.ReplaceAll(out, "{context}", RenderContext(docs))
}
