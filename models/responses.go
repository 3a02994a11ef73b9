package models

// EngineResponse is a completion engine reply, or one fragment of a streamed
// reply. A response carries text parts, tool call parts, or both.
type EngineResponse struct {
	Parts []Part `json:"parts"`
}

// ToolCall is a structured request emitted by the engine instead of (or
// alongside) plain text, asking the orchestrator to run a named domain action.
type ToolCall struct {
	ID   string         `json:"id,omitempty"` // engine-assigned call instance id
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type Part struct {
	Text     *string   `json:"text,omitempty"`
	ToolCall *ToolCall `json:"toolCall,omitempty"`
}

// TextPart builds a text-only part.
func TextPart(text string) Part {
	return Part{Text: &text}
}

// Text concatenates all text parts of the response.
func (r EngineResponse) Text() string {
	var out string
	for _, p := range r.Parts {
		if p.Text != nil {
			out += *p.Text
		}
	}
	return out
}

// ToolCalls returns the tool call parts of the response in order.
func (r EngineResponse) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range r.Parts {
		if p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}
