package models

// ChatRequest is the inbound payload for the buffered chat endpoint.
type ChatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply for the buffered chat endpoint.
type ChatResponse struct {
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

// EngineRequest is one completion round sent to a completion engine.
// Exactly one of User or ToolResults drives the round: the first round of a
// turn carries the assembled user prompt, a follow-up round carries the
// results of the tool calls the engine requested.
type EngineRequest struct {
	System      string       `json:"system,omitempty"`
	User        string       `json:"user,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
}

// ToolResult feeds a tool's rendered output back to the engine, correlated
// by the call ID the engine supplied.
type ToolResult struct {
	ToolID   string `json:"tool_id"`
	ToolName string `json:"tool_name"`
	Output   string `json:"tool_output"`
}
