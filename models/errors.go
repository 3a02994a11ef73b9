package models

import "fmt"

// Engine error codes. rate_limited and timeout are retryable by the caller,
// invalid_request is not.
const (
	EngineRateLimited    = "rate_limited"
	EngineTimeout        = "timeout"
	EngineInvalidRequest = "invalid_request"
)

// EngineError is a completion engine failure. It propagates to the caller as
// a transport-level failure; it is never turned into an in-band reply.
type EngineError struct {
	Code string
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine error (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("engine error (%s)", e.Code)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the turn.
func (e *EngineError) Retryable() bool {
	return e.Code == EngineRateLimited || e.Code == EngineTimeout
}

// Tool error codes.
const (
	ToolUnknown          = "unknown_tool"
	ToolInvalidArguments = "invalid_arguments"
	ToolHandlerFailure   = "handler_failure"
)

// ToolError is a tool invocation failure. The orchestrator recovers from all
// three codes the same way (a degraded in-band turn); the code is preserved
// for observability.
type ToolError struct {
	Code string
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %q failed (%s): %v", e.Tool, e.Code, e.Err)
	}
	return fmt.Sprintf("tool %q failed (%s)", e.Tool, e.Code)
}

func (e *ToolError) Unwrap() error { return e.Err }

// ValidationError is a malformed inbound request, rejected before
// orchestration begins.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid field: %s", e.Field)
}
