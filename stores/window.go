package stores

import (
	"log"
)

// TrimWindow repairs a capped history window before it is handed to a
// completion engine. Capping the window at the most recent N turns can cut a
// tool round-trip in half, leaving either a leading tool turn whose
// originating user turn fell outside the window, or a trailing tool turn
// whose closing assistant turn was never written (crash mid-turn).
//
// Valid window shapes:
//   - user -> assistant
//   - user -> tool -> assistant (one tool round-trip per turn)
//
// TrimWindow guarantees the window starts with a user or assistant turn and
// does not end on a dangling tool turn.
func TrimWindow(turns []Turn) []Turn {
	if len(turns) == 0 {
		return turns
	}

	start := 0
	for start < len(turns) && turns[start].Role == RoleTool {
		start++
	}
	if start > 0 {
		log.Printf("[WINDOW] Skipping %d leading tool turn(s) cut off by the retrieve cap", start)
	}
	turns = turns[start:]

	end := len(turns)
	for end > 0 && turns[end-1].Role == RoleTool {
		end--
	}
	if end < len(turns) {
		log.Printf("[WINDOW] Dropping %d trailing tool turn(s) with no closing assistant turn", len(turns)-end)
	}
	return turns[:end]
}

// DetectWindowIssues reports structural problems in a window without fixing
// them. Empty result means the window is clean.
func DetectWindowIssues(turns []Turn) []string {
	issues := []string{}
	if len(turns) == 0 {
		return issues
	}

	if turns[0].Role == RoleTool {
		issues = append(issues, "window starts with a tool turn (originating user turn cut off)")
	}
	if turns[len(turns)-1].Role == RoleTool {
		issues = append(issues, "window ends with a tool turn (no closing assistant turn)")
	}

	for i := 1; i < len(turns); i++ {
		if turns[i-1].Role == RoleUser && turns[i].Role == RoleUser {
			issues = append(issues, "two consecutive user turns")
		}
	}
	return issues
}
