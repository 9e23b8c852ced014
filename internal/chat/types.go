package chat

import (
	"errors"

	"github.com/kensei-chat/kensei/internal/tools"
)

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles. The wire protocol knows only these two; tool results
// travel in user-role turns, mirroring the upstream function-calling format.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Sentinel errors for orchestration.
var (
	// ErrEmptyPrompt indicates a blank prompt reached the orchestrator.
	// Callers are expected to reject these before starting a run.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrInvalidResponse indicates the generation API returned a response
	// with no usable content shape. Recovered with a fallback reply.
	ErrInvalidResponse = errors.New("invalid model response")

	// ErrSessionStoreFailed indicates the session store rejected a write.
	ErrSessionStoreFailed = errors.New("session store write failed")
)

// ToolCall is a model-issued request to invoke a named tool.
// Multiple calls may appear in one turn; each must receive exactly one
// matching result before the next model invocation.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult pairs a tool name with the outcome sent back to the model.
type ToolResult struct {
	Name   string
	Result tools.Result
}

// Part is one content segment of a turn. Exactly one field is set.
type Part struct {
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// Turn is one role-tagged message unit in a conversation history.
type Turn struct {
	Role  Role
	Parts []Part
}

// NewUserTurn builds a plain-text user turn.
func NewUserTurn(text string) *Turn {
	return &Turn{Role: RoleUser, Parts: []Part{{Text: text}}}
}

// NewModelTextTurn builds a model turn carrying only text segments.
func NewModelTextTurn(segments ...string) *Turn {
	parts := make([]Part, len(segments))
	for i, s := range segments {
		parts[i] = Part{Text: s}
	}
	return &Turn{Role: RoleModel, Parts: parts}
}

// NewToolResultTurn builds the synthetic turn answering a model's tool
// calls. Results must be in the same order as the calls they answer;
// correlation is positional when names repeat.
func NewToolResultTurn(results []ToolResult) *Turn {
	parts := make([]Part, len(results))
	for i := range results {
		parts[i] = Part{ToolResult: &results[i]}
	}
	return &Turn{Role: RoleUser, Parts: parts}
}

// ToolCalls returns the tool-call segments of the turn, in order.
func (t *Turn) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range t.Parts {
		if p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

// TextSegments returns the non-empty text segments of the turn, in order.
func (t *Turn) TextSegments() []string {
	var segments []string
	for _, p := range t.Parts {
		if p.ToolCall == nil && p.ToolResult == nil && p.Text != "" {
			segments = append(segments, p.Text)
		}
	}
	return segments
}

// Reply is the terminal output of one orchestration run. Turns holds a
// snapshot of the session history taken while the run still owned the
// session lock, so callers may read it without further synchronization.
type Reply struct {
	Text      string
	SessionID string
	Turns     []*Turn
}
