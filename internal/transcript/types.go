package transcript

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/tools"
)

// MaxCustomInstructionLength bounds stored per-user instructions.
const MaxCustomInstructionLength = 2000

// Sentinel errors for transcript operations.
var (
	// ErrNotFound indicates the transcript does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("transcript not found")

	// ErrEmptyTitle indicates a rename with a blank title.
	ErrEmptyTitle = errors.New("title must not be empty")

	// ErrInstructionTooLong indicates the custom instruction exceeds
	// MaxCustomInstructionLength.
	ErrInstructionTooLong = errors.New("custom instruction too long")
)

// Transcript is a durable snapshot of one conversation.
type Transcript struct {
	ID        uuid.UUID
	UserID    string
	SessionID string
	Title     string
	Turns     []*chat.Turn
	TurnCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the listing view of a transcript, without its turns.
type Summary struct {
	ID        uuid.UUID
	SessionID string
	Title     string
	TurnCount int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats aggregates one user's transcript activity.
type Stats struct {
	TranscriptCount int
	TurnCount       int
	LastActivity    time.Time
}

// storedTurn is the JSONB wire form of a turn.
type storedTurn struct {
	Role  string       `json:"role"`
	Parts []storedPart `json:"parts"`
}

type storedPart struct {
	Text       string            `json:"text,omitempty"`
	ToolCall   *storedToolCall   `json:"toolCall,omitempty"`
	ToolResult *storedToolResult `json:"toolResult,omitempty"`
}

type storedToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type storedToolResult struct {
	Name  string         `json:"name"`
	OK    bool           `json:"ok"`
	Value map[string]any `json:"value,omitempty"`
	Error string         `json:"error,omitempty"`
}

func toStoredTurns(turns []*chat.Turn) []storedTurn {
	out := make([]storedTurn, 0, len(turns))
	for _, t := range turns {
		st := storedTurn{Role: string(t.Role)}
		for _, p := range t.Parts {
			switch {
			case p.ToolCall != nil:
				st.Parts = append(st.Parts, storedPart{ToolCall: &storedToolCall{
					Name: p.ToolCall.Name,
					Args: p.ToolCall.Args,
				}})
			case p.ToolResult != nil:
				st.Parts = append(st.Parts, storedPart{ToolResult: &storedToolResult{
					Name:  p.ToolResult.Name,
					OK:    p.ToolResult.Result.OK,
					Value: p.ToolResult.Result.Value,
					Error: p.ToolResult.Result.Err,
				}})
			default:
				st.Parts = append(st.Parts, storedPart{Text: p.Text})
			}
		}
		out = append(out, st)
	}
	return out
}

func fromStoredTurns(stored []storedTurn) []*chat.Turn {
	out := make([]*chat.Turn, 0, len(stored))
	for _, st := range stored {
		t := &chat.Turn{Role: chat.Role(st.Role)}
		for _, p := range st.Parts {
			switch {
			case p.ToolCall != nil:
				t.Parts = append(t.Parts, chat.Part{ToolCall: &chat.ToolCall{
					Name: p.ToolCall.Name,
					Args: p.ToolCall.Args,
				}})
			case p.ToolResult != nil:
				res := chat.ToolResult{Name: p.ToolResult.Name}
				if p.ToolResult.OK {
					res.Result = tools.Success(p.ToolResult.Value)
				} else {
					res.Result = tools.Failure(p.ToolResult.Error)
				}
				t.Parts = append(t.Parts, chat.Part{ToolResult: &res})
			default:
				t.Parts = append(t.Parts, chat.Part{Text: p.Text})
			}
		}
		out = append(out, t)
	}
	return out
}
