package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/transcript"
)

// maxChatBodySize bounds the chat request body.
const maxChatBodySize = 64 * 1024

// ChatRunner executes one orchestration turn. Implemented by
// *chat.Orchestrator.
type ChatRunner interface {
	Run(ctx context.Context, req chat.Request) (*chat.Reply, error)
}

// chatRequest is the POST /api/chat request body.
type chatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId"`
}

// chatResponse is the POST /api/chat response body.
type chatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"sessionId"`
}

// chatHandler serves the conversation endpoint.
type chatHandler struct {
	runner      ChatRunner
	transcripts *transcript.Store // nil disables snapshots and preferences
	logger      *slog.Logger
}

// send handles POST /api/chat.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeError(w, http.StatusBadRequest, "empty_prompt", "prompt must not be empty")
		return
	}

	ctx := r.Context()
	userID, authed := userIDFromContext(ctx)

	// A stored custom instruction replaces the default persona for new
	// sessions. Lookup failures degrade to the default, never to a 500.
	var instruction string
	if authed && h.transcripts != nil {
		var err error
		instruction, err = h.transcripts.CustomInstruction(ctx, userID)
		if err != nil {
			h.logger.Warn("preference lookup failed", "error", err, "user", userID)
		}
	}

	reply, err := h.runner.Run(ctx, chat.Request{
		Prompt:            prompt,
		SessionID:         req.SessionID,
		CustomInstruction: instruction,
	})
	if err != nil {
		if errors.Is(err, chat.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, "empty_prompt", "prompt must not be empty")
			return
		}
		h.logger.Error("orchestration failed",
			"error", err,
			"request_id", requestIDFromContext(ctx),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	h.snapshot(ctx, userID, authed, prompt, reply)

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply.Text, SessionID: reply.SessionID})
}

// snapshot persists the conversation for authenticated callers, reading
// only the turn copy the run captured while it held the session lock.
// Best effort: a failed save is logged, not surfaced, matching the reply
// already being committed to the session store.
func (h *chatHandler) snapshot(ctx context.Context, userID string, authed bool, prompt string, reply *chat.Reply) {
	if !authed || h.transcripts == nil {
		return
	}
	if len(reply.Turns) == 0 {
		h.logger.Warn("empty turn snapshot, skipping save", "session_id", reply.SessionID)
		return
	}

	title := chat.TruncateForTitle(prompt)
	if err := h.transcripts.Save(ctx, userID, reply.SessionID, title, reply.Turns); err != nil {
		h.logger.Error("transcript snapshot failed",
			"error", err,
			"user", userID,
			"session_id", reply.SessionID,
		)
	}
}
