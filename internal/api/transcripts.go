package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/transcript"
)

// TitleSuggester proposes a transcript title from its opening prompt.
// Implemented by *chat.Titler.
type TitleSuggester interface {
	Suggest(ctx context.Context, firstPrompt string) string
}

// transcriptHandler serves the persisted-conversation endpoints. All of
// them require an authenticated caller.
type transcriptHandler struct {
	store  *transcript.Store
	titler TitleSuggester
	logger *slog.Logger
}

// transcriptSummary is the listing item returned to clients.
type transcriptSummary struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Title     string    `json:"title"`
	TurnCount int       `json:"turnCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// transcriptDetail adds the turn snapshot to the summary.
type transcriptDetail struct {
	transcriptSummary
	Turns []transcriptTurn `json:"turns"`
}

// transcriptTurn is the client view of one turn: role plus flattened text.
// Tool traffic is reported by name only; payloads stay server-side.
type transcriptTurn struct {
	Role  string   `json:"role"`
	Text  string   `json:"text,omitempty"`
	Tools []string `json:"tools,omitempty"`
}

// requireUser resolves the authenticated caller or writes a 401.
func (h *transcriptHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "auth_required", "authentication required")
		return "", false
	}
	return userID, true
}

// transcriptID parses the {id} path segment or writes a 400.
func (h *transcriptHandler) transcriptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "transcript id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// list handles GET /api/transcripts.
func (h *transcriptHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	summaries, err := h.store.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("listing transcripts failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	out := make([]transcriptSummary, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, toSummary(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// get handles GET /api/transcripts/{id}.
func (h *transcriptHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.transcriptID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), userID, id)
	if errors.Is(err, transcript.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "transcript not found")
		return
	}
	if err != nil {
		h.logger.Error("getting transcript failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	detail := transcriptDetail{
		transcriptSummary: transcriptSummary{
			ID:        t.ID.String(),
			SessionID: t.SessionID,
			Title:     t.Title,
			TurnCount: t.TurnCount,
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		},
		Turns: toClientTurns(t.Turns),
	}
	writeJSON(w, http.StatusOK, detail)
}

// delete handles DELETE /api/transcripts/{id}.
func (h *transcriptHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.transcriptID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), userID, id)
	if errors.Is(err, transcript.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "transcript not found")
		return
	}
	if err != nil {
		h.logger.Error("deleting transcript failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// purgeStale handles DELETE /api/transcripts/stale. Maintenance route:
// drops the caller's transcripts untouched for longer than the retention
// window and reports how many went away.
func (h *transcriptHandler) purgeStale(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.store.PurgeStale(r.Context(), userID)
	if err != nil {
		h.logger.Error("purging stale transcripts failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// rename handles PUT /api/transcripts/{id}.
func (h *transcriptHandler) rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.transcriptID(w, r)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	err := h.store.Rename(r.Context(), userID, id, strings.TrimSpace(req.Title))
	switch {
	case errors.Is(err, transcript.ErrEmptyTitle):
		writeError(w, http.StatusBadRequest, "empty_title", "title must not be empty")
	case errors.Is(err, transcript.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "transcript not found")
	case err != nil:
		h.logger.Error("renaming transcript failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"title": strings.TrimSpace(req.Title)})
	}
}

// suggestTitle handles POST /api/transcripts/{id}/title: proposes a title
// from the transcript's first user prompt and saves it.
func (h *transcriptHandler) suggestTitle(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := h.transcriptID(w, r)
	if !ok {
		return
	}

	t, err := h.store.Get(r.Context(), userID, id)
	if errors.Is(err, transcript.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "transcript not found")
		return
	}
	if err != nil {
		h.logger.Error("getting transcript failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	prompt := firstUserPrompt(t.Turns)
	if prompt == "" {
		writeError(w, http.StatusUnprocessableEntity, "no_content", "transcript has no user turns")
		return
	}

	title := h.titler.Suggest(r.Context(), prompt)
	if err := h.store.Rename(r.Context(), userID, id, title); err != nil {
		h.logger.Error("saving suggested title failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

// stats handles GET /api/stats.
func (h *transcriptHandler) stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	st, err := h.store.Stats(r.Context(), userID)
	if err != nil {
		h.logger.Error("aggregating stats failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := map[string]any{
		"transcriptCount": st.TranscriptCount,
		"turnCount":       st.TurnCount,
	}
	if !st.LastActivity.IsZero() {
		resp["lastActivity"] = st.LastActivity
	}
	writeJSON(w, http.StatusOK, resp)
}

// getPreferences handles GET /api/user/preferences.
func (h *transcriptHandler) getPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	instruction, err := h.store.CustomInstruction(r.Context(), userID)
	if err != nil {
		h.logger.Error("getting preferences failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"customSystemInstruction": instruction})
}

// putPreferences handles PUT /api/user/preferences.
func (h *transcriptHandler) putPreferences(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req struct {
		CustomInstruction string `json:"customSystemInstruction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	err := h.store.SetCustomInstruction(r.Context(), userID, strings.TrimSpace(req.CustomInstruction))
	if errors.Is(err, transcript.ErrInstructionTooLong) {
		writeError(w, http.StatusBadRequest, "instruction_too_long", "custom instruction exceeds 2000 characters")
		return
	}
	if err != nil {
		h.logger.Error("saving preferences failed", "error", err, "user", userID)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toSummary(s transcript.Summary) transcriptSummary {
	return transcriptSummary{
		ID:        s.ID.String(),
		SessionID: s.SessionID,
		Title:     s.Title,
		TurnCount: s.TurnCount,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func toClientTurns(turns []*chat.Turn) []transcriptTurn {
	out := make([]transcriptTurn, 0, len(turns))
	for _, t := range turns {
		ct := transcriptTurn{
			Role: string(t.Role),
			Text: strings.Join(t.TextSegments(), " "),
		}
		for _, c := range t.ToolCalls() {
			ct.Tools = append(ct.Tools, c.Name)
		}
		for _, p := range t.Parts {
			if p.ToolResult != nil {
				ct.Tools = append(ct.Tools, p.ToolResult.Name)
			}
		}
		out = append(out, ct)
	}
	return out
}

func firstUserPrompt(turns []*chat.Turn) string {
	// Skip the two-turn persona preamble; the opening prompt is the first
	// plain-text user turn after it.
	for i, t := range turns {
		if i < 2 || t.Role != chat.RoleUser {
			continue
		}
		if text := strings.Join(t.TextSegments(), " "); text != "" {
			return text
		}
	}
	return ""
}
