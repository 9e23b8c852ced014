// Package transcript persists durable conversation snapshots and per-user
// preferences in PostgreSQL. The live conversation state stays in the
// session store; this layer only records what happened.
package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kensei-chat/kensei/internal/chat"
)

// Querier defines the database operations the store needs. Interfaces are
// defined by the consumer, not the provider; *pgxpool.Pool satisfies this.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store manages transcript and preference persistence.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a store over the given querier.
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}
}

// Save upserts the snapshot of one session's conversation. The title is
// only set on first insert; renames go through Rename.
func (s *Store) Save(ctx context.Context, userID, sessionID, title string, turns []*chat.Turn) error {
	payload, err := json.Marshal(toStoredTurns(turns))
	if err != nil {
		return fmt.Errorf("encoding turns: %w", err)
	}

	const q = `
		INSERT INTO transcripts (id, user_id, session_id, title, turns, turn_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (user_id, session_id) DO UPDATE
		SET turns = EXCLUDED.turns,
		    turn_count = EXCLUDED.turn_count,
		    updated_at = now()`

	_, err = s.db.Exec(ctx, q, uuid.New(), userID, sessionID, title, payload, len(turns))
	if err != nil {
		return fmt.Errorf("saving transcript: %w", err)
	}

	s.logger.DebugContext(ctx, "transcript saved",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
		slog.Int("turns", len(turns)))
	return nil
}

// List returns the caller's transcripts, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]Summary, error) {
	const q = `
		SELECT id, session_id, title, turn_count, created_at, updated_at
		FROM transcripts
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 50`

	rows, err := s.db.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.SessionID, &sum.Title, &sum.TurnCount, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning transcript row: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transcript rows: %w", err)
	}
	return out, nil
}

// Get returns one transcript with its full turn snapshot. The user id
// scopes the lookup, so one user cannot read another's transcripts.
func (s *Store) Get(ctx context.Context, userID string, id uuid.UUID) (*Transcript, error) {
	const q = `
		SELECT id, user_id, session_id, title, turns, turn_count, created_at, updated_at
		FROM transcripts
		WHERE user_id = $1 AND id = $2`

	var (
		t       Transcript
		payload []byte
	)
	err := s.db.QueryRow(ctx, q, userID, id).Scan(
		&t.ID, &t.UserID, &t.SessionID, &t.Title, &payload, &t.TurnCount, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript: %w", err)
	}

	var stored []storedTurn
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("decoding turns: %w", err)
	}
	t.Turns = fromStoredTurns(stored)
	return &t, nil
}

// Delete removes one transcript.
func (s *Store) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM transcripts WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("deleting transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// StaleAfter is how long an untouched transcript survives before the
// maintenance purge considers it stale.
const StaleAfter = 90 * 24 * time.Hour

// PurgeStale removes the caller's transcripts not updated within
// StaleAfter and returns how many were deleted.
func (s *Store) PurgeStale(ctx context.Context, userID string) (int64, error) {
	const q = `DELETE FROM transcripts WHERE user_id = $1 AND updated_at < now() - interval '90 days'`
	tag, err := s.db.Exec(ctx, q, userID)
	if err != nil {
		return 0, fmt.Errorf("purging stale transcripts: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rename sets a transcript's title.
func (s *Store) Rename(ctx context.Context, userID string, id uuid.UUID, title string) error {
	if title == "" {
		return ErrEmptyTitle
	}

	const q = `UPDATE transcripts SET title = $3, updated_at = now() WHERE user_id = $1 AND id = $2`
	tag, err := s.db.Exec(ctx, q, userID, id, title)
	if err != nil {
		return fmt.Errorf("renaming transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the caller's transcript activity.
func (s *Store) Stats(ctx context.Context, userID string) (*Stats, error) {
	const q = `
		SELECT COUNT(*), COALESCE(SUM(turn_count), 0), COALESCE(MAX(updated_at), 'epoch'::timestamptz)
		FROM transcripts
		WHERE user_id = $1`

	var (
		st   Stats
		last time.Time
	)
	if err := s.db.QueryRow(ctx, q, userID).Scan(&st.TranscriptCount, &st.TurnCount, &last); err != nil {
		return nil, fmt.Errorf("aggregating stats: %w", err)
	}
	if st.TranscriptCount > 0 {
		st.LastActivity = last
	}
	return &st, nil
}

// CustomInstruction returns the caller's stored system instruction, empty
// when none is set.
func (s *Store) CustomInstruction(ctx context.Context, userID string) (string, error) {
	var instruction string
	err := s.db.QueryRow(ctx,
		`SELECT custom_instruction FROM user_preferences WHERE user_id = $1`, userID,
	).Scan(&instruction)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting preference: %w", err)
	}
	return instruction, nil
}

// SetCustomInstruction upserts the caller's system instruction. An empty
// instruction clears back to the default persona.
func (s *Store) SetCustomInstruction(ctx context.Context, userID, instruction string) error {
	if len([]rune(instruction)) > MaxCustomInstructionLength {
		return ErrInstructionTooLong
	}

	const q = `
		INSERT INTO user_preferences (user_id, custom_instruction, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET custom_instruction = EXCLUDED.custom_instruction, updated_at = now()`

	if _, err := s.db.Exec(ctx, q, userID, instruction); err != nil {
		return fmt.Errorf("saving preference: %w", err)
	}
	return nil
}
