package transcript

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/log"
	"github.com/kensei-chat/kensei/internal/tools"
)

func fixedTime() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

// fakeRow implements pgx.Row over a fixed value set.
type fakeRow struct {
	err    error
	values []any
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

// fakeRows implements pgx.Rows over fixed value sets.
type fakeRows struct {
	rows [][]any
	idx  int
	err  error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(row[i]))
	}
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

// fakeQuerier records calls and returns canned results.
type fakeQuerier struct {
	rows    pgx.Rows
	row     pgx.Row
	execTag pgconn.CommandTag
	execErr error

	gotSQL  []string
	gotArgs [][]any
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.gotSQL = append(q.gotSQL, sql)
	q.gotArgs = append(q.gotArgs, args)
	return q.rows, nil
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.gotSQL = append(q.gotSQL, sql)
	q.gotArgs = append(q.gotArgs, args)
	return q.row
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.gotSQL = append(q.gotSQL, sql)
	q.gotArgs = append(q.gotArgs, args)
	return q.execTag, q.execErr
}

func TestStoredTurnRoundTrip(t *testing.T) {
	turns := []*chat.Turn{
		chat.NewUserTurn("que horas são?"),
		{Role: chat.RoleModel, Parts: []chat.Part{
			{ToolCall: &chat.ToolCall{Name: "getCurrentTime"}},
			{ToolCall: &chat.ToolCall{Name: "getWeather", Args: map[string]any{"location": "Kyoto"}}},
		}},
		chat.NewToolResultTurn([]chat.ToolResult{
			{Name: "getCurrentTime", Result: tools.Success(map[string]any{"dateTimeInfo": "Data: 01/01/2024, Hora: 10:00"})},
			{Name: "getWeather", Result: tools.Failure("Não foi possível obter o tempo no momento.")},
		}),
		chat.NewModelTextTurn("São dez horas."),
	}

	got := fromStoredTurns(toStoredTurns(turns))
	if len(got) != len(turns) {
		t.Fatalf("round trip lost turns: %d != %d", len(got), len(turns))
	}

	if got[0].Role != chat.RoleUser || got[0].Parts[0].Text != "que horas são?" {
		t.Errorf("user turn = %+v", got[0])
	}

	calls := got[1].ToolCalls()
	if len(calls) != 2 || calls[1].Args["location"] != "Kyoto" {
		t.Errorf("tool calls = %+v", calls)
	}

	results := got[2].Parts
	if !results[0].ToolResult.Result.OK {
		t.Error("first result should be ok")
	}
	if results[1].ToolResult.Result.OK || results[1].ToolResult.Result.Err == "" {
		t.Errorf("second result = %+v, want error payload", results[1].ToolResult.Result)
	}

	if got[3].TextSegments()[0] != "São dez horas." {
		t.Errorf("model text turn = %+v", got[3])
	}
}

func TestSaveUpsertsSnapshot(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	s := New(q, log.NewNop())

	turns := []*chat.Turn{chat.NewUserTurn("olá"), chat.NewModelTextTurn("saudações")}
	if err := s.Save(context.Background(), "user-1", "session-1", "Primeira conversa", turns); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if len(q.gotSQL) != 1 || !strings.Contains(q.gotSQL[0], "ON CONFLICT (user_id, session_id)") {
		t.Errorf("sql = %q, want upsert", q.gotSQL)
	}
	args := q.gotArgs[0]
	if args[1] != "user-1" || args[2] != "session-1" || args[5] != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestGetMapsNoRows(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{err: pgx.ErrNoRows}}
	s := New(q, log.NewNop())

	_, err := s.Get(context.Background(), "user-1", uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingTranscript(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("DELETE 0")}
	s := New(q, log.NewNop())

	err := s.Delete(context.Background(), "user-1", uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPurgeStaleScopesToUser(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("DELETE 4")}
	s := New(q, log.NewNop())

	deleted, err := s.PurgeStale(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("PurgeStale: %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}
	if len(q.gotSQL) != 1 || !strings.Contains(q.gotSQL[0], "interval '90 days'") {
		t.Errorf("sql = %q, want retention-window delete", q.gotSQL)
	}
	if len(q.gotArgs[0]) != 1 || q.gotArgs[0][0] != "user-1" {
		t.Errorf("args = %v, want only the user id", q.gotArgs[0])
	}
}

func TestRenameValidation(t *testing.T) {
	s := New(&fakeQuerier{execTag: pgconn.NewCommandTag("UPDATE 0")}, log.NewNop())

	if err := s.Rename(context.Background(), "user-1", uuid.New(), ""); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("blank title err = %v, want ErrEmptyTitle", err)
	}
	if err := s.Rename(context.Background(), "user-1", uuid.New(), "Novo título"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing row err = %v, want ErrNotFound", err)
	}
}

func TestListScansSummaries(t *testing.T) {
	id := uuid.New()
	q := &fakeQuerier{rows: &fakeRows{rows: [][]any{
		{id, "session-1", "Primeira", 4, fixedTime(), fixedTime()},
	}}}
	s := New(q, log.NewNop())

	got, err := s.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != id || got[0].TurnCount != 4 {
		t.Errorf("summaries = %+v", got)
	}
}

func TestStatsEmptyUser(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{values: []any{0, 0, fixedTime()}}}
	s := New(q, log.NewNop())

	got, err := s.Stats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.TranscriptCount != 0 || !got.LastActivity.IsZero() {
		t.Errorf("stats = %+v, want zero values", got)
	}
}

func TestCustomInstructionDefaultsEmpty(t *testing.T) {
	q := &fakeQuerier{row: &fakeRow{err: pgx.ErrNoRows}}
	s := New(q, log.NewNop())

	got, err := s.CustomInstruction(context.Background(), "user-1")
	if err != nil || got != "" {
		t.Errorf("CustomInstruction = %q, %v; want empty, nil", got, err)
	}
}

func TestSetCustomInstructionValidation(t *testing.T) {
	q := &fakeQuerier{execTag: pgconn.NewCommandTag("INSERT 0 1")}
	s := New(q, log.NewNop())

	long := strings.Repeat("a", MaxCustomInstructionLength+1)
	if err := s.SetCustomInstruction(context.Background(), "user-1", long); !errors.Is(err, ErrInstructionTooLong) {
		t.Errorf("err = %v, want ErrInstructionTooLong", err)
	}

	if err := s.SetCustomInstruction(context.Background(), "user-1", "Responda em haicais."); err != nil {
		t.Errorf("valid instruction err = %v", err)
	}
	if len(q.gotSQL) != 1 || !strings.Contains(q.gotSQL[0], "ON CONFLICT (user_id)") {
		t.Errorf("sql = %q, want upsert", q.gotSQL)
	}
}
