package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kensei-chat/kensei/internal/tools"
)

// Fallback replies used when the model cannot produce usable content.
// Terminal content states, not errors: the caller still gets HTTP 200.
const (
	fallbackInvalidResponse = "Desculpe, recebi uma resposta inesperada do modelo. Por favor, tente novamente."
	fallbackNoContent       = "Desculpe, não consegui formular uma resposta."
	fallbackExhausted       = "Desculpe, não consegui obter uma resposta clara após consultar as ferramentas."
)

// SessionStore resolves and persists conversation histories by session id.
// Lock must serialize orchestration runs for one id; the returned func
// releases the hold.
type SessionStore interface {
	NewID() string
	Get(id string) (*History, bool)
	Put(id string, h *History) error
	Lock(id string) func()
}

// ModelClient generates the next model turn for a conversation. The
// returned turn carries tool calls, text segments, or both; a shape the
// provider cannot express maps to ErrInvalidResponse.
type ModelClient interface {
	Generate(ctx context.Context, turns []*Turn, decls []tools.Declaration) (*Turn, error)
}

// Request is one prompt submitted to the orchestrator.
type Request struct {
	Prompt    string
	SessionID string

	// CustomInstruction replaces the default persona for new sessions
	// only. Ignored when SessionID resolves to an existing history.
	CustomInstruction string
}

// Options tune the orchestration loop.
type Options struct {
	// MaxToolTurns bounds the number of model invocations per run.
	MaxToolTurns int
	// RequestsPerSecond throttles upstream generation calls. Zero
	// disables throttling.
	RequestsPerSecond float64
	// RequestTimeout caps one whole orchestration run. Zero means no cap
	// beyond the caller's context.
	RequestTimeout time.Duration
	// TurnTimeout caps each individual model invocation, retries included.
	TurnTimeout time.Duration
	Retry       RetryConfig
	Breaker     CircuitBreakerConfig
}

// Orchestrator runs the conversational tool-calling loop: prompt in,
// model turns and tool dispatches in between, one reply out. All tool
// failures are folded back into the conversation so the model can react
// to them; only session persistence failures escape to the caller.
type Orchestrator struct {
	store    SessionStore
	model    ModelClient
	registry *tools.Registry
	logger   *slog.Logger

	maxTurns       int
	requestTimeout time.Duration
	turnTimeout    time.Duration
	limiter        *rate.Limiter
	breaker        *CircuitBreaker
	retry          RetryConfig
}

// NewOrchestrator wires an orchestrator. Zero-value Options fields fall
// back to defaults.
func NewOrchestrator(store SessionStore, model ModelClient, registry *tools.Registry, logger *slog.Logger, opts Options) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxToolTurns <= 0 {
		opts.MaxToolTurns = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryConfig()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Orchestrator{
		store:          store,
		model:          model,
		registry:       registry,
		logger:         logger,
		maxTurns:       opts.MaxToolTurns,
		requestTimeout: opts.RequestTimeout,
		turnTimeout:    opts.TurnTimeout,
		limiter:        limiter,
		breaker:        NewCircuitBreaker(opts.Breaker),
		retry:          opts.Retry,
	}
}

// Run executes one orchestration turn and returns the final reply.
//
// The session lock is held for the whole run, so concurrent requests for
// the same session id queue instead of interleaving history writes.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Reply, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	sessionID, history, unlock := o.resolveSession(req)
	defer unlock()

	ctx, span := otel.Tracer("kensei/chat").Start(ctx, "chat.run",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	log := o.logger.With(slog.String("session_id", sessionID))
	log.InfoContext(ctx, "orchestration started",
		slog.Int("history_len", history.Len()))

	history.Append(NewUserTurn(prompt))

	start := time.Now()
	reply := o.converse(ctx, log, history)

	if err := o.store.Put(sessionID, history); err != nil {
		log.ErrorContext(ctx, "session persist failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", ErrSessionStoreFailed, err)
	}

	log.InfoContext(ctx, "orchestration finished",
		slog.Int("history_len", history.Len()),
		slog.Duration("elapsed", time.Since(start)))

	// Snapshot while the session lock is still held; the deferred unlock
	// runs after this return, and readers must never touch the live slice.
	return &Reply{Text: reply, SessionID: sessionID, Turns: history.Snapshot()}, nil
}

// resolveSession finds or creates the history for the request and takes
// the per-session lock. The presented id is discarded when it resolves to
// nothing, matching new-session behavior for stale identifiers.
func (o *Orchestrator) resolveSession(req Request) (string, *History, func()) {
	if req.SessionID != "" {
		unlock := o.store.Lock(req.SessionID)
		if h, ok := o.store.Get(req.SessionID); ok {
			return req.SessionID, h, unlock
		}
		unlock()
	}

	id := o.store.NewID()
	unlock := o.store.Lock(id)

	preamble := DefaultPreamble()
	if req.CustomInstruction != "" {
		preamble = CustomPreamble(req.CustomInstruction)
	}
	return id, NewHistory(preamble...), unlock
}

// converse drives the bounded model/tool loop and returns the final reply
// text. History mutation happens here; the caller persists it.
func (o *Orchestrator) converse(ctx context.Context, log *slog.Logger, history *History) string {
	var reply string

	for turn := 1; turn <= o.maxTurns; turn++ {
		modelTurn, err := o.generate(ctx, history.Turns())
		if err != nil {
			log.WarnContext(ctx, "model call failed, replying with fallback",
				slog.Int("turn", turn), slog.Any("error", err))
			return fallbackInvalidResponse
		}

		calls := modelTurn.ToolCalls()
		if len(calls) > 0 {
			log.InfoContext(ctx, "model requested tools",
				slog.Int("turn", turn), slog.Int("calls", len(calls)))

			history.Append(modelTurn)
			results := o.dispatchAll(ctx, log, calls)
			history.Append(NewToolResultTurn(results))
			continue
		}

		if segments := modelTurn.TextSegments(); len(segments) > 0 {
			reply = strings.Join(segments, " ")
			history.Append(NewModelTextTurn(segments...))
			return reply
		}

		log.WarnContext(ctx, "model returned no content", slog.Int("turn", turn))
		return fallbackNoContent
	}

	log.WarnContext(ctx, "tool turn limit reached without final text",
		slog.Int("max_turns", o.maxTurns))
	if reply == "" {
		reply = fallbackExhausted
	}
	return reply
}

// generate performs one model invocation behind the rate limiter, circuit
// breaker and retry policy.
func (o *Orchestrator) generate(ctx context.Context, turns []*Turn) (*Turn, error) {
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	if err := o.breaker.Allow(); err != nil {
		return nil, err
	}

	turn, err := executeWithRetry(ctx, o.retry, func(ctx context.Context) (*Turn, error) {
		return o.model.Generate(ctx, turns, o.registry.Declarations())
	})
	if err != nil {
		o.breaker.Failure()
		return nil, err
	}
	o.breaker.Success()
	return turn, nil
}

// dispatchAll runs every requested tool concurrently and reassembles the
// results in call order. Duplicate names correlate positionally. Dispatch
// never returns an error; failures ride back as error payloads.
func (o *Orchestrator) dispatchAll(ctx context.Context, log *slog.Logger, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call ToolCall) {
			defer wg.Done()

			res := o.registry.Dispatch(ctx, call.Name, call.Args)
			if !res.OK {
				log.WarnContext(ctx, "tool dispatch failed",
					slog.String("tool", call.Name), slog.String("error", res.Err))
			}
			results[i] = ToolResult{Name: call.Name, Result: res}
		}(i, call)
	}
	wg.Wait()

	return results
}

// BreakerState exposes the circuit state for readiness reporting.
func (o *Orchestrator) BreakerState() CircuitState {
	return o.breaker.State()
}
