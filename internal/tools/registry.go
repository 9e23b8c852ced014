// Package tools provides the tool registry and the handlers the model can
// invoke during a conversation.
//
// Handlers never panic or return errors past their own boundary in a way
// that aborts the conversation: every failure is converted into an error
// Result so the model can react to it in natural language on the next turn.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// Sentinel errors for tool dispatch.
var (
	// ErrUnknownTool indicates the model requested a tool name that is not
	// registered. Recoverable: converted into an error result.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingArgument indicates a required argument was absent from the
	// model's call. Recoverable: converted into an error result.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrDuplicateTool indicates a handler name collision at registration.
	ErrDuplicateTool = errors.New("duplicate tool name")
)

// Handler executes one model-invoked tool.
//
// Execute returns the success payload or an error. Errors must carry a
// user-facing message; the dispatcher turns them into error results, never
// into aborted conversations.
type Handler interface {
	Name() string
	Description() string
	InputSchema() *jsonschema.Schema
	Execute(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Declaration describes one tool for the model-facing catalog.
type Declaration struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

// Registry maps tool names to handlers. Pure lookup, no side effects.
//
// Thread safety: the handler set is fixed after construction, so concurrent
// Resolve/Dispatch calls need no locking.
type Registry struct {
	handlers map[string]Handler
	resolved map[string]*jsonschema.Resolved
}

// NewRegistry builds a registry from the given handlers.
// Fails on name collisions or unresolvable input schemas.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{
		handlers: make(map[string]Handler, len(handlers)),
		resolved: make(map[string]*jsonschema.Resolved, len(handlers)),
	}
	for _, h := range handlers {
		name := h.Name()
		if _, exists := r.handlers[name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTool, name)
		}
		resolved, err := h.InputSchema().Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolving schema for %s: %w", name, err)
		}
		r.handlers[name] = h
		r.resolved[name] = resolved
	}
	return r, nil
}

// Resolve returns the handler registered under name.
func (r *Registry) Resolve(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return h, nil
}

// Names returns all registered tool names, sorted for stable logging.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the model-facing catalog of all registered tools.
func (r *Registry) Declarations() []Declaration {
	decls := make([]Declaration, 0, len(r.handlers))
	for _, name := range r.Names() {
		h := r.handlers[name]
		decls = append(decls, Declaration{
			Name:        h.Name(),
			Description: h.Description(),
			Schema:      h.InputSchema(),
		})
	}
	return decls
}

// Dispatch resolves and executes one tool call, converting every failure
// mode (unknown name, missing argument, handler error, handler panic) into
// an error Result. The returned Result is always usable as a function
// response.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Failure(fmt.Sprintf("A ferramenta %s falhou inesperadamente.", name))
		}
	}()

	h, err := r.Resolve(name)
	if err != nil {
		return Failure(fmt.Sprintf("Função %s não encontrada.", name))
	}

	if err := r.validateArgs(name, args); err != nil {
		return Failure(err.Error())
	}

	value, err := h.Execute(ctx, args)
	if err != nil {
		return Failure(err.Error())
	}
	return Success(value)
}

// validateArgs checks the call arguments against the handler's declared
// input schema. Required properties are checked first so the model gets the
// specific missing name back.
func (r *Registry) validateArgs(name string, args map[string]any) error {
	schema := r.handlers[name].InputSchema()
	for _, req := range schema.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingArgument, req)
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := r.resolved[name].Validate(args); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", name, err)
	}
	return nil
}
