package tools

// Result is the tagged outcome of a tool dispatch fed back to the model.
// Exactly one branch is meaningful: Value when OK, Err otherwise.
//
// Err carries a single human-readable message. The model receives it inside
// the function response payload and recovers conversationally, so the text
// must be written for end users, not for operators.
type Result struct {
	OK    bool
	Value map[string]any
	Err   string
}

// Success builds an OK result with the handler-specific payload.
func Success(value map[string]any) Result {
	return Result{OK: true, Value: value}
}

// Failure builds an error result with a user-facing message.
func Failure(msg string) Result {
	return Result{Err: msg}
}

// Payload returns the map sent to the model as the function response.
// Error results use the single "error" field the model is prompted to
// understand.
func (r Result) Payload() map[string]any {
	if r.OK {
		return r.Value
	}
	return map[string]any{"error": r.Err}
}
