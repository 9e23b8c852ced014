package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TitleMaxLength caps suggested transcript titles.
const TitleMaxLength = 50

// titleInputMaxRunes limits the prompt excerpt sent for title generation,
// reducing latency and cost.
const titleInputMaxRunes = 500

// titleGenerationTimeout keeps title suggestion from blocking the request.
const titleGenerationTimeout = 5 * time.Second

// titlePrompt asks the model for a bare title, no framing.
const titlePrompt = `Gere um título curto (máximo de 50 caracteres) para uma conversa a partir desta primeira mensagem.
O título deve capturar o assunto ou a intenção principal.
Retorne APENAS o texto do título, sem aspas, sem explicações e sem pontuação no final.

Mensagem: %s

Título:`

// Titler suggests a short title for a transcript from its opening prompt.
// Generation failures fall back to truncating the prompt itself.
type Titler struct {
	model  ModelClient
	logger *slog.Logger
}

// NewTitler creates a title generator backed by the given model client.
func NewTitler(model ModelClient, logger *slog.Logger) *Titler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Titler{model: model, logger: logger}
}

// Suggest returns a title for a conversation opened by firstPrompt.
// Never returns empty for a non-blank prompt.
func (t *Titler) Suggest(ctx context.Context, firstPrompt string) string {
	title := t.generate(ctx, firstPrompt)
	if title == "" {
		title = TruncateForTitle(firstPrompt)
		t.logger.DebugContext(ctx, "using truncation fallback for title")
	}
	return title
}

func (t *Titler) generate(ctx context.Context, firstPrompt string) string {
	if t.model == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, titleGenerationTimeout)
	defer cancel()

	runes := []rune(firstPrompt)
	if len(runes) > titleInputMaxRunes {
		firstPrompt = string(runes[:titleInputMaxRunes]) + "..."
	}

	turn, err := t.model.Generate(ctx, []*Turn{
		NewUserTurn(fmt.Sprintf(titlePrompt, firstPrompt)),
	}, nil)
	if err != nil {
		t.logger.DebugContext(ctx, "title generation failed, will use truncation fallback",
			slog.Any("error", err))
		return ""
	}

	title := strings.TrimSpace(strings.Join(turn.TextSegments(), " "))
	title = strings.Trim(title, `"'`)
	if title == "" {
		return ""
	}

	titleRunes := []rune(title)
	if len(titleRunes) > TitleMaxLength {
		title = string(titleRunes[:TitleMaxLength-3]) + "..."
	}
	return title
}

// TruncateForTitle derives a title by truncating the message at a word
// boundary.
func TruncateForTitle(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= TitleMaxLength {
		return message
	}

	truncated := string(runes[:TitleMaxLength])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > TitleMaxLength/2 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(truncated) + "..."
}
