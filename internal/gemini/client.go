// Package gemini adapts the Gemini generation API to the conversation
// model used by the orchestrator.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/kensei-chat/kensei/internal/chat"
	"github.com/kensei-chat/kensei/internal/tools"
)

// Config controls generation behavior.
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
}

// Client calls the Gemini API and translates between conversation turns
// and the provider's content format. It implements chat.ModelClient.
type Client struct {
	genai  *genai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a Gemini-backed model client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{genai: client, cfg: cfg, logger: logger}, nil
}

// defaultSafetySettings blocks medium-and-above harmful content across the
// four standard categories.
func defaultSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, len(categories))
	for i, c := range categories {
		settings[i] = &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		}
	}
	return settings
}

// Generate implements chat.ModelClient. Responses without a usable content
// shape map to chat.ErrInvalidResponse so the orchestrator can reply with
// its fallback instead of failing the request.
func (c *Client) Generate(ctx context.Context, turns []*chat.Turn, decls []tools.Declaration) (*chat.Turn, error) {
	contents, err := toContents(turns)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.Temperature),
		TopK:            genai.Ptr(c.cfg.TopK),
		TopP:            genai.Ptr(c.cfg.TopP),
		MaxOutputTokens: c.cfg.MaxOutputTokens,
		SafetySettings:  defaultSafetySettings(),
	}
	if len(decls) > 0 {
		fns, err := toFunctionDeclarations(decls)
		if err != nil {
			return nil, err
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: fns}}
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	turn, err := fromResponse(resp)
	if err != nil {
		c.logger.WarnContext(ctx, "unusable generation response", slog.Any("error", err))
		return nil, err
	}
	return turn, nil
}

// fromResponse converts the provider response into a model turn.
func fromResponse(resp *genai.GenerateContentResponse) (*chat.Turn, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blocked (%s)",
				chat.ErrInvalidResponse, resp.PromptFeedback.BlockReason)
		}
		return nil, fmt.Errorf("%w: no candidates", chat.ErrInvalidResponse)
	}

	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, fmt.Errorf("%w: candidate has no content", chat.ErrInvalidResponse)
	}

	turn := &chat.Turn{Role: chat.RoleModel}
	for _, p := range content.Parts {
		switch {
		case p.FunctionCall != nil:
			turn.Parts = append(turn.Parts, chat.Part{ToolCall: &chat.ToolCall{
				Name: p.FunctionCall.Name,
				Args: p.FunctionCall.Args,
			}})
		case p.Text != "":
			turn.Parts = append(turn.Parts, chat.Part{Text: p.Text})
		}
	}
	return turn, nil
}

// toContents converts conversation turns into provider content.
func toContents(turns []*chat.Turn) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		content := &genai.Content{Role: string(t.Role)}
		for _, p := range t.Parts {
			switch {
			case p.ToolCall != nil:
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: p.ToolCall.Name,
						Args: p.ToolCall.Args,
					},
				})
			case p.ToolResult != nil:
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     p.ToolResult.Name,
						Response: p.ToolResult.Result.Payload(),
					},
				})
			case p.Text != "":
				content.Parts = append(content.Parts, &genai.Part{Text: p.Text})
			default:
				return nil, fmt.Errorf("turn has an empty part (role %s)", t.Role)
			}
		}
		contents = append(contents, content)
	}
	return contents, nil
}
