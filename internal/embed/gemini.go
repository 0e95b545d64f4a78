package embed

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	appErr "github.com/shopmind/recembed/internal/pkg/errors"
)

// ITextEmbedder embeds free text instead of identifiers. Used for
// cold-start products that never appeared in a training run: their catalog
// title stands in for the missing trained vector.
type ITextEmbedder interface {
	Name() string
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

type GeminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

type geminiTextEmbedder struct {
	apiKey string
	model  string
}

func NewGeminiTextEmbedder(cfg GeminiConfig) ITextEmbedder {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &geminiTextEmbedder{
		apiKey: strings.TrimSpace(cfg.APIKey),
		model:  model,
	}
}

func (e *geminiTextEmbedder) Name() string {
	return "gemini:" + e.model
}

func (e *geminiTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("%w: gemini api key not configured", appErr.ErrUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  e.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		e.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}
