// Package advisor answers short personal-finance questions, either from a
// built-in rule set or through the Gemini API.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/insightdelivered/statement-analyzer/internal/config"
	"github.com/insightdelivered/statement-analyzer/internal/logger"
)

// Reply sources.
const (
	SourceLocal    = "local"
	SourceGemini   = "gemini"
	SourceFallback = "local-fallback"
)

// Reply is an answer and where it came from.
type Reply struct {
	Answer string `json:"answer"`
	Source string `json:"source"`
}

// Advisor answers a free-text question. It always produces an answer.
type Advisor interface {
	Ask(ctx context.Context, question string) Reply
}

// New returns a Remote advisor when a Gemini API key is configured and a
// Local one otherwise.
func New(ctx context.Context, cfg config.GeminiConfig) (Advisor, error) {
	if !cfg.Enabled() {
		return Local{}, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewRemote(client.Models, cfg.Model), nil
}

const systemPrompt = "You are a concise, practical personal-finance assistant for students and young adults. " +
	"Be clear and specific, and avoid investment advice that requires a licence. " +
	"If the user uploaded a statement, base suggestions on a typical reading of bank transactions."

// generator is the part of *genai.Models that Remote needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Remote asks a Gemini model, falling back to Local answers when the call
// fails or returns nothing.
type Remote struct {
	gen      generator
	model    string
	fallback Local
}

func NewRemote(gen generator, model string) *Remote {
	return &Remote{gen: gen, model: model}
}

func (r *Remote) Ask(ctx context.Context, question string) Reply {
	if strings.TrimSpace(question) == "" {
		return r.fallback.Ask(ctx, question)
	}

	resp, err := r.gen.GenerateContent(ctx, r.model, genai.Text(question), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
		MaxOutputTokens:   512,
	})
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("model", r.model).Msg("gemini request failed")
		return Reply{Answer: r.fallback.Ask(ctx, question).Answer, Source: SourceFallback}
	}

	answer := strings.TrimSpace(resp.Text())
	if answer == "" {
		return Reply{Answer: "I couldn't generate a response right now.", Source: SourceGemini}
	}
	return Reply{Answer: answer, Source: SourceGemini}
}
