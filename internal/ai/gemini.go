package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/outline"
	"google.golang.org/genai"
)

// contentGenerator is the slice of genai.Models the synthesizer uses
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Synthesizer backed by the Gemini API
type Gemini struct {
	models   contentGenerator
	model    string
	parser   *ProposalParser
	defaults *outline.Defaults
	logger   *slog.Logger
}

// NewGemini creates a Gemini-backed synthesizer
func NewGemini(ctx context.Context, apiKey, model string, defaults *outline.Defaults, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return newGemini(client.Models, model, defaults, logger)
}

func newGemini(gen contentGenerator, model string, defaults *outline.Defaults, logger *slog.Logger) (*Gemini, error) {
	parser, err := NewProposalParser()
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &Gemini{
		models:   gen,
		model:    model,
		parser:   parser,
		defaults: defaults,
		logger:   logger.With("component", "gemini"),
	}, nil
}

// GenerateSectionContent writes Markdown for one section
func (g *Gemini) GenerateSectionContent(ctx context.Context, req SectionRequest) (string, error) {
	prompt, err := sectionPrompt(req)
	if err != nil {
		return "", err
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return "", apperr.External("generate section "+req.Title, err)
	}
	return strings.TrimSpace(text), nil
}

// ProposeStructure asks the model for an outline. A reply that cannot be
// parsed or fails validation yields the default outline instead of an error;
// only transport failures are returned.
func (g *Gemini) ProposeStructure(ctx context.Context, summary DataSummary) ([]models.ProposedSection, error) {
	prompt, err := proposalPrompt(summary)
	if err != nil {
		return nil, err
	}

	text, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, apperr.External("propose structure", err)
	}

	sections, err := g.parser.Parse(text)
	if err != nil {
		g.logger.Warn("Unusable proposal from model, using default outline", "error", err)
		return g.defaults.Proposal(), nil
	}
	return sections, nil
}

func (g *Gemini) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	return responseText(resp), nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
