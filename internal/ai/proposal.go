package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hikitugu/handover/internal/models"
	"github.com/kaptinlin/jsonschema"
)

const proposalSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["title"],
		"properties": {
			"title": {"type": "string", "minLength": 1},
			"description": {"type": "string"},
			"estimated_sources": {
				"type": "array",
				"items": {"enum": ["calendar", "slack", "spreadsheet"]}
			}
		}
	}
}`

// ProposalParser turns a model reply into proposed sections.
type ProposalParser struct {
	schema *jsonschema.Schema
}

// NewProposalParser compiles the proposal schema
func NewProposalParser() (*ProposalParser, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(proposalSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile proposal schema: %w", err)
	}
	return &ProposalParser{schema: schema}, nil
}

// Parse extracts the outermost JSON array from text and validates it.
func (p *ProposalParser) Parse(text string) ([]models.ProposedSection, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in model reply")
	}
	raw := []byte(text[start : end+1])

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode proposal: %w", err)
	}

	result := p.schema.Validate(generic)
	if !result.IsValid() {
		var errorMessages []string
		for field, evalErr := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return nil, fmt.Errorf("proposal validation failed: %s", strings.Join(errorMessages, "; "))
	}

	var sections []models.ProposedSection
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("failed to decode proposal: %w", err)
	}
	for i := range sections {
		sections[i].Title = strings.TrimSpace(sections[i].Title)
		if sections[i].Title == "" {
			return nil, fmt.Errorf("proposal section %d has a blank title", i+1)
		}
		sections[i].EstimatedSources = sections[i].EstimatedSources.Dedup()
	}
	return sections, nil
}
