// Package outline provides the fixed section outlines used when no template
// or usable AI proposal is available.
package outline

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/hikitugu/handover/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Entry is one section of a fixed outline.
type Entry struct {
	Title            string          `yaml:"title"`
	Description      string          `yaml:"description"`
	EstimatedSources []models.Source `yaml:"estimated_sources"`
}

// Defaults is the parsed outline file.
type Defaults struct {
	FallbackPlan    []Entry `yaml:"fallback_plan"`
	DefaultProposal []Entry `yaml:"default_proposal"`
}

// Builtin returns the outlines compiled into the binary. The embedded file is
// validated by tests, so a parse failure here is a build defect.
func Builtin() *Defaults {
	d, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("outline: embedded defaults are invalid: %v", err))
	}
	return d
}

// Load reads outline defaults from path, rejecting unknown keys.
func Load(path string) (*Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read outline file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates outline YAML.
func Parse(data []byte) (*Defaults, error) {
	var d Defaults
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown YAML keys to catch typos

	if err := decoder.Decode(&d); err != nil {
		return nil, fmt.Errorf("failed to parse outline: %w", err)
	}

	if len(d.FallbackPlan) == 0 {
		return nil, fmt.Errorf("outline missing required field: fallback_plan")
	}
	if len(d.DefaultProposal) == 0 {
		return nil, fmt.Errorf("outline missing required field: default_proposal")
	}
	for _, group := range [][]Entry{d.FallbackPlan, d.DefaultProposal} {
		for i, e := range group {
			if e.Title == "" {
				return nil, fmt.Errorf("outline entry %d has no title", i+1)
			}
			for _, s := range e.EstimatedSources {
				if !s.Valid() {
					return nil, fmt.Errorf("outline entry %q has unknown source %q", e.Title, s)
				}
			}
		}
	}

	return &d, nil
}

// Proposal converts the default proposal into proposed sections. Each call
// returns fresh slices.
func (d *Defaults) Proposal() []models.ProposedSection {
	out := make([]models.ProposedSection, len(d.DefaultProposal))
	for i, e := range d.DefaultProposal {
		out[i] = models.ProposedSection{
			Title:            e.Title,
			Description:      e.Description,
			EstimatedSources: models.SourceSet(e.EstimatedSources).Clone(),
		}
	}
	return out
}
