package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/outline"
)

// Stub is a deterministic Synthesizer for local development without an API key
type Stub struct {
	defaults *outline.Defaults
}

// NewStub creates a stub synthesizer
func NewStub(defaults *outline.Defaults) *Stub {
	return &Stub{defaults: defaults}
}

// GenerateSectionContent summarizes the records it was given
func (s *Stub) GenerateSectionContent(_ context.Context, req SectionRequest) (string, error) {
	var b strings.Builder
	if req.Description != "" {
		b.WriteString(req.Description)
		b.WriteString("\n\n")
	}
	if len(req.Sources) == 0 {
		b.WriteString("- no information\n")
	}
	for _, bucket := range req.Sources {
		fmt.Fprintf(&b, "- %s: %d records\n", bucket.Source, bucket.Count)
	}
	return strings.TrimSpace(b.String()), nil
}

// ProposeStructure returns the default outline
func (s *Stub) ProposeStructure(_ context.Context, _ DataSummary) ([]models.ProposedSection, error) {
	return s.defaults.Proposal(), nil
}
