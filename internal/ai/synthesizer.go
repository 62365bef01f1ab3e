// Package ai generates section prose and outline proposals with a language model.
package ai

import (
	"context"
	"time"

	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/models"
)

// SourceBucket is one tagged slice of aggregated records handed to the model
type SourceBucket struct {
	Source  models.Source `json:"source"`
	Count   int           `json:"count"`
	Records any           `json:"records"`
}

// SectionRequest describes one section to write
type SectionRequest struct {
	Title       string
	Description string
	Sources     []SourceBucket
}

// DataSummary is what the model sees when proposing an outline: counts, not records.
type DataSummary struct {
	Counts         aggregator.Summary `json:"counts"`
	DataSources    models.SourceSet   `json:"data_sources"`
	DateRangeStart time.Time          `json:"date_range_start"`
	DateRangeEnd   time.Time          `json:"date_range_end"`
	TargetUser     string             `json:"target_user,omitempty"`
}

// Synthesizer writes section content and proposes outlines.
type Synthesizer interface {
	GenerateSectionContent(ctx context.Context, req SectionRequest) (string, error)
	ProposeStructure(ctx context.Context, summary DataSummary) ([]models.ProposedSection, error)
}
