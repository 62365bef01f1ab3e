package models

import (
	"time"

	"github.com/google/uuid"
)

// Document status constants
const (
	DocumentStatusDraft      = "draft"
	DocumentStatusGenerating = "generating"
	DocumentStatusCompleted  = "completed"
	DocumentStatusError      = "error"
)

// Generation modes
const (
	GenerationModeTemplate   = "template"
	GenerationModeAIProposal = "ai_proposal"
)

// DocumentMetadata holds the per-source identifiers selected for a document
type DocumentMetadata struct {
	SlackChannelIDs []string `json:"slack_channel_ids"`
	SpreadsheetIDs  []string `json:"spreadsheet_ids"`
}

// Document is a handover document with a forward-only status lifecycle
type Document struct {
	Base
	CreatedBy       uuid.UUID        `gorm:"type:uuid;not null;index" json:"created_by"`
	Title           string           `gorm:"not null" json:"title"`
	TargetUserEmail string           `json:"target_user_email,omitempty"`
	GenerationMode  string           `gorm:"not null" json:"generation_mode"`
	TemplateID      *uuid.UUID       `gorm:"type:uuid" json:"template_id,omitempty"`
	DateRangeStart  time.Time        `gorm:"not null" json:"date_range_start"`
	DateRangeEnd    time.Time        `gorm:"not null" json:"date_range_end"`
	DataSources     SourceSet        `gorm:"type:jsonb;serializer:json" json:"data_sources"`
	Status          string           `gorm:"not null;default:'draft';index" json:"status"`
	Metadata        DocumentMetadata `gorm:"type:jsonb;serializer:json" json:"metadata"`
	ShareToken      *string          `gorm:"uniqueIndex" json:"-"`
	ShareEnabled    bool             `gorm:"not null;default:false" json:"share_enabled"`

	// Associations
	Sections  []DocumentSection `gorm:"constraint:OnDelete:CASCADE;" json:"sections,omitempty"`
	Jobs      []GenerationJob   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Proposals []Proposal        `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// documentTransitions lists the statuses reachable from each status.
var documentTransitions = map[string][]string{
	DocumentStatusDraft:      {DocumentStatusGenerating, DocumentStatusCompleted, DocumentStatusError},
	DocumentStatusGenerating: {DocumentStatusCompleted, DocumentStatusError},
}

// CanTransition reports whether a document may move from status from to status to.
// Completed and error are terminal.
func CanTransition(from, to string) bool {
	for _, s := range documentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DocumentSection is one generated (or later hand-edited) section of a document
type DocumentSection struct {
	Base
	DocumentID       uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_document_sections_order" json:"document_id"`
	SectionOrder     int               `gorm:"not null;uniqueIndex:idx_document_sections_order" json:"section_order"`
	Title            string            `gorm:"not null" json:"title"`
	Content          string            `gorm:"type:text" json:"content"`
	SourceTags       SourceSet         `gorm:"type:jsonb;serializer:json" json:"source_tags"`
	SourceReferences []SourceReference `gorm:"type:jsonb;serializer:json" json:"source_references"`
	IsAIGenerated    bool              `gorm:"column:is_ai_generated;not null" json:"is_ai_generated"`
}

// SourceReference links a section back to a record in an external source
type SourceReference struct {
	Source string `json:"source"`
	ID     string `json:"id"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}
