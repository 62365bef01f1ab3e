package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal status constants
const (
	ProposalStatusPending  = "pending"
	ProposalStatusApproved = "approved"
	ProposalStatusRejected = "rejected"
	ProposalStatusRevised  = "revised"
)

// ProposedSection is one entry of an AI-suggested outline
type ProposedSection struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	EstimatedSources SourceSet `json:"estimated_sources"`
}

// Proposal is an AI-suggested section outline awaiting approval
type Proposal struct {
	Base
	DocumentID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"document_id"`
	ProposedStructure []ProposedSection `gorm:"type:jsonb;serializer:json" json:"proposed_structure"`
	Status            string            `gorm:"not null;default:'pending';index" json:"status"`
	UserFeedback      string            `gorm:"type:text" json:"user_feedback,omitempty"`
	ApprovedAt        *time.Time        `json:"approved_at,omitempty"`
}
