package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"gorm.io/gorm"
)

// CreateProposal inserts a proposal
func (s *Store) CreateProposal(ctx context.Context, p *models.Proposal) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// GetProposal loads a proposal
func (s *Store) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "proposal", id)
	}
	return &p, nil
}

// LatestApprovedProposal returns the most recently created approved proposal
// of a document, or nil when there is none.
func (s *Store) LatestApprovedProposal(ctx context.Context, documentID uuid.UUID) (*models.Proposal, error) {
	var p models.Proposal
	err := s.db.WithContext(ctx).
		Where("document_id = ? AND status = ?", documentID, models.ProposalStatusApproved).
		Order("created_at DESC").
		Limit(1).
		Find(&p).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query approved proposal: %w", err)
	}
	if p.ID == uuid.Nil {
		return nil, nil
	}
	return &p, nil
}

// ApproveProposal approves a pending proposal. A non-nil structure replaces
// the proposed one.
func (s *Store) ApproveProposal(ctx context.Context, id uuid.UUID, structure []models.ProposedSection, feedback string) (*models.Proposal, error) {
	var out models.Proposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&out, "id = ?", id).Error; err != nil {
			return notFound(err, "proposal", id)
		}
		if out.Status != models.ProposalStatusPending {
			return apperr.Validation("proposal %s is %s, not pending", id, out.Status)
		}

		now := time.Now().UTC()
		out.Status = models.ProposalStatusApproved
		out.ApprovedAt = &now
		out.UserFeedback = feedback
		if structure != nil {
			out.ProposedStructure = structure
		}
		return tx.Model(&out).Select("status", "approved_at", "user_feedback", "proposed_structure", "updated_at").Updates(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
