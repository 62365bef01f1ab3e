package generation

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/hikitugu/handover/internal/models"
)

const shareTokenBytes = 32

// SharedDocument is what an anonymous holder of a share link sees. Owner and
// source selection details are left out.
type SharedDocument struct {
	ID              uuid.UUID       `json:"id"`
	Title           string          `json:"title"`
	TargetUserEmail string          `json:"target_user_email,omitempty"`
	DateRangeStart  time.Time       `json:"date_range_start"`
	DateRangeEnd    time.Time       `json:"date_range_end"`
	Status          string          `json:"status"`
	Sections        []SharedSection `json:"sections"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SharedSection is one section of a SharedDocument
type SharedSection struct {
	SectionOrder int              `json:"section_order"`
	Title        string           `json:"title"`
	Content      string           `json:"content"`
	SourceTags   models.SourceSet `json:"source_tags"`
}

func sharedView(doc *models.Document) *SharedDocument {
	out := &SharedDocument{
		ID:              doc.ID,
		Title:           doc.Title,
		TargetUserEmail: doc.TargetUserEmail,
		DateRangeStart:  doc.DateRangeStart,
		DateRangeEnd:    doc.DateRangeEnd,
		Status:          doc.Status,
		Sections:        make([]SharedSection, 0, len(doc.Sections)),
		UpdatedAt:       doc.UpdatedAt,
	}
	for _, s := range doc.Sections {
		tags := s.SourceTags
		if tags == nil {
			tags = models.SourceSet{}
		}
		out.Sections = append(out.Sections, SharedSection{
			SectionOrder: s.SectionOrder,
			Title:        s.Title,
			Content:      s.Content,
			SourceTags:   tags,
		})
	}
	return out
}

// newShareToken returns an unguessable URL-safe token
func newShareToken() (string, error) {
	key := securecookie.GenerateRandomKey(shareTokenBytes)
	if key == nil {
		return "", errors.New("failed to generate share token")
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
