package models

// Template status constants
const (
	TemplateStatusProcessing = "processing"
	TemplateStatusReady      = "ready"
	TemplateStatusError      = "error"
)

// TemplateSection is one heading extracted from an uploaded template file
type TemplateSection struct {
	Order int    `json:"order"`
	Title string `json:"title"`
	Level int    `json:"level"`
}

// ParsedStructure is the stored outcome of template parsing
type ParsedStructure struct {
	Sections []TemplateSection `json:"sections"`
}

// Template is an uploaded handover template whose structure was parsed upstream
type Template struct {
	Base
	Name            string          `gorm:"not null" json:"name"`
	Description     string          `gorm:"type:text" json:"description,omitempty"`
	FileType        string          `json:"file_type,omitempty"`
	Status          string          `gorm:"not null;default:'processing'" json:"status"`
	ParsedStructure ParsedStructure `gorm:"type:jsonb;serializer:json" json:"parsed_structure"`
}
