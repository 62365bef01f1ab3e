// Package planner resolves the ordered list of sections to generate for a document.
package planner

import (
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/outline"
)

// Origin records which input a plan was resolved from.
type Origin string

const (
	OriginTemplate Origin = "template"
	OriginProposal Origin = "proposal"
	OriginFallback Origin = "fallback"
)

// Item is one section to generate. Order is 1-based and dense within a plan.
type Item struct {
	Order            int
	Title            string
	Level            int
	Description      string
	EstimatedSources models.SourceSet
}

// Plan is an ordered list of items plus where it came from.
type Plan struct {
	Origin Origin
	Items  []Item
}

// Planner turns a document and its optional template/approved proposal into a plan.
type Planner struct {
	fallback []outline.Entry
}

// New creates a Planner whose last-resort plan is the fallback outline of d.
func New(d *outline.Defaults) *Planner {
	return &Planner{fallback: d.FallbackPlan}
}

// Resolve picks, in priority order: the template's parsed sections (template
// mode only, and only when the structure is non-empty), the approved proposal,
// then the fallback outline. Orders are always renumbered 1..N in list order.
// tmpl and approved may be nil. Resolve performs no I/O.
func (p *Planner) Resolve(doc *models.Document, tmpl *models.Template, approved *models.Proposal) Plan {
	if doc.GenerationMode == models.GenerationModeTemplate && tmpl != nil && len(tmpl.ParsedStructure.Sections) > 0 {
		return Plan{Origin: OriginTemplate, Items: fromTemplate(tmpl.ParsedStructure.Sections)}
	}

	if approved != nil && len(approved.ProposedStructure) > 0 {
		return Plan{Origin: OriginProposal, Items: fromProposal(approved.ProposedStructure)}
	}

	return Plan{Origin: OriginFallback, Items: fromOutline(p.fallback)}
}

func fromTemplate(sections []models.TemplateSection) []Item {
	items := make([]Item, len(sections))
	for i, s := range sections {
		items[i] = Item{
			Order:            i + 1,
			Title:            s.Title,
			Level:            s.Level,
			EstimatedSources: models.SourceSet{},
		}
	}
	return items
}

func fromProposal(sections []models.ProposedSection) []Item {
	items := make([]Item, len(sections))
	for i, s := range sections {
		items[i] = Item{
			Order:            i + 1,
			Title:            s.Title,
			Level:            1,
			Description:      s.Description,
			EstimatedSources: s.EstimatedSources.Clone(),
		}
	}
	return items
}

func fromOutline(entries []outline.Entry) []Item {
	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{
			Order:            i + 1,
			Title:            e.Title,
			Level:            1,
			Description:      e.Description,
			EstimatedSources: models.SourceSet{},
		}
	}
	return items
}
