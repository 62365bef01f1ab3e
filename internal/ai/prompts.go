package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

func sectionPrompt(req SectionRequest) (string, error) {
	data, err := json.Marshal(req.Sources)
	if err != nil {
		return "", fmt.Errorf("failed to marshal source data: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an assistant that writes handover documents.\n")
	b.WriteString("Write the content of the section below as Markdown, in the same language as the section title.\n\n")
	b.WriteString("## Section\n")
	fmt.Fprintf(&b, "- Title: %s\n", req.Title)
	fmt.Fprintf(&b, "- Description: %s\n\n", req.Description)
	b.WriteString("## Source data\n")
	b.Write(data)
	b.WriteString("\n\n## Instructions\n")
	b.WriteString("- Base the content only on the source data; be accurate and concise\n")
	b.WriteString("- Use bullet lists and tables where they help\n")
	b.WriteString("- Do not guess missing facts; write \"no information\" instead\n")
	b.WriteString("- Output Markdown only, without the section title\n")
	return b.String(), nil
}

func proposalPrompt(summary DataSummary) (string, error) {
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data summary: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an assistant that proposes the structure of handover documents.\n")
	b.WriteString("Propose the best section outline for a handover document from the data summary below.\n\n")
	b.WriteString("## Data summary\n")
	b.Write(data)
	b.WriteString("\n\n## Output format\n")
	b.WriteString("Reply with a JSON array only, no other text:\n")
	b.WriteString(`[{"title": "Section title", "description": "What the section covers", "estimated_sources": ["calendar", "slack", "spreadsheet"]}]`)
	b.WriteString("\n\n## Instructions\n")
	b.WriteString("- Include the usual handover sections (overview, responsibilities, ongoing projects, contacts)\n")
	b.WriteString("- Only tag sources that are listed in data_sources\n")
	b.WriteString("- Propose between 5 and 10 sections\n")
	return b.String(), nil
}
