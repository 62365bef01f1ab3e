// Package aggregator merges fetched source records into the payload the
// synthesizer works from.
package aggregator

import "github.com/hikitugu/handover/internal/sources"

// Summary holds per-source record counts
type Summary struct {
	CalendarEventsCount  int `json:"calendar_events_count"`
	SlackMessagesCount   int `json:"slack_messages_count"`
	SpreadsheetRowsCount int `json:"spreadsheet_rows_count"`
}

// Result is the merged view of everything fetched for one document.
// The lists are never nil so they serialize as [].
type Result struct {
	Summary         Summary                  `json:"summary"`
	CalendarEvents  []sources.Event          `json:"calendar_events"`
	SlackMessages   []sources.Message        `json:"slack_messages"`
	SpreadsheetData []sources.SpreadsheetRow `json:"spreadsheet_data"`
}

// Aggregate combines the three record lists. Records are kept as given: no
// deduplication and no joins across sources.
func Aggregate(events []sources.Event, messages []sources.Message, rows []sources.SpreadsheetRow) Result {
	if events == nil {
		events = []sources.Event{}
	}
	if messages == nil {
		messages = []sources.Message{}
	}
	if rows == nil {
		rows = []sources.SpreadsheetRow{}
	}

	return Result{
		Summary: Summary{
			CalendarEventsCount:  len(events),
			SlackMessagesCount:   len(messages),
			SpreadsheetRowsCount: len(rows),
		},
		CalendarEvents:  events,
		SlackMessages:   messages,
		SpreadsheetData: rows,
	}
}
