// Package sources defines the records fetched from connected accounts and
// the client interfaces that fetch them.
package sources

import (
	"context"
	"strconv"
	"time"
)

// Event is a calendar event
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day,omitempty"`
	Organizer   string    `json:"organizer,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	Link        string    `json:"link,omitempty"`
}

// Message is a chat message with its thread replies attached
type Message struct {
	ChannelID     string    `json:"channel_id"`
	TS            string    `json:"ts"`
	User          string    `json:"user"`
	Text          string    `json:"text"`
	PostedAt      time.Time `json:"posted_at"`
	ThreadReplies []Message `json:"thread_replies,omitempty"`
}

// Channel is a chat channel visible to the token's owner
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	NumMembers int    `json:"num_members"`
}

// Sheet is one tab of a spreadsheet; the first row is treated as headers
type Sheet struct {
	Name    string     `json:"name"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Spreadsheet is a fetched spreadsheet with its tabs
type Spreadsheet struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Sheets []Sheet `json:"sheets"`
}

// SpreadsheetFile is a listing entry for the spreadsheet picker
type SpreadsheetFile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SpreadsheetRow is a single row keyed by column header
type SpreadsheetRow struct {
	SpreadsheetID    string            `json:"spreadsheet_id"`
	SpreadsheetTitle string            `json:"spreadsheet_title"`
	Sheet            string            `json:"sheet"`
	Values           map[string]string `json:"values"`
}

// CalendarClient fetches events in [from, to). When targetEmail is set only
// events the address organizes or attends are returned.
type CalendarClient interface {
	Events(ctx context.Context, accessToken string, from, to time.Time, targetEmail string) ([]Event, error)
}

// ChatClient fetches channel history in [from, to) including thread replies.
type ChatClient interface {
	Messages(ctx context.Context, accessToken, channelID string, from, to time.Time) ([]Message, error)
	Channels(ctx context.Context, accessToken string) ([]Channel, error)
}

// SheetsClient fetches spreadsheets. An empty sheetName fetches every tab.
type SheetsClient interface {
	Spreadsheet(ctx context.Context, accessToken, spreadsheetID, sheetName string) (*Spreadsheet, error)
	List(ctx context.Context, accessToken string) ([]SpreadsheetFile, error)
}

// Clients groups one client per source.
type Clients struct {
	Calendar CalendarClient
	Chat     ChatClient
	Sheets   SheetsClient
}

// Rows flattens every tab of s into header-keyed rows. Cells beyond the
// header row get a positional key ("column_N"); missing cells are "".
func (s *Spreadsheet) Rows() []SpreadsheetRow {
	var out []SpreadsheetRow
	for _, sheet := range s.Sheets {
		for _, row := range sheet.Rows {
			width := len(sheet.Headers)
			if len(row) > width {
				width = len(row)
			}
			values := make(map[string]string, width)
			for i := 0; i < width; i++ {
				key := columnKey(sheet.Headers, i)
				if i < len(row) {
					values[key] = row[i]
				} else {
					values[key] = ""
				}
			}
			out = append(out, SpreadsheetRow{
				SpreadsheetID:    s.ID,
				SpreadsheetTitle: s.Title,
				Sheet:            sheet.Name,
				Values:           values,
			})
		}
	}
	return out
}

func columnKey(headers []string, i int) string {
	if i < len(headers) && headers[i] != "" {
		return headers[i]
	}
	return "column_" + strconv.Itoa(i+1)
}
