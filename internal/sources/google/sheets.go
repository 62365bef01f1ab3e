package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hikitugu/handover/internal/sources"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

const spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

// SheetsClient reads spreadsheets and lists them through Drive
type SheetsClient struct {
	opts Options
}

// NewSheetsClient creates a sheets client
func NewSheetsClient(opts Options) *SheetsClient {
	return &SheetsClient{opts: opts}
}

// Spreadsheet fetches the values of every tab, or only sheetName when set.
// The first row of each tab becomes its headers.
func (c *SheetsClient) Spreadsheet(ctx context.Context, accessToken, spreadsheetID, sheetName string) (*sources.Spreadsheet, error) {
	svc, err := sheets.NewService(ctx, c.opts.clientOptions(accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	meta, err := svc.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId,properties.title,sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet %s: %w", spreadsheetID, err)
	}

	out := &sources.Spreadsheet{ID: spreadsheetID}
	if meta.Properties != nil {
		out.Title = meta.Properties.Title
	}

	for _, sh := range meta.Sheets {
		if sh.Properties == nil {
			continue
		}
		title := sh.Properties.Title
		if sheetName != "" && title != sheetName {
			continue
		}

		vr, err := svc.Spreadsheets.Values.Get(spreadsheetID, quoteSheet(title)).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q of %s: %w", title, spreadsheetID, err)
		}
		out.Sheets = append(out.Sheets, toSheet(title, vr.Values))
	}

	if sheetName != "" && len(out.Sheets) == 0 {
		return nil, fmt.Errorf("sheet %q not found in spreadsheet %s", sheetName, spreadsheetID)
	}

	return out, nil
}

// List returns the spreadsheets visible to the token's owner, most recently modified first.
func (c *SheetsClient) List(ctx context.Context, accessToken string) ([]sources.SpreadsheetFile, error) {
	svc, err := drive.NewService(ctx, c.opts.clientOptions(accessToken)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	list, err := svc.Files.List().
		Q(fmt.Sprintf("mimeType='%s' and trashed=false", spreadsheetMimeType)).
		Fields("files(id,name,modifiedTime)").
		OrderBy("modifiedTime desc").
		PageSize(100).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list spreadsheets: %w", err)
	}

	out := make([]sources.SpreadsheetFile, 0, len(list.Files))
	for _, f := range list.Files {
		modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
		out = append(out, sources.SpreadsheetFile{ID: f.Id, Name: f.Name, ModifiedAt: modified})
	}
	return out, nil
}

// quoteSheet renders a sheet title as an A1 range covering the whole tab.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toSheet(name string, values [][]interface{}) sources.Sheet {
	sheet := sources.Sheet{Name: name, Headers: []string{}, Rows: [][]string{}}
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		if i == 0 {
			sheet.Headers = cells
			continue
		}
		sheet.Rows = append(sheet.Rows, cells)
	}
	return sheet
}
