// Package datasources lists what a user can pick as document inputs: the
// connected providers, their chat channels and their spreadsheets. It also
// fetches raw records from one source so the user can check a selection.
package datasources

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/sources"
)

// TokenSource returns a user's decrypted access token
type TokenSource interface {
	AccessToken(ctx context.Context, userID uuid.UUID, provider models.Provider) (string, error)
}

// ProviderLister reports which providers a user holds tokens for
type ProviderLister interface {
	ConnectedProviders(ctx context.Context, userID uuid.UUID) ([]models.Provider, error)
}

// ProviderStatus describes one OAuth provider for the current user
type ProviderStatus struct {
	Provider   models.Provider  `json:"provider"`
	Configured bool             `json:"configured"`
	Connected  bool             `json:"connected"`
	Sources    models.SourceSet `json:"sources"`
}

const dateLayout = "2006-01-02"

// Service answers data-source queries
type Service struct {
	tokens     TokenSource
	providers  ProviderLister
	calendar   sources.CalendarClient
	chat       sources.ChatClient
	sheets     sources.SheetsClient
	configured []models.Provider
}

// NewService creates a service. configured lists the providers the server
// has OAuth credentials for.
func NewService(tokens TokenSource, providers ProviderLister, clients sources.Clients, configured []models.Provider) *Service {
	return &Service{
		tokens:     tokens,
		providers:  providers,
		calendar:   clients.Calendar,
		chat:       clients.Chat,
		sheets:     clients.Sheets,
		configured: configured,
	}
}

// Status reports every provider, whether it can be connected and whether the user has.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) ([]ProviderStatus, error) {
	connected, err := s.providers.ConnectedProviders(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]ProviderStatus, 0, 2)
	for _, p := range []models.Provider{models.ProviderGoogle, models.ProviderSlack} {
		st := ProviderStatus{
			Provider:   p,
			Configured: contains(s.configured, p),
			Connected:  contains(connected, p),
			Sources:    models.SourceSet{},
		}
		for _, src := range models.AllSources {
			if src.Provider() == p {
				st.Sources = append(st.Sources, src)
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// Channels lists the slack channels visible to the user's token
func (s *Service) Channels(ctx context.Context, userID uuid.UUID) ([]sources.Channel, error) {
	if s.chat == nil {
		return nil, apperr.Configuration("slack client is not configured")
	}
	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderSlack)
	if err != nil {
		return nil, err
	}
	channels, err := s.chat.Channels(ctx, token)
	if err != nil {
		return nil, apperr.External("list slack channels", err)
	}
	if channels == nil {
		channels = []sources.Channel{}
	}
	return channels, nil
}

// Spreadsheets lists the spreadsheets visible to the user's google token
func (s *Service) Spreadsheets(ctx context.Context, userID uuid.UUID) ([]sources.SpreadsheetFile, error) {
	if s.sheets == nil {
		return nil, apperr.Configuration("sheets client is not configured")
	}
	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	files, err := s.sheets.List(ctx, token)
	if err != nil {
		return nil, apperr.External("list spreadsheets", err)
	}
	if files == nil {
		files = []sources.SpreadsheetFile{}
	}
	return files, nil
}

// CalendarEvents fetches the user's events between two YYYY-MM-DD dates,
// both inclusive. targetEmail narrows them to one attendee.
func (s *Service) CalendarEvents(ctx context.Context, userID uuid.UUID, dateFrom, dateTo, targetEmail string) ([]sources.Event, error) {
	if s.calendar == nil {
		return nil, apperr.Configuration("calendar client is not configured")
	}
	from, to, err := dateRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	events, err := s.calendar.Events(ctx, token, from, to, strings.TrimSpace(targetEmail))
	if err != nil {
		return nil, apperr.External("fetch calendar events", err)
	}
	if events == nil {
		events = []sources.Event{}
	}
	return events, nil
}

// SlackMessages fetches one channel's history between two YYYY-MM-DD dates
func (s *Service) SlackMessages(ctx context.Context, userID uuid.UUID, channelID, dateFrom, dateTo string) ([]sources.Message, error) {
	if s.chat == nil {
		return nil, apperr.Configuration("slack client is not configured")
	}
	if channelID == "" {
		return nil, apperr.Validation("channel_id is required")
	}
	from, to, err := dateRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderSlack)
	if err != nil {
		return nil, err
	}
	msgs, err := s.chat.Messages(ctx, token, channelID, from, to)
	if err != nil {
		return nil, apperr.External("fetch slack channel "+channelID, err)
	}
	if msgs == nil {
		msgs = []sources.Message{}
	}
	return msgs, nil
}

// Spreadsheet fetches one spreadsheet; an empty sheetName fetches every tab
func (s *Service) Spreadsheet(ctx context.Context, userID uuid.UUID, spreadsheetID, sheetName string) (*sources.Spreadsheet, error) {
	if s.sheets == nil {
		return nil, apperr.Configuration("sheets client is not configured")
	}
	token, err := s.tokens.AccessToken(ctx, userID, models.ProviderGoogle)
	if err != nil {
		return nil, err
	}
	ss, err := s.sheets.Spreadsheet(ctx, token, spreadsheetID, sheetName)
	if err != nil {
		return nil, apperr.External("fetch spreadsheet "+spreadsheetID, err)
	}
	return ss, nil
}

// dateRange parses an inclusive date range into the half-open [from, to+1d)
// the clients take.
func dateRange(dateFrom, dateTo string) (time.Time, time.Time, error) {
	from, err := time.Parse(dateLayout, dateFrom)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("date_from must be YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, dateTo)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation("date_to must be YYYY-MM-DD")
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, apperr.Validation("date_to is before date_from")
	}
	return from, to.AddDate(0, 0, 1), nil
}

func contains(list []models.Provider, p models.Provider) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}
