package datasources

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens map[models.Provider]string

func (f fakeTokens) AccessToken(_ context.Context, _ uuid.UUID, p models.Provider) (string, error) {
	tok, ok := f[p]
	if !ok {
		return "", apperr.NotFound("no %s token", p)
	}
	return tok, nil
}

func (f fakeTokens) ConnectedProviders(context.Context, uuid.UUID) ([]models.Provider, error) {
	var out []models.Provider
	for p := range f {
		out = append(out, p)
	}
	return out, nil
}

type fakeCalendar struct {
	from, to time.Time
	target   string
}

func (f *fakeCalendar) Events(_ context.Context, _ string, from, to time.Time, target string) ([]sources.Event, error) {
	f.from, f.to, f.target = from, to, target
	return []sources.Event{{ID: "e1", Summary: "Standup"}}, nil
}

type fakeChat struct {
	token   string
	err     error
	channel string
}

func (f *fakeChat) Messages(_ context.Context, token, channelID string, _, _ time.Time) ([]sources.Message, error) {
	f.token, f.channel = token, channelID
	return nil, f.err
}

func (f *fakeChat) Channels(_ context.Context, token string) ([]sources.Channel, error) {
	f.token = token
	return []sources.Channel{{ID: "C1", Name: "general"}}, f.err
}

type fakeSheets struct{}

func (fakeSheets) Spreadsheet(_ context.Context, _, id, sheetName string) (*sources.Spreadsheet, error) {
	if id != "S1" {
		return nil, errors.New("googleapi: Error 404: Requested entity was not found")
	}
	return &sources.Spreadsheet{ID: id, Title: "Budget", Sheets: []sources.Sheet{{Name: sheetName}}}, nil
}

func (fakeSheets) List(context.Context, string) ([]sources.SpreadsheetFile, error) {
	return nil, nil
}

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	rg := r.Group("/api/data-sources", func(c *gin.Context) { auth.SetUserID(c, uuid.New()) })
	rg.GET("", StatusHandler(svc))
	rg.GET("/slack/channels", ChannelsHandler(svc))
	rg.GET("/spreadsheets", SpreadsheetsHandler(svc))
	rg.GET("/spreadsheets/:id", SpreadsheetHandler(svc))
	rg.GET("/calendar/events", CalendarEventsHandler(svc))
	rg.GET("/slack/messages", SlackMessagesHandler(svc))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestStatus(t *testing.T) {
	tokens := fakeTokens{models.ProviderGoogle: "ya29"}
	svc := NewService(tokens, tokens, sources.Clients{Chat: &fakeChat{}, Sheets: fakeSheets{}}, []models.Provider{models.ProviderGoogle, models.ProviderSlack})

	status, err := svc.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, ProviderStatus{
		Provider:   models.ProviderGoogle,
		Configured: true,
		Connected:  true,
		Sources:    models.SourceSet{models.SourceCalendar, models.SourceSpreadsheet},
	}, status[0])
	assert.True(t, status[1].Configured)
	assert.False(t, status[1].Connected)
	assert.Equal(t, models.SourceSet{models.SourceSlack}, status[1].Sources)

	w := get(newRouter(svc), "/api/data-sources")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"provider":"google"`)
}

func TestChannels(t *testing.T) {
	chat := &fakeChat{}
	tokens := fakeTokens{models.ProviderSlack: "xoxp-1"}
	r := newRouter(NewService(tokens, tokens, sources.Clients{Chat: chat, Sheets: fakeSheets{}}, nil))

	w := get(r, "/api/data-sources/slack/channels")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"channels":[{"id":"C1","name":"general","is_private":false,"num_members":0}]}`, w.Body.String())
	assert.Equal(t, "xoxp-1", chat.token)

	chat.err = errors.New("invalid_auth")
	w = get(r, "/api/data-sources/slack/channels")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_auth")
}

func TestSheetsWithoutToken(t *testing.T) {
	tokens := fakeTokens{}
	r := newRouter(NewService(tokens, tokens, sources.Clients{Sheets: fakeSheets{}}, nil))

	w := get(r, "/api/data-sources/spreadsheets")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = get(r, "/api/data-sources/slack/channels")
	assert.Equal(t, http.StatusInternalServerError, w.Code, "slack client not configured")
	assert.Contains(t, w.Body.String(), "not configured")
}

func TestSheetsListsEmpty(t *testing.T) {
	tokens := fakeTokens{models.ProviderGoogle: "ya29"}
	r := newRouter(NewService(tokens, tokens, sources.Clients{Sheets: fakeSheets{}}, nil))

	w := get(r, "/api/data-sources/spreadsheets")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"spreadsheets":[]}`, w.Body.String())
}

func TestCalendarEvents(t *testing.T) {
	cal := &fakeCalendar{}
	tokens := fakeTokens{models.ProviderGoogle: "ya29"}
	r := newRouter(NewService(tokens, tokens, sources.Clients{Calendar: cal}, nil))

	w := get(r, "/api/data-sources/calendar/events?date_from=2026-04-01&date_to=2026-04-30&target_email=bob@example.com")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_count":1`)
	assert.Equal(t, "2026-04-01", cal.from.Format(dateLayout))
	assert.Equal(t, "2026-05-01", cal.to.Format(dateLayout), "the last day is included")
	assert.Equal(t, "bob@example.com", cal.target)

	for _, q := range []string{"", "?date_from=2026-04-01", "?date_from=2026-04-30&date_to=2026-04-01"} {
		w = get(r, "/api/data-sources/calendar/events"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestSlackMessages(t *testing.T) {
	chat := &fakeChat{}
	tokens := fakeTokens{models.ProviderSlack: "xoxp-1"}
	r := newRouter(NewService(tokens, tokens, sources.Clients{Chat: chat}, nil))

	w := get(r, "/api/data-sources/slack/messages?channel_id=C1&date_from=2026-04-01&date_to=2026-04-30")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[],"total_count":0}`, w.Body.String())
	assert.Equal(t, "C1", chat.channel)
	assert.Equal(t, "xoxp-1", chat.token)

	w = get(r, "/api/data-sources/slack/messages?date_from=2026-04-01&date_to=2026-04-30")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "channel_id")

	chat.err = errors.New("channel_not_found")
	w = get(r, "/api/data-sources/slack/messages?channel_id=C9&date_from=2026-04-01&date_to=2026-04-30")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSpreadsheetByID(t *testing.T) {
	tokens := fakeTokens{models.ProviderGoogle: "ya29"}
	r := newRouter(NewService(tokens, tokens, sources.Clients{Sheets: fakeSheets{}}, nil))

	w := get(r, "/api/data-sources/spreadsheets/S1?sheet_name=Q2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Budget"`)
	assert.Contains(t, w.Body.String(), `"name":"Q2"`)

	w = get(r, "/api/data-sources/spreadsheets/missing")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

type fakePreviewer struct {
	req generation.PreviewRequest
	err error
}

func (f *fakePreviewer) PreviewSources(_ context.Context, _ uuid.UUID, req generation.PreviewRequest) (aggregator.Result, error) {
	f.req = req
	return aggregator.Aggregate([]sources.Event{{ID: "e1"}}, nil, nil), f.err
}

func TestPreview(t *testing.T) {
	p := &fakePreviewer{}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/data-sources/preview", func(c *gin.Context) { auth.SetUserID(c, uuid.New()) }, PreviewHandler(p))

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/data-sources/preview", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"date_range_start":"2026-04-01","date_range_end":"2026-04-30","data_sources":["calendar"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"calendar_events_count":1`)
	assert.Equal(t, []models.Source{models.SourceCalendar}, p.req.DataSources)

	p.err = apperr.Validation("data_sources must not be empty")
	w = post(`{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(`{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
