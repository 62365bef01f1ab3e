package generation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/ai"
	"github.com/hikitugu/handover/internal/crypto"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/outline"
	"github.com/hikitugu/handover/internal/planner"
	"github.com/hikitugu/handover/internal/sources"
	"github.com/hikitugu/handover/internal/store"
	"github.com/hikitugu/handover/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEncryptor(t *testing.T) *crypto.TokenEncryptor {
	t.Helper()
	key := make([]byte, crypto.KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	enc, err := crypto.NewTokenEncryptor(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	return enc
}

type fakeCalendar struct {
	events   []sources.Event
	err      error
	from, to time.Time
	target   string
	token    string
}

func (f *fakeCalendar) Events(_ context.Context, token string, from, to time.Time, target string) ([]sources.Event, error) {
	f.token, f.from, f.to, f.target = token, from, to, target
	return f.events, f.err
}

type fakeChat struct {
	byChannel map[string][]sources.Message
	calls     []string
}

func (f *fakeChat) Messages(_ context.Context, _ string, channelID string, _, _ time.Time) ([]sources.Message, error) {
	f.calls = append(f.calls, channelID)
	return f.byChannel[channelID], nil
}

func (f *fakeChat) Channels(context.Context, string) ([]sources.Channel, error) {
	return nil, nil
}

type fakeSheets struct {
	sheets map[string]*sources.Spreadsheet
}

func (f *fakeSheets) Spreadsheet(_ context.Context, _ string, id, _ string) (*sources.Spreadsheet, error) {
	ss, ok := f.sheets[id]
	if !ok {
		return nil, errors.New("spreadsheet not found")
	}
	return ss, nil
}

func (f *fakeSheets) List(context.Context, string) ([]sources.SpreadsheetFile, error) {
	return nil, nil
}

// fakeSynth records requests; hook, when set, runs before each section is written.
type fakeSynth struct {
	requests []ai.SectionRequest
	hook     func(call int) error
	proposal []models.ProposedSection
}

func (f *fakeSynth) GenerateSectionContent(_ context.Context, req ai.SectionRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.hook != nil {
		if err := f.hook(len(f.requests)); err != nil {
			return "", err
		}
	}
	return "content for " + req.Title, nil
}

func (f *fakeSynth) ProposeStructure(context.Context, ai.DataSummary) ([]models.ProposedSection, error) {
	if f.proposal != nil {
		return f.proposal, nil
	}
	return outline.Builtin().Proposal(), nil
}

type snapshot struct {
	status   string
	progress int
	step     string
}

type recordingNotifier struct {
	mu        sync.Mutex
	snapshots []snapshot
}

func (n *recordingNotifier) PublishJob(_ context.Context, job *models.GenerationJob) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshots = append(n.snapshots, snapshot{status: job.Status, progress: job.Progress, step: job.CurrentStep})
	return nil
}

type fakeLauncher struct {
	err      error
	launched []uuid.UUID
}

func (f *fakeLauncher) Launch(_ context.Context, _, jobID uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.launched = append(f.launched, jobID)
	return nil
}

type fixture struct {
	t        *testing.T
	store    *store.Store
	enc      *crypto.TokenEncryptor
	calendar *fakeCalendar
	chat     *fakeChat
	sheets   *fakeSheets
	synth    *fakeSynth
	notifier *recordingNotifier
	launcher *fakeLauncher
	user     *models.User
	metadata models.DocumentMetadata
	orch     *Orchestrator
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storetest.New(t)
	f := &fixture{
		t:        t,
		store:    st,
		enc:      newEncryptor(t),
		calendar: &fakeCalendar{events: []sources.Event{{ID: "e1", Summary: "Standup"}}},
		chat:     &fakeChat{byChannel: map[string][]sources.Message{}},
		sheets:   &fakeSheets{sheets: map[string]*sources.Spreadsheet{}},
		synth:    &fakeSynth{},
		notifier: &recordingNotifier{},
		launcher: &fakeLauncher{},
	}

	user, err := st.UpsertUser(context.Background(), "alice@example.com", "Alice")
	require.NoError(t, err)
	f.user = user

	collector := NewCollector(
		sources.Clients{Calendar: f.calendar, Chat: f.chat, Sheets: f.sheets},
		NewTokenResolver(st, f.enc),
	)
	f.orch = NewOrchestrator(Deps{
		Store:       st,
		Planner:     planner.New(outline.Builtin()),
		Collector:   collector,
		Synthesizer: f.synth,
		Notifier:    f.notifier,
		Logger:      discardLogger(),
	})
	f.service = NewService(st, f.launcher, collector, f.synth, discardLogger())
	return f
}

func (f *fixture) connect(provider models.Provider) {
	f.t.Helper()
	ciphertext, err := f.enc.Encrypt(string(provider) + "-access-token")
	require.NoError(f.t, err)
	require.NoError(f.t, f.store.UpsertToken(context.Background(), &models.OAuthToken{
		UserID:               f.user.ID,
		Provider:             provider,
		EncryptedAccessToken: ciphertext,
	}))
}

func (f *fixture) template(titles ...string) *models.Template {
	f.t.Helper()
	tmpl := &models.Template{Name: "tmpl", Status: models.TemplateStatusReady}
	for i, title := range titles {
		tmpl.ParsedStructure.Sections = append(tmpl.ParsedStructure.Sections, models.TemplateSection{Order: 10 * (i + 1), Title: title, Level: 1})
	}
	require.NoError(f.t, f.store.CreateTemplate(context.Background(), tmpl))
	return tmpl
}

// document creates a document and a pending job for it.
func (f *fixture) document(mode string, tmpl *models.Template, srcs ...models.Source) (*models.Document, *models.GenerationJob) {
	f.t.Helper()
	ctx := context.Background()
	doc := &models.Document{
		CreatedBy:      f.user.ID,
		Title:          "Handover",
		GenerationMode: mode,
		DateRangeStart: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		DateRangeEnd:   time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC),
		DataSources:    models.SourceSet(srcs),
		Status:         models.DocumentStatusGenerating,
		Metadata:       f.metadata,
	}
	if tmpl != nil {
		doc.TemplateID = &tmpl.ID
	}
	require.NoError(f.t, f.store.CreateDocument(ctx, doc))

	job := &models.GenerationJob{DocumentID: doc.ID, Status: models.JobStatusPending}
	require.NoError(f.t, f.store.CreateJob(ctx, job))
	return doc, job
}

func (f *fixture) state(doc *models.Document, job *models.GenerationJob) (*models.Document, *models.GenerationJob, []models.DocumentSection) {
	f.t.Helper()
	ctx := context.Background()
	d, err := f.store.GetDocument(ctx, doc.ID)
	require.NoError(f.t, err)
	j, err := f.store.GetJob(ctx, job.ID)
	require.NoError(f.t, err)
	s, err := f.store.ListSections(ctx, doc.ID)
	require.NoError(f.t, err)
	return d, j, s
}
