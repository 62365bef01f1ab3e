package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreateAndStart(ctx context.Context, userID uuid.UUID, req generation.GenerateRequest) (*generation.GenerationStarted, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.GenerationStarted), args.Error(1)
}

func (m *MockService) ProposeStructure(ctx context.Context, userID uuid.UUID, req generation.ProposeRequest) (*generation.ProposalResult, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.ProposalResult), args.Error(1)
}

func (m *MockService) ApproveProposal(ctx context.Context, userID, documentID uuid.UUID, req generation.ApproveRequest) (*generation.GenerationStarted, error) {
	args := m.Called(ctx, userID, documentID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.GenerationStarted), args.Error(1)
}

func (m *MockService) GetJobStatus(ctx context.Context, userID, jobID uuid.UUID) (*generation.JobStatus, error) {
	args := m.Called(ctx, userID, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.JobStatus), args.Error(1)
}

func (m *MockService) GetDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Document, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockService) ListDocuments(ctx context.Context, userID uuid.UUID, q generation.ListQuery) (*generation.DocumentList, error) {
	args := m.Called(ctx, userID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.DocumentList), args.Error(1)
}

func (m *MockService) UpdateDocument(ctx context.Context, userID, documentID uuid.UUID, u store.DocumentUpdate) (*models.Document, error) {
	args := m.Called(ctx, userID, documentID, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Document), args.Error(1)
}

func (m *MockService) ShareDocument(ctx context.Context, userID, documentID uuid.UUID) (string, error) {
	args := m.Called(ctx, userID, documentID)
	return args.String(0), args.Error(1)
}

func (m *MockService) UnshareDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	args := m.Called(ctx, userID, documentID)
	return args.Error(0)
}

func (m *MockService) GetSharedDocument(ctx context.Context, token string) (*generation.SharedDocument, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*generation.SharedDocument), args.Error(1)
}

func (m *MockService) DeleteDocument(ctx context.Context, userID, documentID uuid.UUID) error {
	args := m.Called(ctx, userID, documentID)
	return args.Error(0)
}

func (m *MockService) UpdateSection(ctx context.Context, userID, documentID, sectionID uuid.UUID, u store.SectionUpdate) (*models.DocumentSection, error) {
	args := m.Called(ctx, userID, documentID, sectionID, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DocumentSection), args.Error(1)
}

var userID = uuid.MustParse("6f1c2a3e-0000-4000-8000-000000000001")

func setupRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	rg := router.Group("/api/documents", func(c *gin.Context) {
		auth.SetUserID(c, userID)
	})
	h := NewHandler(svc, "https://handover.example.com/", slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Register(rg)
	router.GET("/shared/:token", h.Shared)
	return router
}

func serve(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerate_Accepted(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	templateID, docID, jobID := uuid.New(), uuid.New(), uuid.New()

	svc.On("CreateAndStart", mock.Anything, userID, mock.MatchedBy(func(req generation.GenerateRequest) bool {
		return req.Title == "Q2" && req.TemplateID == templateID && len(req.DataSources) == 1
	})).Return(&generation.GenerationStarted{DocumentID: docID, JobID: jobID, Status: models.JobStatusPending}, nil)

	w := serve(router, http.MethodPost, "/api/documents/generate", map[string]interface{}{
		"title":            "Q2",
		"template_id":      templateID,
		"date_range_start": "2026-04-01",
		"date_range_end":   "2026-04-30",
		"data_sources":     []string{"calendar"},
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"document_id":"`+docID.String()+`","job_id":"`+jobID.String()+`","status":"pending"}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		code    int
		message string
	}{
		{apperr.Validation("title is required"), http.StatusBadRequest, "title is required"},
		{apperr.NotFound("template x not found"), http.StatusNotFound, "template x not found"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range cases {
		svc := new(MockService)
		router := setupRouter(svc)
		svc.On("CreateAndStart", mock.Anything, userID, mock.Anything).Return(nil, tc.err)

		w := serve(router, http.MethodPost, "/api/documents/generate", map[string]string{"title": "x"})
		assert.Equal(t, tc.code, w.Code)
		assert.JSONEq(t, `{"error":"`+tc.message+`"}`, w.Body.String())
	}
}

func TestGenerate_InvalidBody(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/generate", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "CreateAndStart", mock.Anything, mock.Anything, mock.Anything)
}

func TestPropose(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	result := &generation.ProposalResult{
		DocumentID:        uuid.New(),
		ProposalID:        uuid.New(),
		ProposedStructure: []models.ProposedSection{{Title: "Overview", EstimatedSources: models.SourceSet{}}},
	}
	svc.On("ProposeStructure", mock.Anything, userID, mock.Anything).Return(result, nil)

	w := serve(router, http.MethodPost, "/api/documents/propose", map[string]string{"title": "Q2"})
	require.Equal(t, http.StatusOK, w.Code)

	var got generation.ProposalResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, result.ProposalID, got.ProposalID)
	assert.Equal(t, "Overview", got.ProposedStructure[0].Title)
}

func TestApproveProposal(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	docID, proposalID := uuid.New(), uuid.New()

	svc.On("ApproveProposal", mock.Anything, userID, docID, mock.MatchedBy(func(req generation.ApproveRequest) bool {
		return req.ProposalID == proposalID && req.UserFeedback == "ok"
	})).Return(&generation.GenerationStarted{DocumentID: docID, JobID: uuid.New(), Status: models.JobStatusPending}, nil)

	w := serve(router, http.MethodPost, "/api/documents/"+docID.String()+"/approve-proposal", map[string]interface{}{
		"proposal_id":   proposalID,
		"user_feedback": "ok",
	})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = serve(router, http.MethodPost, "/api/documents/"+docID.String()+"/approve-proposal", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodPost, "/api/documents/not-a-uuid/approve-proposal", map[string]interface{}{"proposal_id": proposalID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "ApproveProposal", 1)
}

func TestJobStatus(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	jobID := uuid.New()

	svc.On("GetJobStatus", mock.Anything, userID, jobID).
		Return(&generation.JobStatus{ID: jobID, Status: models.JobStatusProcessing, Progress: 40, CurrentStep: "fetching source data"}, nil)
	svc.On("GetJobStatus", mock.Anything, userID, mock.Anything).Return(nil, apperr.NotFound("job not found"))

	w := serve(router, http.MethodGet, "/api/documents/jobs/"+jobID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"progress":40`)
	assert.Contains(t, w.Body.String(), `"current_step":"fetching source data"`)

	w = serve(router, http.MethodGet, "/api/documents/jobs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListPassesPagination(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	svc.On("ListDocuments", mock.Anything, userID, generation.ListQuery{Status: "completed", Search: "q2 payments", Limit: 10, Offset: 20}).
		Return(&generation.DocumentList{Documents: []models.Document{}, Total: 0, Limit: 10, Offset: 20}, nil)

	w := serve(router, http.MethodGet, "/api/documents?status=completed&q=q2+payments&limit=10&offset=20", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":[],"total":0,"limit":10,"offset":20}`, w.Body.String())
	svc.AssertExpectations(t)
}

func TestGetAndDelete(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	docID := uuid.New()
	doc := &models.Document{Title: "Q2"}
	doc.ID = docID

	svc.On("GetDocument", mock.Anything, userID, docID).Return(doc, nil)
	svc.On("DeleteDocument", mock.Anything, userID, docID).Return(nil)

	w := serve(router, http.MethodGet, "/api/documents/"+docID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Q2"`)

	w = serve(router, http.MethodDelete, "/api/documents/"+docID.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestUpdateSection(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	docID, sectionID := uuid.New(), uuid.New()
	content := "edited"

	svc.On("UpdateSection", mock.Anything, userID, docID, sectionID, mock.MatchedBy(func(u store.SectionUpdate) bool {
		return u.Title == nil && u.Content != nil && *u.Content == content
	})).Return(&models.DocumentSection{Content: content}, nil)

	path := "/api/documents/" + docID.String() + "/sections/" + sectionID.String()
	w := serve(router, http.MethodPut, path, map[string]string{"content": content})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(router, http.MethodPut, path, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNumberOfCalls(t, "UpdateSection", 1)
}

func TestRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(new(MockService), "", slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router.Group("/api/documents"))

	w := serve(router, http.MethodGet, "/api/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpdateDocument(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	docID := uuid.New()
	doc := &models.Document{Title: "Renamed"}
	doc.ID = docID

	svc.On("UpdateDocument", mock.Anything, userID, docID, mock.MatchedBy(func(u store.DocumentUpdate) bool {
		return u.Title != nil && *u.Title == "Renamed" && u.TargetUserEmail == nil
	})).Return(doc, nil)
	svc.On("UpdateDocument", mock.Anything, userID, docID, mock.Anything).Return(nil, apperr.Validation("nothing to update"))

	w := serve(router, http.MethodPut, "/api/documents/"+docID.String(), map[string]string{"title": "Renamed"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Renamed"`)

	w = serve(router, http.MethodPut, "/api/documents/"+docID.String(), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"nothing to update"}`, w.Body.String())
}

func TestShareAndUnshare(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	docID := uuid.New()

	svc.On("ShareDocument", mock.Anything, userID, docID).Return("tok123", nil)
	svc.On("UnshareDocument", mock.Anything, userID, docID).Return(nil)

	w := serve(router, http.MethodPost, "/api/documents/"+docID.String()+"/share", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"share_url":"https://handover.example.com/shared/tok123","share_token":"tok123"}`, w.Body.String())

	w = serve(router, http.MethodDelete, "/api/documents/"+docID.String()+"/share", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestSharedIsPublic(t *testing.T) {
	svc := new(MockService)
	router := setupRouter(svc)
	docID := uuid.New()

	svc.On("GetSharedDocument", mock.Anything, "tok123").Return(&generation.SharedDocument{
		ID:       docID,
		Title:    "Q2",
		Status:   models.DocumentStatusCompleted,
		Sections: []generation.SharedSection{{SectionOrder: 1, Title: "Overview", Content: "text"}},
	}, nil)
	svc.On("GetSharedDocument", mock.Anything, mock.Anything).Return(nil, apperr.NotFound("shared document not found"))

	w := serve(router, http.MethodGet, "/shared/tok123", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Overview"`)
	assert.NotContains(t, w.Body.String(), "created_by")

	w = serve(router, http.MethodGet, "/shared/revoked", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
