// Package documents serves the document generation API.
package documents

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/store"
)

// Service is the part of generation.Service the handlers use
type Service interface {
	CreateAndStart(ctx context.Context, userID uuid.UUID, req generation.GenerateRequest) (*generation.GenerationStarted, error)
	ProposeStructure(ctx context.Context, userID uuid.UUID, req generation.ProposeRequest) (*generation.ProposalResult, error)
	ApproveProposal(ctx context.Context, userID, documentID uuid.UUID, req generation.ApproveRequest) (*generation.GenerationStarted, error)
	GetJobStatus(ctx context.Context, userID, jobID uuid.UUID) (*generation.JobStatus, error)
	GetDocument(ctx context.Context, userID, documentID uuid.UUID) (*models.Document, error)
	ListDocuments(ctx context.Context, userID uuid.UUID, q generation.ListQuery) (*generation.DocumentList, error)
	UpdateDocument(ctx context.Context, userID, documentID uuid.UUID, u store.DocumentUpdate) (*models.Document, error)
	DeleteDocument(ctx context.Context, userID, documentID uuid.UUID) error
	UpdateSection(ctx context.Context, userID, documentID, sectionID uuid.UUID, u store.SectionUpdate) (*models.DocumentSection, error)
	ShareDocument(ctx context.Context, userID, documentID uuid.UUID) (string, error)
	UnshareDocument(ctx context.Context, userID, documentID uuid.UUID) error
	GetSharedDocument(ctx context.Context, token string) (*generation.SharedDocument, error)
}

// ShareResponse is returned when a share link is created
type ShareResponse struct {
	ShareURL   string `json:"share_url"`
	ShareToken string `json:"share_token"`
}

// UpdateSectionRequest is the body of a section edit. Omitted fields are kept.
type UpdateSectionRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

// Handler serves /api/documents
type Handler struct {
	service   Service
	shareBase string
	logger    *slog.Logger
}

// NewHandler creates a handler. Share links point at frontendURL.
func NewHandler(service Service, frontendURL string, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		shareBase: strings.TrimRight(frontendURL, "/") + "/shared/",
		logger:    logger.With("component", "documents_api"),
	}
}

// Register mounts the routes on rg, which must already require auth
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/generate", h.Generate)
	rg.POST("/propose", h.Propose)
	rg.GET("/jobs/:job_id", h.JobStatus)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/approve-proposal", h.ApproveProposal)
	rg.PUT("/:id/sections/:section_id", h.UpdateSection)
	rg.POST("/:id/share", h.Share)
	rg.DELETE("/:id/share", h.Unshare)
}

// Generate starts template-based generation and answers 202 with the job id
func (h *Handler) Generate(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	var req generation.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	started, err := h.service.CreateAndStart(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, started)
}

// Propose returns an AI-proposed outline for a new draft document
func (h *Handler) Propose(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	var req generation.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.service.ProposeStructure(c.Request.Context(), userID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ApproveProposal approves the proposal and starts generation
func (h *Handler) ApproveProposal(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req generation.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ProposalID == uuid.Nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposal_id is required"})
		return
	}

	started, err := h.service.ApproveProposal(c.Request.Context(), userID, documentID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, started)
}

// JobStatus returns the current state of a generation job
func (h *Handler) JobStatus(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	jobID, ok := uuidParam(c, "job_id")
	if !ok {
		return
	}

	status, err := h.service.GetJobStatus(c.Request.Context(), userID, jobID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// List returns a page of the user's documents, newest first
func (h *Handler) List(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	list, err := h.service.ListDocuments(c.Request.Context(), userID, generation.ListQuery{
		Status: c.Query("status"),
		Search: c.Query("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns a document with its sections
func (h *Handler) Get(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.service.GetDocument(c.Request.Context(), userID, documentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Update edits the document title or target user
func (h *Handler) Update(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req store.DocumentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	doc, err := h.service.UpdateDocument(c.Request.Context(), userID, documentID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Share turns on the public read-only link
func (h *Handler) Share(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	token, err := h.service.ShareDocument(c.Request.Context(), userID, documentID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ShareResponse{ShareURL: h.shareBase + token, ShareToken: token})
}

// Unshare revokes the public link
func (h *Handler) Unshare(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.UnshareDocument(c.Request.Context(), userID, documentID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Shared serves a shared document to anyone holding its token. It is
// mounted outside the authenticated group.
func (h *Handler) Shared(c *gin.Context) {
	doc, err := h.service.GetSharedDocument(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Delete removes a document and everything generated for it
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteDocument(c.Request.Context(), userID, documentID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateSection applies a manual edit to one section
func (h *Handler) UpdateSection(c *gin.Context) {
	userID, ok := h.user(c)
	if !ok {
		return
	}
	documentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	sectionID, ok := uuidParam(c, "section_id")
	if !ok {
		return
	}
	var req UpdateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title == nil && req.Content == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	section, err := h.service.UpdateSection(c.Request.Context(), userID, documentID, sectionID, store.SectionUpdate{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, section)
}

func (h *Handler) user(c *gin.Context) (uuid.UUID, bool) {
	id, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	}
	return id, ok
}

// fail maps err to a status code. Internal errors are logged and answered
// with a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if apperr.KindOf(err) == apperr.KindInternal || status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "kind", apperr.KindOf(err), "error", err)
	}
	if apperr.KindOf(err) == apperr.KindInternal {
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}
