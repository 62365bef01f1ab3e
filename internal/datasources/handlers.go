package datasources

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/aggregator"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/generation"
)

// StatusHandler returns the connection state of every provider
func StatusHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		status, err := svc.Status(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"providers": status})
	}
}

// ChannelsHandler lists the user's slack channels
func ChannelsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		channels, err := svc.Channels(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"channels": channels})
	}
}

// SpreadsheetsHandler lists the user's spreadsheets
func SpreadsheetsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		files, err := svc.Spreadsheets(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"spreadsheets": files})
	}
}

// CalendarEventsHandler returns the user's events for ?date_from&date_to,
// optionally narrowed by ?target_email
func CalendarEventsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		events, err := svc.CalendarEvents(c.Request.Context(), userID, c.Query("date_from"), c.Query("date_to"), c.Query("target_email"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events, "total_count": len(events)})
	}
}

// SlackMessagesHandler returns one channel's messages for ?channel_id&date_from&date_to
func SlackMessagesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		msgs, err := svc.SlackMessages(c.Request.Context(), userID, c.Query("channel_id"), c.Query("date_from"), c.Query("date_to"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs, "total_count": len(msgs)})
	}
}

// SpreadsheetHandler returns one spreadsheet, optionally a single ?sheet_name tab
func SpreadsheetHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		ss, err := svc.Spreadsheet(c.Request.Context(), userID, c.Param("id"), c.Query("sheet_name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, ss)
	}
}

// Previewer fetches and aggregates a source selection without creating a document
type Previewer interface {
	PreviewSources(ctx context.Context, userID uuid.UUID, req generation.PreviewRequest) (aggregator.Result, error)
}

// PreviewHandler answers with the aggregated data a document with this
// selection would be generated from
func PreviewHandler(p Previewer) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := auth.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		var req generation.PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		result, err := p.PreviewSources(c.Request.Context(), userID, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func respondError(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		slog.Error("Data source request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}
