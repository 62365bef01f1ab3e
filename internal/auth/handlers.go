package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/apperr"
	"github.com/hikitugu/handover/internal/models"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

// Session keys
const (
	sessionUserID    = "user_id"
	sessionUserEmail = "user_email"
	sessionUserName  = "user_name"
)

// UserStore persists users and their provider tokens
type UserStore interface {
	UpsertUser(ctx context.Context, email, name string) (*models.User, error)
	UpsertToken(ctx context.Context, tok *models.OAuthToken) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ConnectedProviders(ctx context.Context, userID uuid.UUID) ([]models.Provider, error)
}

// Encrypter seals a token before it is stored
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// Handlers serves the OAuth connect flow
type Handlers struct {
	users       UserStore
	enc         Encrypter
	frontendURL string
	configured  []models.Provider
	logger      *slog.Logger

	begin    func(http.ResponseWriter, *http.Request)
	complete func(http.ResponseWriter, *http.Request) (goth.User, error)
}

// NewHandlers creates the auth handlers. enc may be nil when no encryption
// key is configured; connecting an account then fails. configured lists the
// providers with OAuth credentials.
func NewHandlers(users UserStore, enc Encrypter, frontendURL string, configured []models.Provider, logger *slog.Logger) *Handlers {
	return &Handlers{
		users:       users,
		enc:         enc,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		configured:  configured,
		logger:      logger.With("component", "auth"),
		begin:       gothic.BeginAuthHandler,
		complete:    gothic.CompleteUserAuth,
	}
}

// HandleLogin initiates the OAuth flow for the :provider route parameter
func (h *Handlers) HandleLogin(c *gin.Context) {
	if _, ok := providerParam(c); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}
	h.begin(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow. Google signs the user in (creating
// the account on first login); Slack is attached to the signed-in user.
// Either way the provider token is stored encrypted.
func (h *Handlers) HandleCallback(c *gin.Context) {
	provider, ok := providerParam(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown provider"})
		return
	}

	gothUser, err := h.complete(c.Writer, c.Request)
	if err != nil {
		h.logger.Warn("Auth error", "provider", provider, "error", err)
		h.redirect(c, "/login?error=auth_failed")
		return
	}

	ctx := c.Request.Context()
	session := sessions.Default(c)

	var userID uuid.UUID
	switch provider {
	case models.ProviderGoogle:
		if gothUser.Email == "" {
			h.logger.Warn("Google account returned no email")
			h.redirect(c, "/login?error=auth_failed")
			return
		}
		user, err := h.users.UpsertUser(ctx, gothUser.Email, gothUser.Name)
		if err != nil {
			h.logger.Error("Failed to upsert user", "error", err)
			h.redirect(c, "/login?error=auth_failed")
			return
		}
		userID = user.ID
		session.Set(sessionUserID, user.ID.String())
		session.Set(sessionUserEmail, user.Email)
		session.Set(sessionUserName, user.Name)

	case models.ProviderSlack:
		id, ok := sessionUser(session)
		if !ok {
			h.redirect(c, "/login?error=login_required")
			return
		}
		userID = id
	}

	if err := h.storeToken(ctx, userID, provider, gothUser); err != nil {
		h.logger.Error("Failed to store provider token", "provider", provider, "user_id", userID, "error", err)
		h.redirect(c, "/settings?error=connect_failed")
		return
	}

	if err := session.Save(); err != nil {
		h.logger.Error("Session save error", "error", err)
		h.redirect(c, "/login?error=session_failed")
		return
	}

	h.logger.Info("Provider connected", "provider", provider, "user_id", userID)
	h.redirect(c, "/")
}

// HandleDevLogin signs in as the seeded development user without OAuth.
// Only routed outside production.
func (h *Handlers) HandleDevLogin(email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.users.UpsertUser(c.Request.Context(), email, "Dev User")
		if err != nil {
			h.logger.Error("Dev login failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dev login failed"})
			return
		}

		session := sessions.Default(c)
		session.Set(sessionUserID, user.ID.String())
		session.Set(sessionUserEmail, user.Email)
		session.Set(sessionUserName, user.Name)
		if err := session.Save(); err != nil {
			h.logger.Error("Session save error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "session save failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "email": user.Email, "name": user.Name})
	}
}

// HandleMe returns the signed-in user. Routed behind RequireAuth.
func (h *Handlers) HandleMe(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			// the account was removed after the session was issued
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		h.logger.Error("Failed to load user", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"last_login_at": user.LastLoginAt,
	})
}

// HandleStatus reports per provider whether it is configured and connected
func (h *Handlers) HandleStatus(c *gin.Context) {
	userID, ok := UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	connected, err := h.users.ConnectedProviders(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list connected providers", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	out := gin.H{}
	for _, p := range []models.Provider{models.ProviderGoogle, models.ProviderSlack} {
		out[string(p)] = gin.H{
			"configured": hasProvider(h.configured, p),
			"connected":  hasProvider(connected, p),
		}
	}
	c.JSON(http.StatusOK, out)
}

// HandleLogout clears the session
func (h *Handlers) HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})

	if err := session.Save(); err != nil {
		h.logger.Warn("Session clear error", "error", err)
	}

	c.Status(http.StatusNoContent)
}

func (h *Handlers) storeToken(ctx context.Context, userID uuid.UUID, provider models.Provider, gu goth.User) error {
	if h.enc == nil {
		return errNoEncrypter
	}

	access, err := h.enc.Encrypt(gu.AccessToken)
	if err != nil {
		return err
	}
	tok := &models.OAuthToken{
		UserID:               userID,
		Provider:             provider,
		EncryptedAccessToken: access,
		Scopes:               scopesFor(provider),
	}
	if gu.RefreshToken != "" {
		if tok.EncryptedRefreshToken, err = h.enc.Encrypt(gu.RefreshToken); err != nil {
			return err
		}
	}
	if !gu.ExpiresAt.IsZero() {
		expires := gu.ExpiresAt.UTC()
		tok.TokenExpiresAt = &expires
	}
	if meta, err := json.Marshal(map[string]string{
		"provider_user_id": gu.UserID,
		"email":            gu.Email,
		"nickname":         gu.NickName,
	}); err == nil {
		tok.Metadata = meta
	}

	return h.users.UpsertToken(ctx, tok)
}

func (h *Handlers) redirect(c *gin.Context, path string) {
	c.Redirect(http.StatusFound, h.frontendURL+path)
}

// providerParam copies the :provider route parameter to the query string,
// where gothic looks for it.
func hasProvider(list []models.Provider, p models.Provider) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func providerParam(c *gin.Context) (models.Provider, bool) {
	p := models.Provider(c.Param("provider"))
	if p != models.ProviderGoogle && p != models.ProviderSlack {
		return "", false
	}
	q := c.Request.URL.Query()
	q.Set("provider", string(p))
	c.Request.URL.RawQuery = q.Encode()
	return p, true
}

func scopesFor(p models.Provider) []string {
	if p == models.ProviderSlack {
		return SlackScopes
	}
	return GoogleScopes
}
