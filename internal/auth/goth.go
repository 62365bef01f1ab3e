// Package auth signs users in with Google and connects their Google and
// Slack accounts, storing the provider tokens encrypted.
package auth

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/hikitugu/handover/internal/config"
	"github.com/hikitugu/handover/internal/models"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"github.com/markbates/goth/providers/slack"
)

// GoogleScopes lets the service read the user's calendar and spreadsheets.
var GoogleScopes = []string{
	"email",
	"profile",
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/spreadsheets.readonly",
	"https://www.googleapis.com/auth/drive.metadata.readonly",
}

// SlackScopes lets the service list channels and read their history.
var SlackScopes = []string{
	"channels:read",
	"channels:history",
	"groups:read",
	"groups:history",
	"users:read",
}

// InitProviders initializes Goth OAuth providers and returns the names of
// the providers that were registered.
func InitProviders(cfg *config.Config, logger *slog.Logger) []models.Provider {
	// Gothic uses its own gorilla/sessions store separate from gin-contrib/sessions.
	// The default has Secure=true which breaks localhost (plain HTTP).
	gothStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	gothStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = gothStore

	var (
		providers  []goth.Provider
		registered []models.Provider
	)

	if cfg.GoogleClientID == "" {
		logger.Warn("GOOGLE_CLIENT_ID not set. Sign-in and calendar/sheets access will not work until credentials are configured.")
	} else {
		g := google.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, GoogleScopes...)
		// consent on every connect so Google returns a refresh token
		g.SetPrompt("consent")
		providers = append(providers, g)
		registered = append(registered, models.ProviderGoogle)
	}

	if cfg.SlackClientID == "" {
		logger.Warn("SLACK_CLIENT_ID not set. Slack channels cannot be connected.")
	} else {
		providers = append(providers, slack.New(cfg.SlackClientID, cfg.SlackClientSecret, cfg.SlackCallbackURL, SlackScopes...))
		registered = append(registered, models.ProviderSlack)
	}

	if len(providers) > 0 {
		goth.UseProviders(providers...)
	}
	logger.Info("Goth providers initialized", "providers", registered)
	return registered
}
