package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hikitugu/handover/internal/ai"
	"github.com/hikitugu/handover/internal/auth"
	"github.com/hikitugu/handover/internal/config"
	"github.com/hikitugu/handover/internal/database"
	"github.com/hikitugu/handover/internal/datasources"
	"github.com/hikitugu/handover/internal/generation"
	"github.com/hikitugu/handover/internal/outline"
	"github.com/hikitugu/handover/internal/sources"
	"github.com/hikitugu/handover/internal/store/storetest"
	"github.com/hikitugu/handover/internal/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := storetest.New(t)
	tokens := generation.NewTokenResolver(st, nil)
	collector := generation.NewCollector(sources.Clients{}, tokens)

	return newRouter(cfg, routerDeps{
		db:          st.DB(),
		auth:        auth.NewHandlers(st, nil, cfg.FrontendURL, nil, logger),
		service:     generation.NewService(st, nil, collector, ai.NewStub(outline.Builtin()), logger),
		templates:   templates.NewService(st),
		dataSources: datasources.NewService(tokens, st, sources.Clients{}, nil),
		logger:      logger,
	})
}

func testConfig() *config.Config {
	return &config.Config{
		Env:           "development",
		SessionSecret: "test-secret",
		FrontendURL:   "http://localhost:3000",
		CORSOrigins:   []string{"http://localhost:3000"},
		DevSeed:       true,
	}
}

func TestRouterProbes(t *testing.T) {
	r := testRouter(t, testConfig())

	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouterRequiresSession(t *testing.T) {
	r := testRouter(t, testConfig())

	for _, path := range []string{
		"/api/documents",
		"/api/data-sources",
		"/api/templates",
		"/api/data-sources/calendar/events",
		"/api/documents/jobs/" + "00000000-0000-0000-0000-000000000000",
		"/auth/me",
		"/auth/status",
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouterDevLoginSession(t *testing.T) {
	r := testRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/dev-login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), database.DevUserEmail)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"documents":[],"total":0,"limit":20,"offset":0}`, w.Body.String())
}

func TestRouterDevLoginDisabledInProduction(t *testing.T) {
	cfg := testConfig()
	cfg.Env = "production"
	r := testRouter(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/dev-login", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterCORSPreflight(t *testing.T) {
	r := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/documents", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouterSharedLinkIsPublic(t *testing.T) {
	r := testRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shared/unknown-token", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"shared document not found"}`, w.Body.String())
}

func TestRouterDevLoginSeesTemplatesAndStatus(t *testing.T) {
	r := testRouter(t, testConfig())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/dev-login", nil))
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	w = get("/api/templates")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"templates":[],"total":0,"limit":20,"offset":0}`, w.Body.String())

	w = get("/auth/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), database.DevUserEmail)

	w = get("/auth/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"google":{"configured":false,"connected":false},"slack":{"configured":false,"connected":false}}`, w.Body.String())
}
