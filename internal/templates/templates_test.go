package templates

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hikitugu/handover/internal/models"
	"github.com/hikitugu/handover/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc := NewService(storetest.New(t))
	NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(router.Group("/api/templates"))
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

func create(t *testing.T, router *gin.Engine, name string) models.Template {
	t.Helper()
	w := serve(router, http.MethodPost, "/api/templates", CreateRequest{
		Name:     name,
		FileType: "docx",
		Sections: []SectionInput{
			{Title: " Overview ", Level: 1},
			{Title: "Contacts"},
			{Title: "Escalation", Level: 2},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var tmpl models.Template
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tmpl))
	return tmpl
}

func TestCreateAssignsOrder(t *testing.T) {
	router := setupRouter(t)
	tmpl := create(t, router, "Quarterly handover")

	assert.Equal(t, models.TemplateStatusReady, tmpl.Status)
	assert.Equal(t, []models.TemplateSection{
		{Order: 1, Title: "Overview", Level: 1},
		{Order: 2, Title: "Contacts", Level: 1},
		{Order: 3, Title: "Escalation", Level: 2},
	}, tmpl.ParsedStructure.Sections)
}

func TestCreateValidation(t *testing.T) {
	router := setupRouter(t)
	cases := map[string]CreateRequest{
		"blank name":    {Name: " ", Sections: []SectionInput{{Title: "A"}}},
		"no sections":   {Name: "n"},
		"blank section": {Name: "n", Sections: []SectionInput{{Title: "A"}, {Title: ""}}},
		"deep heading":  {Name: "n", Sections: []SectionInput{{Title: "A", Level: 7}}},
	}
	for name, req := range cases {
		w := serve(router, http.MethodPost, "/api/templates", req)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListGetPreviewDelete(t *testing.T) {
	router := setupRouter(t)
	tmpl := create(t, router, "Quarterly handover")
	create(t, router, "Offboarding")

	w := serve(router, http.MethodGet, "/api/templates?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list List
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, 1, list.Limit)
	assert.Len(t, list.Templates, 1)

	path := "/api/templates/" + tmpl.ID.String()
	w = serve(router, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Quarterly handover"`)

	w = serve(router, http.MethodGet, path+"/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview Preview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, tmpl.ID, preview.ID)
	require.Len(t, preview.PreviewSections, 3)
	assert.Equal(t, "Escalation", preview.PreviewSections[2].Title)

	w = serve(router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	for _, p := range []string{path, path + "/preview"} {
		w = serve(router, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, p)
	}
	w = serve(router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidID(t *testing.T) {
	router := setupRouter(t)

	w := serve(router, http.MethodGet, "/api/templates/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(router, http.MethodGet, "/api/templates/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
