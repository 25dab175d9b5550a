package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panelcatalog/catalog"
	"panelcatalog/classification"
	"panelcatalog/database"
	"panelcatalog/pipeline"
	"panelcatalog/quality"
	"panelcatalog/search"
)

const testRules = `
domains:
  - name: panneaux
    stages:
      - name: famille
        fallback: panneaux-divers
        rules:
          - target: panneaux-hydrofuges
            priority: 10
            keywords: ["hydrofuge"]
`

func newTestServer(t *testing.T) (*Server, *database.CatalogDB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "catalog.db"), database.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engines, err := classification.ParseRules([]byte(testRules))
	require.NoError(t, err)

	pl, err := pipeline.New(db, engines, pipeline.Config{
		DefaultDomain: "panneaux",
		Reindex:       search.BatchOptions{PageSize: 100, Workers: 2},
	})
	require.NoError(t, err)

	_, err = db.CreateCatalogue(context.Background(), "unilin", "Unilin")
	require.NoError(t, err)

	return New(pl, quality.NewAnalyzer(db)), db
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// waitForPass polls the pass endpoint until the task leaves "running".
func waitForPass(t *testing.T, srv *Server, id string) PassTask {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp := doJSON(t, srv, http.MethodGet, "/api/passes/"+id, nil)
		require.Equal(t, http.StatusOK, resp.Code)

		var task PassTask
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &task))
		if task.Status != "running" {
			return task
		}
		require.False(t, time.Now().After(deadline), "pass did not finish in time")
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStartPass_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	// Missing catalogue slug.
	w := doJSON(t, srv, http.MethodPost, "/api/passes", map[string]interface{}{
		"selector": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Broken body.
	req := httptest.NewRequest(http.MethodPost, "/api/passes", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartPass_RunsToCompletion(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	cat, err := db.GetCatalogueBySlug(ctx, "unilin")
	require.NoError(t, err)
	p := catalog.Panel{CatalogueID: cat.ID, Reference: "105083-x", Name: "Panneau hydrofuge", Active: true}
	require.NoError(t, db.InsertPanel(ctx, &p))

	w := doJSON(t, srv, http.MethodPost, "/api/passes", map[string]interface{}{
		"selector": map[string]string{"catalogue_slug": "unilin"},
		"mode":     "apply",
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var started struct {
		PassID string `json:"pass_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	task := waitForPass(t, srv, started.PassID)
	require.Equal(t, "completed", task.Status, task.Error)
	require.NotNil(t, task.Report)
	assert.Len(t, task.Report.Reclassifications, 1)

	got, err := db.GetPanel(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CategoryID, "panel uncategorized after applied pass")
}

func TestStartPass_DefaultsToDryRun(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	cat, err := db.GetCatalogueBySlug(ctx, "unilin")
	require.NoError(t, err)
	p := catalog.Panel{CatalogueID: cat.ID, Reference: "105083-y", Name: "Panneau hydrofuge", Active: true}
	require.NoError(t, db.InsertPanel(ctx, &p))

	w := doJSON(t, srv, http.MethodPost, "/api/passes", map[string]interface{}{
		"selector": map[string]string{"catalogue_slug": "unilin"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var started struct {
		PassID string `json:"pass_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))

	task := waitForPass(t, srv, started.PassID)
	assert.Equal(t, pipeline.ModeDryRun, task.Mode)

	// Dry run: panel untouched.
	got, err := db.GetPanel(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CategoryID, "dry-run pass categorized the panel")
}

func TestGetPass_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/api/passes/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngestEndpoint(t *testing.T) {
	srv, db := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/ingest", []map[string]interface{}{
		{"catalogue_slug": "unilin", "reference": "105083-x", "name": "Panneau hydrofuge"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Inserted int `json:"inserted"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Inserted)

	cat, err := db.GetCatalogueBySlug(context.Background(), "unilin")
	require.NoError(t, err)
	panels, err := db.ListPanelsByCatalogue(context.Background(), cat.ID)
	require.NoError(t, err)
	assert.Len(t, panels, 1)
}

func TestQualityEndpoint(t *testing.T) {
	srv, db := newTestServer(t)
	ctx := context.Background()

	cat, err := db.GetCatalogueBySlug(ctx, "unilin")
	require.NoError(t, err)
	// Uncategorized active panel: one finding.
	p := catalog.Panel{CatalogueID: cat.ID, Reference: "105083-x", Name: "Panneau", Active: true}
	require.NoError(t, db.InsertPanel(ctx, &p))

	w := doJSON(t, srv, http.MethodGet, "/api/quality/unilin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var report quality.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.False(t, report.Clean(), "expected findings for the uncategorized panel")

	w = doJSON(t, srv, http.MethodGet, "/api/quality/absent", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
