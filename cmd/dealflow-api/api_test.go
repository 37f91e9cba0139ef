package main

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukex/dealflow/pkg/cmd"
	"github.com/dukex/dealflow/pkg/models"
	"github.com/dukex/dealflow/pkg/persistence/file"
	"github.com/dukex/dealflow/pkg/testutil"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T, tempDir string) *fiber.App {
	t.Helper()

	persistence := file.NewPersistence(tempDir)

	eventBus := cmd.NewEventBus("gochannel", serviceName, slog.Default())
	t.Cleanup(func() { _ = eventBus.Close() })

	app := NewAPI(
		slog.Default(),
		persistence,
		eventBus,
	)

	return app.App()
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Dealflow API", string(body))
}

func TestAPI_HealthCheck(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_CORS_Headers(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	req := httptest.NewRequest(http.MethodOptions, "/deals", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAPI_Integration_DealLifecycle(t *testing.T) {
	tempDir := t.TempDir()
	persistence := file.NewPersistence(tempDir)
	require.NoError(t, persistence.PipelineRepository().SavePipeline(t.Context(), testutil.CreateTestPipeline()))

	app := setupTestApp(t, tempDir)

	payload, err := json.Marshal(map[string]any{
		"title":       "Globex expansion",
		"value":       12000,
		"stage":       "Lead",
		"account_id":  "account-1",
		"pipeline_id": "sales",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/deals", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Deal

	err = json.NewDecoder(resp.Body).Decode(&created)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	req = httptest.NewRequest(http.MethodPost, "/deals/"+created.ID+"/stage", bytes.NewBufferString(`{"stage":"Qualified"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stored, err := persistence.DealRepository().GetByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Qualified", stored.Stage)

	req = httptest.NewRequest(http.MethodGet, "/deals?account_id=account-1&pipeline_id=sales", nil)
	req.Header.Set("Accept", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var listed struct {
		Deals []models.Deal `json:"deals"`
	}

	err = json.NewDecoder(resp.Body).Decode(&listed)
	require.NoError(t, err)
	require.Len(t, listed.Deals, 1)
	assert.Equal(t, created.ID, listed.Deals[0].ID)
}

func TestAPI_GetDeal_NotFound(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/deals/non-existent-deal", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
