package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churn-insight/dashboard/internal/app"
	"github.com/churn-insight/dashboard/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	sample, err := os.ReadFile(filepath.Join("..", "notebook", "testdata", "sample.ipynb"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EDA.ipynb"), sample, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.ipynb"), []byte("{not json"), 0o644))

	return &config.Config{
		Server:   config.ServerConfig{Port: 8501, BodyLimit: 1 << 20, Development: true},
		Features: config.FeaturesConfig{Inference: true, Notebooks: true},
		Model:    config.ModelConfig{Path: filepath.Join("..", "..", "models", "attrition_model.json")},
		Notebooks: config.NotebooksConfig{
			BaseDir:   dir,
			CodeStyle: "monokai",
			Entries: []config.NotebookEntry{
				{Label: "EDA", Slug: "eda", File: "EDA.ipynb"},
				{Label: "Preprocessing", Slug: "preprocessing", File: "preprocessing.ipynb"},
				{Label: "Broken", Slug: "broken", File: "broken.ipynb"},
			},
		},
		SQLite:    config.SQLiteConfig{Enabled: true, Path: filepath.Join(dir, "predictions.db")},
		RateLimit: config.RateLimitConfig{MaxRequestsPerMinute: 1000},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	d, err := app.New(ctx, cfg)
	if err != nil {
		cancel()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	s := NewServer(d, cfg)
	t.Cleanup(func() { _ = s.Shutdown() })
	t.Cleanup(cancel)
	return s
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := s.App.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func leaverForm() url.Values {
	return url.Values{
		"satisfaction_level":    {"0.1"},
		"last_evaluation":       {"0.9"},
		"number_project":        {"6"},
		"average_monthly_hours": {"290"},
		"time_spend_company":    {"5"},
		"work_accident":         {"0"},
		"promotion_last_5years": {"0"},
		"salary":                {"0"},
		"department":            {"sales"},
		"hours_level":           {"0.95"},
	}
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/predict", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", fiber.MIMEApplicationForm)
	return req
}

func TestHomePage(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	resp, body := do(t, s, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, body, "Project Predicting Who Stays")
	assert.Contains(t, body, `href="/notebooks/eda"`)
	assert.Contains(t, body, `href="/predict"`)
	assert.Contains(t, body, "(not available)")
}

func TestPredictPages(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	resp, body := do(t, s, httptest.NewRequest("GET", "/predict", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Employee Attrition Prediction")
	assert.NotContains(t, body, "Prediction Result:")

	resp, body = do(t, s, postForm(leaverForm()))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "likely to leave")
	assert.Contains(t, body, "Probability of leaving:")
	assert.Contains(t, body, "Waterfall Plot")
	assert.Contains(t, body, "<svg")

	invalid := leaverForm()
	invalid.Set("satisfaction_level", "1.5")
	resp, body = do(t, s, postForm(invalid))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "field-invalid")
	assert.NotContains(t, body, "Prediction Result:")

	missing := leaverForm()
	missing.Del("department")
	resp, body = do(t, s, postForm(missing))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "department is required")
	assert.NotContains(t, body, "Prediction Result:")

	unknown := leaverForm()
	unknown.Set("department", "legal")
	resp, body = do(t, s, postForm(unknown))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "Unknown department")
}

func TestPredictAPI(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	payload := `{"satisfaction_level":0.1,"last_evaluation":0.9,"number_project":6,` +
		`"average_monthly_hours":290,"time_spend_company":5,"department":"sales","hours_level":0.95}`
	req := httptest.NewRequest("POST", "/api/v1/predict", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, body := do(t, s, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	var got struct {
		Label        int       `json:"label"`
		LabelText    string    `json:"label_text"`
		Probability  *float64  `json:"probability"`
		Features     []float64 `json:"features"`
		Attributions []struct {
			Feature string  `json:"feature"`
			Value   float64 `json:"value"`
		} `json:"attributions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, 1, got.Label)
	assert.Equal(t, "likely to leave", got.LabelText)
	require.NotNil(t, got.Probability)
	assert.Greater(t, *got.Probability, 0.5)
	assert.Equal(t, []float64{0.1, 0.9, 6, 290, 5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0.95}, got.Features)
	assert.NotEmpty(t, got.Attributions)

	resp, body = do(t, s, httptest.NewRequest("GET", "/api/v1/predictions?limit=5", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"count":1`)

	resp, body = do(t, s, httptest.NewRequest("GET", "/api/v1/predictions/summary", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"likely to leave":1`)

	resp, _ = do(t, s, httptest.NewRequest("GET", "/api/v1/predictions?limit=500", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	bad := httptest.NewRequest("POST", "/api/v1/predict", strings.NewReader(`{"salary":3}`))
	bad.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, body = do(t, s, bad)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `"fields"`)

	for _, payload := range []string{`{}`, `{"satisfaction_level":0.1,"number_project":6}`} {
		noDept := httptest.NewRequest("POST", "/api/v1/predict", strings.NewReader(payload))
		noDept.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
		resp, body = do(t, s, noDept)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, payload)
		assert.Contains(t, body, `"field":"department"`, payload)
	}

	resp, body = do(t, s, httptest.NewRequest("GET", "/api/v1/schema", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"supports_probability":true`)
}

func TestNotebookPages(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	tests := []struct {
		name     string
		path     string
		status   int
		contains string
	}{
		{name: "rendered", path: "/notebooks/eda", status: fiber.StatusOK, contains: "notebook-container"},
		{name: "missing file", path: "/notebooks/preprocessing", status: fiber.StatusNotFound, contains: "Notebook not found at:"},
		{name: "conversion error", path: "/notebooks/broken", status: fiber.StatusUnprocessableEntity, contains: "Error converting notebook"},
		{name: "unknown slug", path: "/notebooks/nope", status: fiber.StatusNotFound, contains: "There is no notebook named"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, s, httptest.NewRequest("GET", tt.path, nil))
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body, tt.contains)
		})
	}

	resp, _ := do(t, s, httptest.NewRequest("GET", "/notebooks/home", nil))
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	resp, body := do(t, s, httptest.NewRequest("GET", "/api/v1/notebooks", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"count":3`)
}

func TestDisabledDashboards(t *testing.T) {
	cfg := testConfig(t)
	cfg.Features = config.FeaturesConfig{}
	s := newTestServer(t, cfg)

	resp, body := do(t, s, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, `href="/predict"`)

	resp, _ = do(t, s, httptest.NewRequest("GET", "/predict", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, s, httptest.NewRequest("GET", "/notebooks/eda", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHealthReadyAndStatic(t *testing.T) {
	s := newTestServer(t, testConfig(t))

	resp, body := do(t, s, httptest.NewRequest("GET", "/api/v1/health", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "healthy")

	resp, body = do(t, s, httptest.NewRequest("GET", "/api/v1/ready", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ready"`)

	resp, _ = do(t, s, httptest.NewRequest("GET", "/static/style.css", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
}
