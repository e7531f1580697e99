package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/solvmetria/internal/config"
	"github.com/sells-group/solvmetria/internal/dataset"
	"github.com/sells-group/solvmetria/internal/model"
	"github.com/sells-group/solvmetria/internal/monitoring"
	"github.com/sells-group/solvmetria/internal/scorer"
	"github.com/sells-group/solvmetria/internal/session"
)

type staticDatasets struct {
	ds  *dataset.Dataset
	err error
}

func (s *staticDatasets) Get(context.Context) (*dataset.Dataset, error) { return s.ds, s.err }

func f(v float64) *float64 { return model.Float(v) }

func testDataset() *dataset.Dataset {
	at := func(region, muni string, ph, al, om *float64, year int) model.SoilSample {
		return model.SoilSample{Region: region, Municipality: muni, PH: ph, Aluminum: al, OrganicMatter: om, AnalysisDate: model.Date(year, time.March, 3), Crop: "Café"}
	}
	return dataset.New("datos.csv", []model.SoilSample{
		at("Antioquia", "Rionegro", f(6.0), f(0.5), f(3), 2020),
		at("Antioquia", "Rionegro", f(6.2), f(0.4), f(3), 2021),
		at("Antioquia", "Rionegro", nil, f(0.3), f(3), 2022),
		at("Antioquia", "Rionegro", f(5.9), f(0.6), f(3), 2020),
		at("Antioquia", "Rionegro", f(6.1), f(0.5), f(3), 2020),
		at("Antioquia", "Abejorral", f(2.0), f(0.5), f(3), 2020),
		at("Antioquia", "Abejorral", f(11.0), f(0.5), f(3), 2020),
		at("Boyacá", "Tunja", f(5.0), f(1.4), f(1), 2019),
	})
}

type harness struct {
	srv      *httptest.Server
	sessions *session.Manager
	metrics  *monitoring.Metrics
}

func newHarness(t *testing.T, ds Datasets, cfg config.ServerConfig) *harness {
	t.Helper()
	if cfg.AllowedOrigins == nil {
		cfg.AllowedOrigins = []string{"*"}
	}
	h := &harness{
		sessions: session.NewManager(scorer.DefaultParams(), time.Hour),
		metrics:  monitoring.NewMetrics(),
	}
	s := New(cfg, Deps{Datasets: ds, Sessions: h.sessions, Metrics: h.metrics})
	h.srv = httptest.NewServer(s.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func query(region, muni string) string {
	return "?" + url.Values{"region": {region}, "municipality": {muni}}.Encode()
}

func TestHealth(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})
	resp := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestStatus_LoadError(t *testing.T) {
	ds := &staticDatasets{
		ds:  dataset.Empty("missing.csv"),
		err: eris.Wrap(dataset.ErrMissingSource, "dataset: missing.csv"),
	}
	h := newHarness(t, ds, config.ServerConfig{})

	var st statusResponse
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/status", ""), &st)
	assert.Equal(t, "missing.csv", st.Source)
	assert.Zero(t, st.Samples)
	assert.Contains(t, st.LoadError, "missing.csv")

	// Views still answer, with no data.
	var regions map[string][]string
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/regions", ""), &regions)
	assert.Empty(t, regions["regions"])
}

func TestRegionsAndMunicipalities(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})

	var regions map[string][]string
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/regions", ""), &regions)
	assert.Equal(t, []string{"Antioquia", "Boyacá"}, regions["regions"])

	var munis struct {
		Region         string   `json:"region"`
		Municipalities []string `json:"municipalities"`
	}
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/regions/antioquia/municipalities", ""), &munis)
	assert.Equal(t, []string{"Abejorral", "Rionegro"}, munis.Municipalities)

	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/regions/Narino/municipalities", ""), &munis)
	assert.Empty(t, munis.Municipalities)
	assert.NotNil(t, munis.Municipalities)
}

func TestDiagnosis(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})

	var body struct {
		Municipality string   `json:"municipality"`
		State        string   `json:"state"`
		MeanPH       *float64 `json:"mean_ph"`
		Messages     []string `json:"messages"`
	}
	resp := h.do(t, http.MethodGet, "/api/v1/diagnosis"+query("boyaca", "TUNJA"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &body)
	assert.Equal(t, "Tunja", body.Municipality)
	assert.Equal(t, "danger", body.State)
	require.NotNil(t, body.MeanPH)
	assert.InDelta(t, 5.0, *body.MeanPH, 1e-9)
	require.Len(t, body.Messages, 3)
	assert.Contains(t, body.Messages[0], "pH: Ácido")
	assert.Contains(t, body.Messages[1], "Aluminio: Tóxico")

	resp = h.do(t, http.MethodGet, "/api/v1/diagnosis?region=Antioquia", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorBody
	decodeBody(t, resp, &e)
	assert.Contains(t, e.Error, "region and municipality are required")
}

func TestQuality(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})

	var body struct {
		Score     int    `json:"score"`
		Tier      string `json:"tier"`
		Breakdown []struct {
			Kind    string `json:"kind"`
			Display int    `json:"display"`
		} `json:"breakdown"`
	}
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/quality"+query("Antioquia", "Rionegro"), ""), &body)
	assert.Equal(t, 96, body.Score)
	assert.Equal(t, "High", body.Tier)
	require.Len(t, body.Breakdown, 1)
	assert.Equal(t, "ph_null_partial", body.Breakdown[0].Kind)
	assert.Equal(t, 4, body.Breakdown[0].Display)

	// Both readings are physically impossible: flat incoherence penalty.
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/quality"+query("Antioquia", "Abejorral"), ""), &body)
	assert.Equal(t, 70, body.Score)
	assert.Equal(t, "Medium", body.Tier)
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})

	resp := h.do(t, http.MethodPost, "/api/v1/sessions", `{"level":"expert"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sess session.Session
	decodeBody(t, resp, &sess)
	require.NotEmpty(t, sess.ID)
	base := "/api/v1/sessions/" + sess.ID

	resp = h.do(t, http.MethodPatch, base+"/params", `{"null_ph_penalty":50}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &sess)
	assert.InDelta(t, 50.0, sess.Params.NullPHPenalty, 1e-9)

	var view struct {
		Expert struct {
			Score int `json:"score"`
		} `json:"expert"`
	}
	decodeBody(t, h.do(t, http.MethodGet, base+"/view"+query("Antioquia", "Rionegro"), ""), &view)
	// 50 * 1/5 = 10 points.
	assert.Equal(t, 90, view.Expert.Score)

	// Out of range leaves the params untouched.
	resp = h.do(t, http.MethodPatch, base+"/params", `{"ph_min":7}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	decodeBody(t, h.do(t, http.MethodGet, base, ""), &sess)
	assert.InDelta(t, 3.0, sess.Params.PHMin, 1e-9)

	resp = h.do(t, http.MethodPatch, base+"/params", `{"ph_maximum":7}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = h.do(t, http.MethodPatch, base+"/params", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPost, base+"/params/reset", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &sess)
	assert.Equal(t, scorer.DefaultParams(), sess.Params)

	resp = h.do(t, http.MethodPut, base+"/level", `{"level":"novice"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = h.do(t, http.MethodPut, base+"/level", `{"level":"master"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionsAreIndependent(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})

	a, err := h.sessions.Create(session.LevelExpert)
	require.NoError(t, err)
	b, err := h.sessions.Create(session.LevelExpert)
	require.NoError(t, err)

	resp := h.do(t, http.MethodPatch, "/api/v1/sessions/"+a.ID+"/params", `{"anomaly_penalty":45}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got session.Session
	decodeBody(t, h.do(t, http.MethodGet, "/api/v1/sessions/"+b.ID, ""), &got)
	assert.InDelta(t, 15.0, got.Params.AnomalyPenalty, 1e-9)
}

func TestNoviceView_Insufficient(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})
	sess, err := h.sessions.Create(session.LevelNovice)
	require.NoError(t, err)

	var view struct {
		Novice struct {
			ICD          *int   `json:"icd"`
			Insufficient bool   `json:"insufficient"`
			MapURL       string `json:"map_url"`
		} `json:"novice"`
	}
	resp := h.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID+"/view"+query("Antioquia", "Sonsón"), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp, &view)
	assert.True(t, view.Novice.Insufficient)
	assert.Nil(t, view.Novice.ICD)
	assert.Contains(t, view.Novice.MapURL, "google.com/maps")
}

func TestReportDownload(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})
	sess, err := h.sessions.Create(session.LevelExpert)
	require.NoError(t, err)

	resp := h.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID+"/params/report?municipality=Rionegro", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=ICD_Reglas_Rionegro.csv", resp.Header.Get("Content-Disposition"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "parameter,value\n"))
	assert.Contains(t, string(body), "stale_cutoff_year,2018")

	resp = h.do(t, http.MethodGet, "/api/v1/sessions/nope/params/report", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{RateLimit: 0.001, RateBurst: 2})

	for range 2 {
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/regions", "").StatusCode)
	}
	resp := h.do(t, http.MethodGet, "/api/v1/regions", "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Health checks are not limited.
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", "").StatusCode)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{AllowedOrigins: []string{"https://suelos.example"}})

	req, err := http.NewRequest(http.MethodOptions, h.srv.URL+"/api/v1/regions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://suelos.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "https://suelos.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, &staticDatasets{ds: testDataset()}, config.ServerConfig{})
	h.do(t, http.MethodGet, "/api/v1/regions", "")

	resp := h.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `solvmetria_http_requests_total{code="200",method="GET",route="/api/v1/regions"} 1`)
}

func TestOverview(t *testing.T) {
	ds := &staticDatasets{ds: testDataset()}
	sessions := session.NewManager(scorer.DefaultParams(), 0)
	checker := monitoring.NewChecker(
		monitoring.NewCollector(ds, scorer.DefaultParams(), 2),
		monitoring.NewAlerter(config.MonitoringConfig{}),
		nil, config.MonitoringConfig{},
	)
	srv := httptest.NewServer(New(config.ServerConfig{AllowedOrigins: []string{"*"}}, Deps{Datasets: ds, Sessions: sessions, Checker: checker}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/overview")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	checker.Check(context.Background())

	resp, err = http.Get(srv.URL + "/api/v1/overview")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap monitoring.QualitySnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, 3, snap.Municipalities)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(eris.Wrap(session.ErrNotFound, "x")))
	assert.Equal(t, http.StatusBadRequest, statusFor(eris.Wrap(session.ErrOutOfBounds, "x")))
	assert.Equal(t, http.StatusBadRequest, statusFor(scorer.ValidateParams(config.ScoringConfig{PHMin: 5, PHMax: 4, StaleCutoffYear: 2018})))
	assert.Equal(t, http.StatusInternalServerError, statusFor(eris.New("boom")))
}
