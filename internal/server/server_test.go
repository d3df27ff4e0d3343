package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuKro90/draftcraft/internal/benchmark"
	"github.com/DuKro90/draftcraft/internal/catalog"
	"github.com/DuKro90/draftcraft/internal/engine"
	"github.com/DuKro90/draftcraft/internal/model"
	"github.com/DuKro90/draftcraft/internal/pricing"
	"github.com/DuKro90/draftcraft/internal/rule"
	"github.com/DuKro90/draftcraft/internal/store"
)

func newTestRouter(t *testing.T, opts Options) (chi.Router, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"), rule.DefaultLimits())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	seed := []model.FactorEntry{
		{Category: model.CategoryMaterial, Key: "eiche", Multiplier: decimal.NewFromFloat(1.3), OwnerBusinessID: "b-1", Enabled: true},
		{Category: model.CategorySurface, Key: "geoelt", Multiplier: decimal.NewFromFloat(1.15), Enabled: true},
	}
	for _, e := range seed {
		_, err := st.UpsertFactor(context.Background(), e)
		require.NoError(t, err)
	}

	cache := catalog.NewCacheService(catalog.New(st), time.Hour)
	st.OnFactorChange(cache.Invalidate)

	eng := engine.New(cache, st, pricing.NewCalculator(pricing.BaseRates{"holz": decimal.NewFromInt(100)}))
	srv := New(eng, st, benchmark.NewAggregator(st))
	return srv.Router(opts), st
}

const calcRequest = `{
	"business_id": "b-1",
	"project_type": "esstisch",
	"components": [{
		"component_type": "Tischplatte",
		"material_category": "holz",
		"material_key": "eiche",
		"dimensions": {"length": 2, "width": 1, "height": 0.04}
	}]
}`

func postCalculate(t *testing.T, router chi.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/calculate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_Calculate(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{})
	rec := postCalculate(t, router, calcRequest)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result model.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "10.40", result.TotalPrice.StringFixed(2))
	assert.NotEmpty(t, result.ID)
}

func TestServer_Calculate_PersistsResult(t *testing.T) {
	t.Parallel()

	router, st := newTestRouter(t, Options{})
	rec := postCalculate(t, router, calcRequest)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	stored, err := st.GetResult(context.Background(), result.ID)
	require.NoError(t, err)
	assert.True(t, result.TotalPrice.Equal(stored.TotalPrice))
}

func TestServer_Calculate_BadRequests(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{})

	tests := []struct {
		name    string
		body    string
		status  int
		errCode string
	}{
		{"malformed json", `{"business_id": `, http.StatusBadRequest, "invalid_request"},
		{"no components", `{"business_id":"b-1","components":[]}`, http.StatusBadRequest, "empty_calculation"},
		{
			"unknown factor key",
			strings.Replace(calcRequest, "eiche", "teak", 1),
			http.StatusUnprocessableEntity,
			"unknown_factor",
		},
		{
			"unknown base rate",
			strings.Replace(calcRequest, "holz", "glas", 1),
			http.StatusUnprocessableEntity,
			"unknown_base_rate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := postCalculate(t, router, tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var errBody map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
			assert.Equal(t, tt.errCode, errBody["error"])
		})
	}
}

func TestServer_GetCalculation(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{})
	rec := postCalculate(t, router, calcRequest)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	req := httptest.NewRequest(http.MethodGet, "/api/calculations/"+result.ID, nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	assert.Equal(t, http.StatusOK, got.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/calculations/missing", nil)
	got = httptest.NewRecorder()
	router.ServeHTTP(got, req)
	assert.Equal(t, http.StatusNotFound, got.Code)
}

func TestServer_Explanation(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{})
	rec := postCalculate(t, router, calcRequest)
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.CalculationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	req := httptest.NewRequest(http.MethodGet, "/api/calculations/"+result.ID+"/explanation?deviation=true", nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	require.Equal(t, http.StatusOK, got.Code, got.Body.String())

	var body struct {
		Explanation model.CalculationExplanation `json:"explanation"`
		Deviation   *benchmark.Deviation         `json:"deviation"`
	}
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &body))
	assert.Equal(t, result.ID, body.Explanation.CalculationResultID)
	assert.NotEmpty(t, body.Explanation.Factors)
	require.NotNil(t, body.Deviation)
	assert.Contains(t, body.Deviation.Commentary, "Keine historischen Kalkulationen")
}

func TestServer_Benchmark(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{})
	rec := postCalculate(t, router, calcRequest)
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/benchmarks/esstisch?business=b-1", nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	require.Equal(t, http.StatusOK, got.Code)

	var bench struct {
		SampleCount  int    `json:"sample_count"`
		AveragePrice string `json:"average_price"`
	}
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &bench))
	assert.Equal(t, 1, bench.SampleCount)
	assert.Equal(t, "10.40", bench.AveragePrice)

	// Missing business parameter.
	req = httptest.NewRequest(http.MethodGet, "/api/benchmarks/esstisch", nil)
	got = httptest.NewRecorder()
	router.ServeHTTP(got, req)
	assert.Equal(t, http.StatusBadRequest, got.Code)
}

func TestServer_RateLimit(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, Options{RateLimitPerSec: 0.001, RateBurst: 1})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
