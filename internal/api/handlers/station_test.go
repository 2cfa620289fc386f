package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stazione/internal/types"
)

type mockStationService struct {
	samples   []types.Sample
	history   []types.RiskPoint
	stats     types.AggregateStats
	dayRisk   types.RiskAssessment
	instant   types.RiskAssessment
	trend     types.Trend
	report    types.ConditionsReport
	outlook   types.RainOutlook
	outlookFn func(ctx context.Context) types.RainOutlook
	overview  types.Overview
}

func (m *mockStationService) LatestSample() (types.Sample, bool) {
	if len(m.samples) == 0 {
		return types.Sample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

func (m *mockStationService) Samples() []types.Sample              { return m.samples }
func (m *mockStationService) RiskHistory() []types.RiskPoint       { return m.history }
func (m *mockStationService) AggregateStats() types.AggregateStats { return m.stats }
func (m *mockStationService) DayRisk() types.RiskAssessment        { return m.dayRisk }
func (m *mockStationService) InstantRisk() types.RiskAssessment    { return m.instant }
func (m *mockStationService) Trend() types.Trend                   { return m.trend }
func (m *mockStationService) Report() types.ConditionsReport       { return m.report }

func (m *mockStationService) RainOutlook(ctx context.Context) types.RainOutlook {
	if m.outlookFn != nil {
		return m.outlookFn(ctx)
	}
	return m.outlook
}

func (m *mockStationService) Overview(context.Context) types.Overview { return m.overview }

var t0 = time.Date(2026, 4, 1, 14, 30, 0, 0, time.UTC)

func sampleAt(offset time.Duration, temp, hum, press, rain float64) types.Sample {
	return types.Sample{
		Timestamp:   t0.Add(offset),
		Temperature: temp,
		Humidity:    hum,
		Pressure:    press,
		Rainfall:    rain,
	}
}

func serve(t *testing.T, svc StationService, path string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/v1", NewStationHandler(svc, nil).RegisterRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec
}

func TestHandleLatest(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		rec := serve(t, &mockStationService{}, "/v1/latest")
		assert.JSONEq(t, `{}`, rec.Body.String())
	})

	t.Run("returns newest sample", func(t *testing.T) {
		svc := &mockStationService{samples: []types.Sample{
			sampleAt(0, 20, 60, 1010, 0),
			sampleAt(10*time.Second, 21.5, 62, 1011.2, 1.4),
		}}
		rec := serve(t, svc, "/v1/latest")

		var got types.Sample
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, svc.samples[1], got)
		assert.Contains(t, rec.Body.String(), `"rain":1.4`)
	})
}

func TestHandleAveragesAndRisk(t *testing.T) {
	svc := &mockStationService{
		stats:   types.AggregateStats{MeanTemperature: 21, MeanHumidity: 70, MeanPressure: 1012, TotalRainfall: 12.5},
		dayRisk: types.RiskAssessment{Level: types.RiskMedium, Rationale: "accumulated rain"},
		instant: types.RiskAssessment{Level: types.RiskHigh, Rationale: "heavy rain now"},
	}

	rec := serve(t, svc, "/v1/averages")
	assert.JSONEq(t, `{"temperature":21,"humidity":70,"pressure":1012,"rain":12.5}`, rec.Body.String())

	rec = serve(t, svc, "/v1/risk")
	assert.JSONEq(t, `{"level":"MEDIUM","rationale":"accumulated rain"}`, rec.Body.String())

	rec = serve(t, svc, "/v1/risk/instant")
	assert.JSONEq(t, `{"level":"HIGH","rationale":"heavy rain now"}`, rec.Body.String())
}

func TestHandleRiskTrend(t *testing.T) {
	t.Run("empty history encodes as array", func(t *testing.T) {
		rec := serve(t, &mockStationService{}, "/v1/risk/trend")
		assert.JSONEq(t, `[]`, rec.Body.String())
	})

	t.Run("points carry chart labels", func(t *testing.T) {
		svc := &mockStationService{history: []types.RiskPoint{
			{Timestamp: t0, Probability: 12.5, Class: types.RiskLow},
			{Timestamp: t0.Add(10 * time.Second), Probability: 40, Class: types.RiskMedium},
		}}
		rec := serve(t, svc, "/v1/risk/trend")

		var got []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, "14:30:00", got[0]["time"])
		assert.Equal(t, "14:30:10", got[1]["time"])
		assert.Equal(t, 40.0, got[1]["probability"])
		assert.Equal(t, "MEDIUM", got[1]["class"])
		assert.Equal(t, "2026-04-01T14:30:10Z", got[1]["timestamp"])
	})
}

func TestHandleTrend(t *testing.T) {
	svc := &mockStationService{trend: types.Trend{
		Temperature: types.TrendUp,
		Humidity:    types.TrendDown,
		Pressure:    types.TrendFlat,
	}}
	rec := serve(t, svc, "/v1/trend")

	assert.JSONEq(t, `{
		"temperature": {"direction": "up", "arrow": "↑"},
		"humidity": {"direction": "down", "arrow": "↓"},
		"pressure": {"direction": "flat", "arrow": "→"}
	}`, rec.Body.String())
}

func TestHandleRainOutlook(t *testing.T) {
	var gotCtx context.Context
	svc := &mockStationService{outlookFn: func(ctx context.Context) types.RainOutlook {
		gotCtx = ctx
		return types.RainOutlook{Probability: 75, ForecastProbability: 50, ForecastFallback: true, Rationale: "humid air"}
	}}
	rec := serve(t, svc, "/v1/rain-outlook")

	require.NotNil(t, gotCtx, "request context should reach the service")
	assert.JSONEq(t, `{"probability":75,"forecast_probability":50,"forecast_fallback":true,"rationale":"humid air"}`,
		rec.Body.String())
}

func TestHandleCharts(t *testing.T) {
	t.Run("empty window", func(t *testing.T) {
		rec := serve(t, &mockStationService{}, "/v1/charts")
		assert.JSONEq(t, `{"timestamps":[],"temperature":[],"humidity":[],"pressure":[],"rain":[]}`, rec.Body.String())
	})

	t.Run("columns are aligned", func(t *testing.T) {
		svc := &mockStationService{samples: []types.Sample{
			sampleAt(0, 20, 60, 1010, 0),
			sampleAt(10*time.Second, 21, 61, 1011, 2.5),
		}}
		rec := serve(t, svc, "/v1/charts")

		var got ChartSeries
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, []string{"14:30:00", "14:30:10"}, got.Timestamps)
		assert.Equal(t, []float64{20, 21}, got.Temperature)
		assert.Equal(t, []float64{60, 61}, got.Humidity)
		assert.Equal(t, []float64{1010, 1011}, got.Pressure)
		assert.Equal(t, []float64{0, 2.5}, got.Rain)
	})
}

func TestHandleDashboard(t *testing.T) {
	t.Run("empty window omits latest", func(t *testing.T) {
		rec := serve(t, &mockStationService{}, "/v1/dashboard")

		var got map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.NotContains(t, got, "latest")
		assert.Contains(t, got, "charts")
	})

	t.Run("latest matches last chart column", func(t *testing.T) {
		svc := &mockStationService{samples: []types.Sample{
			sampleAt(0, 20, 60, 1010, 0),
			sampleAt(10*time.Second, 22, 64, 1009, 3),
		}}
		rec := serve(t, svc, "/v1/dashboard")

		var got DashboardResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.NotNil(t, got.Latest)
		assert.Equal(t, svc.samples[1], *got.Latest)
		assert.Len(t, got.Charts.Timestamps, 2)
	})
}

func TestHandleReport(t *testing.T) {
	latest := sampleAt(0, 27, 80, 1005, 4)
	svc := &mockStationService{report: types.ConditionsReport{
		Averages:     types.AggregateStats{MeanTemperature: 27},
		Latest:       &latest,
		Observations: []string{"Average temperature is high."},
		RiskLevel:    types.RiskMedium,
	}}
	rec := serve(t, svc, "/v1/report")

	var got types.ConditionsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, svc.report, got)
}

func TestHandleOverview(t *testing.T) {
	overview := types.Overview{
		Averages:    types.AggregateStats{TotalRainfall: 30},
		Risk:        types.RiskAssessment{Level: types.RiskHigh, Rationale: "saturated soil"},
		Trend:       types.FlatTrend,
		RainOutlook: types.RainOutlook{Probability: 60, ForecastProbability: 60, Rationale: "forecast"},
	}
	// The per-field readers disagree with the overview; only the overview
	// may be served.
	svc := &mockStationService{
		stats:    types.AggregateStats{TotalRainfall: 1},
		dayRisk:  types.RiskAssessment{Level: types.RiskLow},
		overview: overview,
	}
	rec := serve(t, svc, "/v1/overview")

	var got OverviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, overview.Averages, got.Averages)
	assert.Equal(t, overview.Risk, got.Risk)
	assert.Equal(t, "→", got.Trend.Pressure.Arrow)
	assert.Equal(t, overview.RainOutlook, got.RainOutlook)
}
