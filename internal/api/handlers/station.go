// Package handlers exposes the station state over a read-only JSON API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stazione/internal/core"
	"stazione/internal/types"
)

// chartTimeLayout formats sample timestamps on chart axes.
const chartTimeLayout = "15:04:05"

// StationService is the read side of the monitoring engine.
type StationService interface {
	LatestSample() (types.Sample, bool)
	Samples() []types.Sample
	RiskHistory() []types.RiskPoint
	AggregateStats() types.AggregateStats
	DayRisk() types.RiskAssessment
	InstantRisk() types.RiskAssessment
	Trend() types.Trend
	Report() types.ConditionsReport
	RainOutlook(ctx context.Context) types.RainOutlook
	Overview(ctx context.Context) types.Overview
}

// StationHandler maps HTTP requests to StationService reads.
type StationHandler struct {
	service StationService
	logger  *slog.Logger
}

// NewStationHandler creates a StationHandler.
func NewStationHandler(svc StationService, logger *slog.Logger) *StationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StationHandler{service: svc, logger: logger}
}

// RegisterRoutes mounts the station endpoints. The caller chooses the prefix.
func (h *StationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/latest", h.HandleLatest)
	r.Get("/averages", h.HandleAverages)
	r.Get("/risk", h.HandleDayRisk)
	r.Get("/risk/instant", h.HandleInstantRisk)
	r.Get("/risk/trend", h.HandleRiskTrend)
	r.Get("/trend", h.HandleTrend)
	r.Get("/rain-outlook", h.HandleRainOutlook)
	r.Get("/charts", h.HandleCharts)
	r.Get("/dashboard", h.HandleDashboard)
	r.Get("/report", h.HandleReport)
	r.Get("/overview", h.HandleOverview)
}

// ChartSeries holds one column per variable, aligned on Timestamps.
type ChartSeries struct {
	Timestamps  []string  `json:"timestamps"`
	Temperature []float64 `json:"temperature"`
	Humidity    []float64 `json:"humidity"`
	Pressure    []float64 `json:"pressure"`
	Rain        []float64 `json:"rain"`
}

// RiskTrendPoint is a RiskPoint with the chart label of its timestamp.
type RiskTrendPoint struct {
	types.RiskPoint
	Time string `json:"time"`
}

// TrendEntry is the direction of one variable with its dashboard arrow.
type TrendEntry struct {
	Direction types.TrendDirection `json:"direction"`
	Arrow     string               `json:"arrow"`
}

// TrendResponse is the body of GET /trend.
type TrendResponse struct {
	Temperature TrendEntry `json:"temperature"`
	Humidity    TrendEntry `json:"humidity"`
	Pressure    TrendEntry `json:"pressure"`
}

// DashboardResponse is the body of GET /dashboard.
type DashboardResponse struct {
	Latest *types.Sample `json:"latest,omitempty"`
	Charts ChartSeries   `json:"charts"`
}

// OverviewResponse bundles what the home page shows.
type OverviewResponse struct {
	Averages    types.AggregateStats `json:"averages"`
	Risk        types.RiskAssessment `json:"risk"`
	Trend       TrendResponse        `json:"trend"`
	RainOutlook types.RainOutlook    `json:"rain_outlook"`
}

// HandleLatest handles GET /latest. An empty window yields {}.
func (h *StationHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	latest, ok := h.service.LatestSample()
	if !ok {
		core.JSON(w, r, http.StatusOK, struct{}{})
		return
	}
	core.JSON(w, r, http.StatusOK, latest)
}

// HandleAverages handles GET /averages.
func (h *StationHandler) HandleAverages(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.service.AggregateStats())
}

// HandleDayRisk handles GET /risk.
func (h *StationHandler) HandleDayRisk(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.service.DayRisk())
}

// HandleInstantRisk handles GET /risk/instant.
func (h *StationHandler) HandleInstantRisk(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.service.InstantRisk())
}

// HandleRiskTrend handles GET /risk/trend, oldest point first.
func (h *StationHandler) HandleRiskTrend(w http.ResponseWriter, r *http.Request) {
	history := h.service.RiskHistory()
	points := make([]RiskTrendPoint, len(history))
	for i, p := range history {
		points[i] = RiskTrendPoint{RiskPoint: p, Time: p.Timestamp.Format(chartTimeLayout)}
	}
	core.JSON(w, r, http.StatusOK, points)
}

// HandleTrend handles GET /trend.
func (h *StationHandler) HandleTrend(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, trendResponse(h.service.Trend()))
}

// HandleRainOutlook handles GET /rain-outlook. The engine falls back on its
// own when the forecast is unavailable, so this never fails.
func (h *StationHandler) HandleRainOutlook(w http.ResponseWriter, r *http.Request) {
	outlook := h.service.RainOutlook(r.Context())
	if outlook.ForecastFallback {
		h.logger.DebugContext(r.Context(), "rain outlook served with fallback forecast",
			"request_id", types.GetRequestID(r.Context()),
		)
	}
	core.JSON(w, r, http.StatusOK, outlook)
}

// HandleCharts handles GET /charts.
func (h *StationHandler) HandleCharts(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, chartSeries(h.service.Samples()))
}

// HandleDashboard handles GET /dashboard: the latest reading and the charts
// taken from the same snapshot.
func (h *StationHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	samples := h.service.Samples()
	resp := DashboardResponse{Charts: chartSeries(samples)}
	if n := len(samples); n > 0 {
		latest := samples[n-1]
		resp.Latest = &latest
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleReport handles GET /report.
func (h *StationHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	core.JSON(w, r, http.StatusOK, h.service.Report())
}

// HandleOverview handles GET /overview.
func (h *StationHandler) HandleOverview(w http.ResponseWriter, r *http.Request) {
	ov := h.service.Overview(r.Context())
	core.JSON(w, r, http.StatusOK, OverviewResponse{
		Averages:    ov.Averages,
		Risk:        ov.Risk,
		Trend:       trendResponse(ov.Trend),
		RainOutlook: ov.RainOutlook,
	})
}

func trendResponse(t types.Trend) TrendResponse {
	entry := func(d types.TrendDirection) TrendEntry {
		return TrendEntry{Direction: d, Arrow: d.Arrow()}
	}
	return TrendResponse{
		Temperature: entry(t.Temperature),
		Humidity:    entry(t.Humidity),
		Pressure:    entry(t.Pressure),
	}
}

// chartSeries never returns nil slices so empty windows encode as [].
func chartSeries(samples []types.Sample) ChartSeries {
	cs := ChartSeries{
		Timestamps:  make([]string, 0, len(samples)),
		Temperature: make([]float64, 0, len(samples)),
		Humidity:    make([]float64, 0, len(samples)),
		Pressure:    make([]float64, 0, len(samples)),
		Rain:        make([]float64, 0, len(samples)),
	}
	for _, s := range samples {
		cs.Timestamps = append(cs.Timestamps, s.Timestamp.Format(chartTimeLayout))
		cs.Temperature = append(cs.Temperature, s.Temperature)
		cs.Humidity = append(cs.Humidity, s.Humidity)
		cs.Pressure = append(cs.Pressure, s.Pressure)
		cs.Rain = append(cs.Rain, s.Rainfall)
	}
	return cs
}
