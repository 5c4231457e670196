package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uakhmed/temperature-dashboard-service/internal/lifecycle"
	"github.com/uakhmed/temperature-dashboard-service/internal/observability"
	"github.com/uakhmed/temperature-dashboard-service/internal/render"
	"github.com/uakhmed/temperature-dashboard-service/internal/service"
	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
	"github.com/uakhmed/temperature-dashboard-service/internal/validation"
)

// Download filenames for PNG chart exports.
const (
	regionalPNGName   = "avg_temp_by_region.png"
	seasonalPNGName   = "seasonal_trends_by_region.png"
	cityTrendsPNGName = "temp_trends_by_city.png"
)

// HealthConfig holds the dependency probes for the health handler.
type HealthConfig struct {
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
	// ReferenceLoaded reports whether a city reference snapshot has loaded.
	ReferenceLoaded func() bool
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dashboard      *service.DashboardService
	healthConfig   *HealthConfig
	logger         *zap.Logger
	maxUploadBytes int64
	chartWidth     int
	chartHeight    int

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. maxUploadBytes bounds dataset uploads;
// chartWidth and chartHeight size PNG exports.
func NewHandler(dashboard *service.DashboardService, healthConfig *HealthConfig, logger *zap.Logger, maxUploadBytes int64, chartWidth, chartHeight int) *Handler {
	return &Handler{
		dashboard:      dashboard,
		healthConfig:   healthConfig,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		chartWidth:     chartWidth,
		chartHeight:    chartHeight,
	}
}

// Register wires the dashboard routes onto r under /datasets. The rate
// limiter and timeout apply to dataset routes only, not /health or /metrics.
// A nil limiter disables rate limiting.
func (h *Handler) Register(r *mux.Router, limiter *rate.Limiter, timeout time.Duration) {
	s := r.PathPrefix("/datasets").Subrouter()
	s.Use(RateLimitMiddleware(limiter))
	s.Use(TimeoutMiddleware(timeout))
	s.HandleFunc("", h.PostDataset).Methods(http.MethodPost)
	s.HandleFunc("/{id}/selectors", h.GetSelectors).Methods(http.MethodGet)
	s.HandleFunc("/{id}/charts/regions", h.GetRegionalChart).Methods(http.MethodGet)
	s.HandleFunc("/{id}/charts/seasonal", h.GetSeasonalChart).Methods(http.MethodGet)
	s.HandleFunc("/{id}/charts/cities", h.GetCityTrendsChart).Methods(http.MethodGet)
	s.HandleFunc("/{id}/charts/heatmap", h.GetHeatmapChart).Methods(http.MethodGet)
}

// PostDataset handles POST /datasets. Accepts the raw CSV body, or a
// multipart upload with the file under the "file" field.
func (h *Handler) PostDataset(w http.ResponseWriter, r *http.Request) {
	raw, err := h.readUpload(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return
	}
	if len(raw) == 0 {
		writeError(w, r, http.StatusBadRequest, "INVALID_UPLOAD", "empty upload body")
		return
	}

	ds, rows, err := h.dashboard.UploadDataset(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         ds.ID,
		"rows":       rows,
		"bytes":      len(ds.Raw),
		"uploadedAt": ds.UploadedAt.UTC().Format(time.RFC3339),
	})
}

// readUpload pulls the dataset bytes out of the request, bounded by the
// configured upload limit.
func (h *Handler) readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}

// GetSelectors handles GET /datasets/{id}/selectors.
func (h *Handler) GetSelectors(w http.ResponseWriter, r *http.Request) {
	sel, err := h.dashboard.DatasetSelectors(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// GetRegionalChart handles GET /datasets/{id}/charts/regions?mode=min|max.
func (h *Handler) GetRegionalChart(w http.ResponseWriter, r *http.Request) {
	mode, err := validation.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_MODE", err.Error())
		return
	}
	extreme := temps.Max
	if mode == "min" {
		extreme = temps.Min
	}

	spec, err := h.dashboard.RegionalChart(r.Context(), mux.Vars(r)["id"], extreme)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeChart(w, r, spec, regionalPNGName)
}

// GetSeasonalChart handles GET /datasets/{id}/charts/seasonal?regions=a,b.
func (h *Handler) GetSeasonalChart(w http.ResponseWriter, r *http.Request) {
	regions, err := validation.ParseSelections(r.URL.Query().Get("regions"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SELECTION", err.Error())
		return
	}

	spec, err := h.dashboard.SeasonalChart(r.Context(), mux.Vars(r)["id"], regions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeChart(w, r, spec, seasonalPNGName)
}

// GetCityTrendsChart handles GET /datasets/{id}/charts/cities?cities=a,b&year=2005.
func (h *Handler) GetCityTrendsChart(w http.ResponseWriter, r *http.Request) {
	cities, err := validation.ParseSelections(r.URL.Query().Get("cities"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SELECTION", err.Error())
		return
	}
	year, err := validation.ParseYear(r.URL.Query().Get("year"), temps.MinValidYear, temps.MaxValidYear)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_YEAR", err.Error())
		return
	}

	spec, err := h.dashboard.CityTrendsChart(r.Context(), mux.Vars(r)["id"], cities, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeChart(w, r, spec, cityTrendsPNGName)
}

// GetHeatmapChart handles GET /datasets/{id}/charts/heatmap. JSON only; the
// choropleth is painted by the front end.
func (h *Handler) GetHeatmapChart(w http.ResponseWriter, r *http.Request) {
	spec, err := h.dashboard.HeatmapChart(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeChart(w, r, spec, "")
}

// writeChart writes a chart as JSON, or as a downloadable PNG when the
// request asks for format=png.
func (h *Handler) writeChart(w http.ResponseWriter, r *http.Request, spec render.ChartSpec, pngName string) {
	format := r.URL.Query().Get("format")
	observability.ChartRequestsTotal.WithLabelValues(string(spec.Kind), chartFormatLabel(format)).Inc()

	if format != "png" {
		writeJSON(w, http.StatusOK, spec)
		return
	}

	img, err := render.PNG(spec, h.chartWidth, h.chartHeight)
	if err != nil {
		switch {
		case errors.Is(err, render.ErrUnsupportedKind):
			writeError(w, r, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "this chart has no PNG form")
		case errors.Is(err, render.ErrEmptyChart):
			writeError(w, r, http.StatusUnprocessableEntity, "EMPTY_CHART", "no data to draw for this selection")
		default:
			writeError(w, r, http.StatusInternalServerError, "RENDER_FAILED", "chart rendering failed")
			if logger := requestLogger(r); logger != nil {
				logger.Error("chart render failed", zap.Error(err))
			}
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+pngName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func chartFormatLabel(format string) string {
	if format == "png" {
		return "png"
	}
	return "json"
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if h.healthConfig != nil && h.healthConfig.ReferenceLoaded != nil {
		if h.healthConfig.ReferenceLoaded() {
			checks["referenceData"] = "loaded"
		} else {
			// Cleaning still works without the reference; states just stay
			// as uploaded or fall back to Unknown.
			checks["referenceData"] = "pending"
		}
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
	}
	if lifecycle.IsShuttingDown() {
		status = "shutting-down"
		statusCode = http.StatusServiceUnavailable
	}

	h.healthStatusMu.Lock()
	if prev := h.healthStatusPrev; prev != "" && prev != status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", status))
	}
	h.healthStatusPrev = status
	h.healthStatusMu.Unlock()

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"service":   "temperature-dashboard-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError maps service and pipeline errors to their HTTP form.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrDatasetNotFound):
		writeError(w, r, http.StatusNotFound, "DATASET_NOT_FOUND", "upload the city temperature file first")
	case errors.Is(err, temps.ErrUnparseable):
		writeError(w, r, http.StatusBadRequest, "UNPARSEABLE_DATASET", err.Error())
	case errors.Is(err, temps.ErrNoValidYear):
		writeError(w, r, http.StatusUnprocessableEntity, "NO_VALID_YEAR", "dataset has no year inside the valid range")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		if logger := requestLogger(r); logger != nil {
			logger.Error("request failed", zap.Error(err))
		}
	}
}

// requestLogger returns the correlation-scoped logger from request context.
func requestLogger(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}
