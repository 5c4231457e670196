// Package service orchestrates the dashboard: dataset intake, the cleaning
// pipeline with cache-aside memoization, and the per-chart aggregations.
// Every chart request recomputes its aggregation from the full normalized
// table; only the cleaning step is memoized, and dropping the cache changes
// nothing but latency.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/uakhmed/temperature-dashboard-service/internal/cache"
	"github.com/uakhmed/temperature-dashboard-service/internal/observability"
	"github.com/uakhmed/temperature-dashboard-service/internal/refdata"
	"github.com/uakhmed/temperature-dashboard-service/internal/render"
	"github.com/uakhmed/temperature-dashboard-service/internal/store"
	"github.com/uakhmed/temperature-dashboard-service/internal/temps"
)

// ErrDatasetNotFound is returned for unknown or evicted dataset IDs.
var ErrDatasetNotFound = errors.New("dataset not found")

// DashboardService holds the dashboard's collaborators.
type DashboardService struct {
	datasets  *store.DatasetStore
	refs      *refdata.Provider
	cache     cache.Cache
	cacheTTL  time.Duration
	palettes  render.Palettes
	coalescer *cleanCoalescer
}

// NewDashboardService creates a DashboardService. cacheTTL bounds how long a
// cleaned table stays memoized; coalesceTimeout bounds how long a chart
// request waits on another request's in-flight cleaning pass.
func NewDashboardService(datasets *store.DatasetStore, refs *refdata.Provider, c cache.Cache, cacheTTL time.Duration, palettes render.Palettes, coalesceTimeout time.Duration) *DashboardService {
	return &DashboardService{
		datasets:  datasets,
		refs:      refs,
		cache:     c,
		cacheTTL:  cacheTTL,
		palettes:  palettes,
		coalescer: newCleanCoalescer(coalesceTimeout),
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// UploadDataset validates and stores a raw CSV upload. An unparseable file is
// rejected whole; there is no partial intake. Returns the stored dataset and
// its row count.
func (s *DashboardService) UploadDataset(ctx context.Context, raw []byte) (*store.Dataset, int, error) {
	records, err := temps.ParseDataset(bytes.NewReader(raw))
	if err != nil {
		observability.DatasetUploadsTotal.WithLabelValues("unparseable").Inc()
		return nil, 0, err
	}

	ds := s.datasets.Put(raw)
	observability.DatasetUploadsTotal.WithLabelValues("accepted").Inc()
	observability.DatasetUploadBytes.Observe(float64(len(raw)))

	if logger := loggerFromContext(ctx); logger != nil {
		logger.Info("dataset accepted",
			zap.String("dataset_id", ds.ID),
			zap.Int("rows", len(records)),
			zap.Int("bytes", len(raw)))
	}
	return ds, len(records), nil
}

// cleanedRecords returns the normalized table for a dataset, via the cache
// when possible. The cache key combines the dataset digest with the reference
// table digest, so a reference refresh invalidates naturally.
func (s *DashboardService) cleanedRecords(ctx context.Context, datasetID string) ([]temps.Record, error) {
	ds, ok := s.datasets.Get(datasetID)
	if !ok {
		return nil, ErrDatasetNotFound
	}

	refTable, _ := s.refs.Current()
	key := ds.Digest + ":" + refTable.Digest

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
	} else if ok {
		observability.CleanCacheHitsTotal.Inc()
		return cached, nil
	}

	return s.coalescer.GetOrDo(ctx, key, func() ([]temps.Record, error) {
		start := time.Now()
		records, err := temps.ParseDataset(bytes.NewReader(ds.Raw))
		if err != nil {
			return nil, err
		}
		cleaned, report, err := temps.Clean(records, refTable.Cities)
		if err != nil {
			return nil, err
		}
		observability.CleanDurationSeconds.Observe(time.Since(start).Seconds())
		observability.RecordCleanRepairs(report.StatesResolved, report.StatesUnknown, report.DaysCorrected, report.YearsFilled)

		if logger := loggerFromContext(ctx); logger != nil {
			logger.Debug("dataset cleaned",
				zap.String("dataset_id", datasetID),
				zap.Int("rows", len(cleaned)),
				zap.Int("states_resolved", report.StatesResolved),
				zap.Int("states_unknown", report.StatesUnknown),
				zap.Int("days_corrected", report.DaysCorrected),
				zap.Int("years_filled", report.YearsFilled),
				zap.Duration("duration", time.Since(start)))
		}

		if setErr := s.cache.Set(ctx, key, cleaned, s.cacheTTL); setErr != nil {
			observability.CacheErrorsTotal.WithLabelValues("set").Inc()
			if logger := loggerFromContext(ctx); logger != nil {
				logger.Warn("clean cache set failed", zap.Error(setErr))
			}
		}
		return cleaned, nil
	})
}

// Selectors are the dropdown options for the dashboard's controls.
type Selectors struct {
	Regions []string `json:"regions"`
	Cities  []string `json:"cities"`
	Years   []int    `json:"years"`
}

// DatasetSelectors returns the distinct regions and cities in first-seen
// order and the distinct years ascending, all post-cleaning.
func (s *DashboardService) DatasetSelectors(ctx context.Context, datasetID string) (Selectors, error) {
	records, err := s.cleanedRecords(ctx, datasetID)
	if err != nil {
		return Selectors{}, err
	}

	var sel Selectors
	seenRegion := make(map[string]bool)
	seenCity := make(map[string]bool)
	seenYear := make(map[int]bool)
	for _, r := range records {
		if !seenRegion[r.Region] {
			seenRegion[r.Region] = true
			sel.Regions = append(sel.Regions, r.Region)
		}
		if !seenCity[r.City] {
			seenCity[r.City] = true
			sel.Cities = append(sel.Cities, r.City)
		}
		if !seenYear[r.Year] {
			seenYear[r.Year] = true
			sel.Years = append(sel.Years, r.Year)
		}
	}
	sort.Ints(sel.Years)
	return sel, nil
}

// RegionalChart builds the mean-temperature-by-region bar chart, sorted
// ascending by mean with the extreme per mode annotated.
func (s *DashboardService) RegionalChart(ctx context.Context, datasetID string, mode temps.ExtremeMode) (render.ChartSpec, error) {
	records, err := s.cleanedRecords(ctx, datasetID)
	if err != nil {
		return render.ChartSpec{}, err
	}

	summary, err := temps.Aggregate(records, []temps.Field{temps.FieldRegion}, temps.FieldTempCelsius)
	if err != nil {
		return render.ChartSpec{}, fmt.Errorf("regional aggregation: %w", err)
	}
	summary.SortByMean()

	return render.RegionalBar(summary, mode, s.palettes), nil
}

// SeasonalChart builds the monthly mean lines for the selected regions.
// Regions with no observations are skipped with a warning, matching the
// permissive selection semantics; an empty selection yields an empty chart.
func (s *DashboardService) SeasonalChart(ctx context.Context, datasetID string, regions []string) (render.ChartSpec, error) {
	records, err := s.cleanedRecords(ctx, datasetID)
	if err != nil {
		return render.ChartSpec{}, err
	}

	seasonal, err := temps.Aggregate(records, []temps.Field{temps.FieldRegion, temps.FieldMonth}, temps.FieldTempCelsius)
	if err != nil {
		return render.ChartSpec{}, fmt.Errorf("seasonal aggregation: %w", err)
	}

	spec, skipped := render.SeasonalLines(seasonal, regions, s.palettes)
	if len(skipped) > 0 {
		if logger := loggerFromContext(ctx); logger != nil {
			logger.Warn("no data for selected regions", zap.Strings("regions", skipped))
		}
	}
	return spec, nil
}

// CityTrendsChart builds the daily temperature lines for the selected cities
// in one year. Cities or years with no observations degrade to missing or
// empty series, never errors.
func (s *DashboardService) CityTrendsChart(ctx context.Context, datasetID string, cities []string, year int) (render.ChartSpec, error) {
	records, err := s.cleanedRecords(ctx, datasetID)
	if err != nil {
		return render.ChartSpec{}, err
	}
	return render.CityTrendLines(records, cities, year, s.palettes), nil
}

// HeatmapChart builds the per-country choropleth fills with the hottest
// country annotated.
func (s *DashboardService) HeatmapChart(ctx context.Context, datasetID string) (render.ChartSpec, error) {
	records, err := s.cleanedRecords(ctx, datasetID)
	if err != nil {
		return render.ChartSpec{}, err
	}

	byCountry, err := temps.Aggregate(records, []temps.Field{temps.FieldCountry}, temps.FieldTempCelsius)
	if err != nil {
		return render.ChartSpec{}, fmt.Errorf("country aggregation: %w", err)
	}
	return render.Heatmap(byCountry, s.palettes), nil
}
