package services

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"udip-dashboard/internal/config"
	"udip-dashboard/internal/dataset"
	apperrors "udip-dashboard/internal/errors"
	"udip-dashboard/internal/export"
	"udip-dashboard/internal/forecast"
	"udip-dashboard/internal/logistics"
	"udip-dashboard/internal/maintenance"
	"udip-dashboard/internal/ml"
	"udip-dashboard/internal/models"
	"udip-dashboard/internal/observability"
	"udip-dashboard/internal/pricing"
)

const (
	cacheVersion = "v3"

	MinForecastDays = 7
	MaxForecastDays = 90
)

// Pipeline stage names, used as keys of PrecomputedData.Failures.
const (
	StageDelay   = "delay"
	StageFailure = "failure"
	StagePricing = "pricing"
)

type PrecomputedData struct {
	RunID         string
	Fingerprint   string
	SourceModTime time.Time
	LastModified  time.Time
	RecordCount   int64

	Summary       Summary
	RouteRisks    []models.RouteRisk
	MachineHealth []models.MachineHealth
	Maintenance   []models.MaintenanceTask
	Pricing       []models.PricingRecommendation
	Metrics       models.ModelMetrics

	// Dropped counts rows each stage could not join or validate.
	Dropped map[string]int
	// Failures records the error of each stage that produced no output.
	Failures map[string]string
}

type ProductForecast struct {
	ProductID string                 `json:"product_id"`
	History   []models.DailyQuantity `json:"history"`
	Forecast  []models.Forecast      `json:"forecast"`
}

type Analytics struct {
	mu          sync.RWMutex
	precomputed *PrecomputedData
	data        *dataset.Dataset
	cfg         config.PipelineConfig
	cacheDir    string
	sinks       export.Sinks
	runs        atomic.Int64
	logger      *slog.Logger
}

func NewAnalytics(cfg config.PipelineConfig, cacheDir string, logger *slog.Logger) *Analytics {
	return &Analytics{
		precomputed: &PrecomputedData{},
		cfg:         cfg,
		cacheDir:    cacheDir,
		logger:      observability.Component(logger, "analytics"),
	}
}

// SetSinks registers the exporters notified after every fresh pipeline run.
func (a *Analytics) SetSinks(sinks ...export.Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = sinks
}

// SetData runs every pipeline over ds and replaces the served results.
func (a *Analytics) SetData(ctx context.Context, ds *dataset.Dataset) error {
	result, err := a.Run(ctx, ds)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.data = ds
	a.precomputed = result
	a.mu.Unlock()

	a.publish(ctx, result)
	return nil
}

// LoadFromDir loads the CSV tables and serves cached results when the cache
// was built from the same files with the same pipeline parameters.
func (a *Analytics) LoadFromDir(ctx context.Context, loader *dataset.Loader) error {
	modTime, err := loader.ModTime()
	if err != nil {
		return apperrors.MissingData("dataset files are not readable").WithDetails("%v", err)
	}

	ds, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	cacheKey := loader.Dir()
	if cached, err := a.loadFromCache(cacheKey); err == nil &&
		cached.Fingerprint == a.cfg.Fingerprint() && cached.SourceModTime.Equal(modTime) {
		a.mu.Lock()
		a.data = ds
		a.precomputed = cached
		a.mu.Unlock()
		a.logger.Info("loaded from cache", "run_id", cached.RunID, "records", cached.RecordCount)
		return nil
	}

	result, err := a.Run(ctx, ds)
	if err != nil {
		return err
	}
	result.SourceModTime = modTime

	a.mu.Lock()
	a.data = ds
	a.precomputed = result
	a.mu.Unlock()

	if len(result.Failures) == 0 {
		if err := a.saveToCache(cacheKey, result); err != nil {
			a.logger.Warn("failed to save cache", "error", err)
		}
	}
	a.publish(ctx, result)
	return nil
}

type delayResult struct {
	risks   []models.RouteRisk
	metrics models.DelayMetrics
	dropped int
}

type failureResult struct {
	health   []models.MachineHealth
	schedule []models.MaintenanceTask
	metrics  models.FailureMetrics
	dropped  int
}

type pricingResult struct {
	recs    []models.PricingRecommendation
	dropped int
}

// Run executes the delay, failure and pricing pipelines concurrently. A
// failing stage leaves its tables empty and is recorded in Failures; the
// other stages are unaffected. Only cancellation fails the run.
func (a *Analytics) Run(ctx context.Context, ds *dataset.Dataset) (*PrecomputedData, error) {
	if ds == nil {
		return nil, apperrors.MissingData("no dataset")
	}
	ctx, span := observability.StartSpan(ctx, "pipeline.run")
	defer span.End(a.logger)

	start := time.Now()
	runID := uuid.NewString()
	span.SetTag("run_id", runID)
	logger := a.logger.With("run_id", runID)

	var (
		delay   delayResult
		failure failureResult
		prices  pricingResult
		errs    [3]error
	)

	stages := []func(){
		func() { delay, errs[0] = a.runDelay(ctx, ds, logger) },
		func() { failure, errs[1] = a.runFailure(ctx, ds, logger) },
		func() { prices, errs[2] = a.runPricing(ctx, ds, logger) },
	}
	var wg sync.WaitGroup
	wg.Add(len(stages))
	for _, stage := range stages {
		go func() {
			defer wg.Done()
			stage()
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		span.SetError(err)
		return nil, err
	}

	result := &PrecomputedData{
		RunID:         runID,
		Fingerprint:   a.cfg.Fingerprint(),
		LastModified:  time.Now(),
		RecordCount:   int64(ds.Rows()),
		Summary:       summarize(ds, a.cfg.TopProducts),
		RouteRisks:    delay.risks,
		MachineHealth: failure.health,
		Maintenance:   failure.schedule,
		Pricing:       prices.recs,
		Metrics:       models.ModelMetrics{Delay: delay.metrics, Failure: failure.metrics},
		Dropped: map[string]int{
			StageDelay:   delay.dropped,
			StageFailure: failure.dropped,
			StagePricing: prices.dropped,
		},
		Failures: make(map[string]string),
	}
	for i, stage := range []string{StageDelay, StageFailure, StagePricing} {
		if errs[i] != nil {
			result.Failures[stage] = errs[i].Error()
			logger.Error("pipeline stage failed", "stage", stage, "error", errs[i])
		}
	}
	for table, n := range ds.Skipped {
		if n > 0 {
			result.Dropped["load_"+table] = n
		}
	}
	result.Dropped["summary_unmatched_orders"] = result.Summary.UnmatchedOrders
	result.Summary.MachinesByRisk = machinesByRisk(failure.health)

	a.runs.Add(1)
	logger.Info("pipeline run complete",
		"records", result.RecordCount,
		"routes", len(result.RouteRisks),
		"machines", len(result.MachineHealth),
		"products", len(result.Pricing),
		"failed_stages", len(result.Failures),
		"duration", time.Since(start),
	)
	return result, nil
}

func (a *Analytics) forestOptions() ml.ForestOptions {
	opts := ml.DefaultForestOptions(a.cfg.Seed)
	opts.Trees = a.cfg.ForestTrees
	opts.MaxDepth = a.cfg.ForestDepth
	opts.Workers = a.cfg.Workers
	return opts
}

func (a *Analytics) runDelay(ctx context.Context, ds *dataset.Dataset, logger *slog.Logger) (res delayResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.delay")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End(logger)
	}()

	opts := logistics.DefaultDelayOptions(a.cfg.Seed)
	opts.TestFraction = a.cfg.TestFraction
	opts.ClampNegative = a.cfg.ClampNegativeDelay
	opts.RouteHistoryOnGrid = a.cfg.GridRouteHistory

	predictor := logistics.NewDelayPredictor(ml.NewRandomForestRegressor(a.forestOptions()), opts, logger)
	model, err := predictor.Fit(ctx, ds.Shipments, ds.Routes)
	if err != nil {
		return res, err
	}

	risks, unmatched := logistics.RecommendRoutes(model.PredictGrid(ds.Routes), ds.Routes, a.cfg.TopRoutes)
	return delayResult{
		risks:   risks,
		metrics: model.Metrics,
		dropped: model.Dropped.Total() + unmatched,
	}, nil
}

func (a *Analytics) classifier() ml.Classifier {
	if a.cfg.Classifier == config.ClassifierVote {
		return ml.NewVotingForestClassifier(a.cfg.ForestTrees)
	}
	return ml.NewRandomForestClassifier(a.forestOptions())
}

func (a *Analytics) runFailure(ctx context.Context, ds *dataset.Dataset, logger *slog.Logger) (res failureResult, err error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.failure")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End(logger)
	}()

	opts := maintenance.DefaultFailureOptions(a.cfg.Seed)
	opts.TestFraction = a.cfg.TestFraction
	opts.Window = a.cfg.RollingWindow

	predictor := maintenance.NewFailurePredictor(a.classifier(), opts, logger)
	model, err := predictor.Fit(ctx, ds.Sensors, ds.Machines)
	if err != nil {
		return res, err
	}

	health := model.Health()
	return failureResult{
		health:   health,
		schedule: maintenance.Schedule(health),
		metrics:  model.Metrics,
		dropped:  model.Dropped.Total(),
	}, nil
}

func (a *Analytics) runPricing(ctx context.Context, ds *dataset.Dataset, logger *slog.Logger) (res pricingResult, err error) {
	_, span := observability.StartSpan(ctx, "pipeline.pricing")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End(logger)
	}()

	rec := pricing.NewRecommender(forecast.NewSimpleExponentialSmoothing(a.cfg.SmoothingAlpha),
		a.cfg.ForecastHorizon, a.cfg.TopProducts, logger)
	recs, dropped, err := rec.Recommend(ds.Orders, ds.Products, ds.Competitors)
	if err != nil {
		return res, err
	}
	return pricingResult{recs: recs, dropped: dropped}, nil
}

func (a *Analytics) publish(ctx context.Context, result *PrecomputedData) {
	a.mu.RLock()
	sinks := a.sinks
	a.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}

	report := export.Report{
		RunID:         result.RunID,
		GeneratedAt:   result.LastModified,
		RouteRisks:    result.RouteRisks,
		MachineHealth: result.MachineHealth,
		Pricing:       result.Pricing,
	}
	if err := sinks.Publish(ctx, report); err != nil {
		a.logger.Warn("report export failed", "run_id", result.RunID, "error", err)
	}
}

// Forecast projects a product's daily demand for days in [7, 90] alongside
// its daily history.
func (a *Analytics) Forecast(productID string, days int) (*ProductForecast, error) {
	if days < MinForecastDays || days > MaxForecastDays {
		return nil, apperrors.Validation(
			fmt.Sprintf("forecast horizon must be between %d and %d days, got %d", MinForecastDays, MaxForecastDays, days))
	}

	a.mu.RLock()
	ds := a.data
	a.mu.RUnlock()
	if ds == nil {
		return nil, apperrors.ServiceUnavailable("dataset not loaded")
	}

	fc, series, err := forecast.ForecastProduct(ds.Orders, productID, days,
		forecast.NewSimpleExponentialSmoothing(a.cfg.SmoothingAlpha))
	if err != nil {
		return nil, err
	}
	return &ProductForecast{ProductID: productID, History: series.Points(), Forecast: fc}, nil
}

// ForecastProducts lists the ids of products that have orders, sorted.
func (a *Analytics) ForecastProducts() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.data == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, o := range a.data.Orders {
		seen[o.ProductID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Cache management
func (a *Analytics) getCacheFilename(source string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(filepath.Clean(source))
	return filepath.Join(a.cacheDir, fmt.Sprintf("%s_%s_%s.gob", name, a.cfg.Fingerprint(), cacheVersion))
}

func (a *Analytics) saveToCache(source string, data *PrecomputedData) error {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return err
	}

	file, err := os.Create(a.getCacheFilename(source))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(data)
}

func (a *Analytics) loadFromCache(source string) (*PrecomputedData, error) {
	file, err := os.Open(a.getCacheFilename(source))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data PrecomputedData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Snapshot returns the current results. Callers must not modify them.
func (a *Analytics) Snapshot() *PrecomputedData {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed
}

// Ready reports whether a pipeline run (fresh or cached) has been installed.
func (a *Analytics) Ready() bool {
	return a.Snapshot().RunID != ""
}

func (a *Analytics) Summary() Summary {
	return a.Snapshot().Summary
}

func (a *Analytics) KPIs() models.KPIs {
	return a.Snapshot().Summary.KPIs
}

func (a *Analytics) RouteRisks(n int) []models.RouteRisk {
	return limit(a.Snapshot().RouteRisks, n)
}

func (a *Analytics) MachineHealth(n int) []models.MachineHealth {
	return limit(a.Snapshot().MachineHealth, n)
}

func (a *Analytics) MaintenanceSchedule() []models.MaintenanceTask {
	return a.Snapshot().Maintenance
}

func (a *Analytics) Pricing() []models.PricingRecommendation {
	return a.Snapshot().Pricing
}

func (a *Analytics) Metrics() models.ModelMetrics {
	return a.Snapshot().Metrics
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	p := a.Snapshot()
	return map[string]any{
		"run_id":         p.RunID,
		"record_count":   p.RecordCount,
		"last_processed": p.LastModified,
		"runs":           a.runs.Load(),
		"routes":         len(p.RouteRisks),
		"machines":       len(p.MachineHealth),
		"products":       len(p.Pricing),
		"dropped":        p.Dropped,
		"failures":       p.Failures,
	}
}
