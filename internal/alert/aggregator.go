// Package alert runs one wind alert pass: fetch forecasts, flag hazards, score sources
// against station history, persist accuracy and dispatch the report.
package alert

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/wind-alert/internal/accuracy"
	"github.com/kjstillabower/wind-alert/internal/conditions"
	"github.com/kjstillabower/wind-alert/internal/forecast"
	"github.com/kjstillabower/wind-alert/internal/models"
	"github.com/kjstillabower/wind-alert/internal/notify"
	"github.com/kjstillabower/wind-alert/internal/observability"
	"github.com/kjstillabower/wind-alert/internal/observations"
	"github.com/kjstillabower/wind-alert/internal/reconcile"
)

// State is a stage of a run. A run moves through the states in declaration order.
type State string

const (
	StateFetchingForecasts State = "FETCHING_FORECASTS"
	StateFiltering         State = "FILTERING"
	StateReconciling       State = "RECONCILING"
	StateUpdatingAccuracy  State = "UPDATING_ACCURACY"
	StateComposing         State = "COMPOSING"
	StateDispatching       State = "DISPATCHING"
	StateDone              State = "DONE"
)

// ObservationFetcher returns station readings for a time window.
type ObservationFetcher interface {
	FetchObservations(ctx context.Context, start, end time.Time) (models.ObservationSeries, error)
}

// AccuracyStore loads and persists the accuracy snapshot.
type AccuracyStore interface {
	Load(ctx context.Context) (accuracy.Snapshot, error)
	Save(ctx context.Context, updates accuracy.Snapshot) error
}

// Dispatcher delivers the composed report.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) notify.Result
}

// Config holds the run parameters.
type Config struct {
	Latitude  string
	Longitude string
	// PlaceName labels the point in the report header.
	PlaceName string
	// Horizon bounds how far ahead predictions are considered. Default 72h.
	Horizon time.Duration
	// ObservationWindow is the trailing station history window. Default 24h.
	ObservationWindow time.Duration
	// SourceTimeout bounds each forecast fetch. Default 20s.
	SourceTimeout time.Duration
	// Concurrency limits simultaneous forecast fetches. Default 4.
	Concurrency int
	// Location is the zone report times are rendered in. Default UTC.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.Horizon <= 0 {
		c.Horizon = 72 * time.Hour
	}
	if c.ObservationWindow <= 0 {
		c.ObservationWindow = 24 * time.Hour
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = 20 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Dependencies are the collaborators of an Aggregator. Observations may be nil, in
// which case reconciliation is skipped every run.
type Dependencies struct {
	Sources      []forecast.Source
	Matcher      *conditions.Matcher
	Reconciler   reconcile.Reconciler
	Observations ObservationFetcher
	Tracker      AccuracyStore
	Dispatcher   Dispatcher
	Logger       *zap.Logger
}

// AlertWindow is an upcoming hazardous prediction with its zone label.
type AlertWindow struct {
	Prediction models.WindPrediction
	Zone       string
}

// SourceReport is the outcome of one source in a run.
type SourceReport struct {
	SourceID string
	// Err is the fetch failure; the source contributed nothing else when set.
	Err error
	// Upcoming are hazardous predictions after now, by time.
	Upcoming []AlertWindow
	// Evaluated is the number of matured hazardous predictions reconciled this run.
	Evaluated int
	// Accuracy is the record persisted (or carried forward) for the source.
	Accuracy models.SourceAccuracy
}

// Result is what a run produced. Message is set even when delivery failed.
type Result struct {
	Message         string
	Sources         []SourceReport
	Observed        []observations.Observation
	AccuracyUpdated bool
	Dispatch        notify.Result
}

// Hazards returns the number of upcoming hazardous predictions across sources.
func (r Result) Hazards() int {
	n := 0
	for _, s := range r.Sources {
		n += len(s.Upcoming)
	}
	return n
}

// Aggregator orchestrates one run. It holds no state between runs.
type Aggregator struct {
	cfg  Config
	deps Dependencies
	now  func() time.Time
}

// NewAggregator returns an Aggregator for cfg and deps.
func NewAggregator(cfg Config, deps Dependencies) *Aggregator {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Matcher == nil {
		deps.Matcher = conditions.NewMatcher(conditions.DefaultThresholds, conditions.DefaultZones)
	}
	return &Aggregator{cfg: cfg.withDefaults(), deps: deps, now: time.Now}
}

type sourceData struct {
	report  SourceReport
	preds   []models.WindPrediction
	matured []models.WindPrediction
}

// Run executes one pass. The only error returned is a failure to load or persist the
// accuracy snapshot; every other failure is logged and the run continues.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	start := a.now()
	defer func() {
		observability.RunDuration.Set(time.Since(start).Seconds())
	}()

	logger := a.deps.Logger
	if runID := observability.RunIDFromContext(ctx); runID != "" {
		logger = logger.With(zap.String("run_id", runID))
	}
	enter := func(s State) {
		logger.Info("stage", zap.String("state", string(s)))
	}

	var res Result
	now := start

	enter(StateFetchingForecasts)
	data := a.fetchAll(ctx, logger)

	enter(StateFiltering)
	for i := range data {
		a.filter(&data[i], now)
	}

	enter(StateReconciling)
	series, haveObservations := a.fetchObservations(ctx, now, logger)
	if haveObservations {
		res.Observed = observations.ObservedHazards(series, a.deps.Matcher, now.Add(-a.cfg.ObservationWindow))
	}

	enter(StateUpdatingAccuracy)
	updated, err := a.updateAccuracy(ctx, data, series, haveObservations, logger)
	for _, d := range data {
		res.Sources = append(res.Sources, d.report)
	}
	if err != nil {
		return res, err
	}
	res.AccuracyUpdated = updated

	enter(StateComposing)
	res.Message = a.compose(res)

	enter(StateDispatching)
	if a.deps.Dispatcher != nil {
		res.Dispatch = a.deps.Dispatcher.Dispatch(ctx, res.Message)
	}

	enter(StateDone)
	logger.Info("run complete",
		zap.Int("sources", len(data)),
		zap.Int("hazards", res.Hazards()),
		zap.Int("observed_hazards", len(res.Observed)),
		zap.Int("sent", res.Dispatch.Sent),
		zap.Int("failed", res.Dispatch.Failed),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// fetchAll queries every source concurrently, each under its own timeout. A failed
// source keeps its slot with Err set.
func (a *Aggregator) fetchAll(ctx context.Context, logger *zap.Logger) []sourceData {
	data := make([]sourceData, len(a.deps.Sources))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, src := range a.deps.Sources {
		i, src := i, src
		data[i].report.SourceID = src.ID()
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gCtx, a.cfg.SourceTimeout)
			defer cancel()

			preds, err := src.Fetch(sctx, a.cfg.Latitude, a.cfg.Longitude)
			if err != nil {
				logger.Warn("forecast source failed, excluding from run",
					zap.String("source", src.ID()),
					zap.String("category", string(forecast.CategorizeError(err))),
					zap.Error(err))
				data[i].report.Err = err
				return nil
			}
			logger.Debug("forecast fetched", zap.String("source", src.ID()), zap.Int("predictions", len(preds)))
			data[i].preds = preds
			return nil
		})
	}
	_ = g.Wait()
	return data
}

func (a *Aggregator) filter(d *sourceData, now time.Time) {
	if d.report.Err != nil {
		return
	}
	limit := now.Add(a.cfg.Horizon)
	for _, p := range d.preds {
		if p.Timestamp.After(limit) || !a.deps.Matcher.IsHazardous(p.Speed, p.Direction) {
			continue
		}
		if p.Timestamp.After(now) {
			d.report.Upcoming = append(d.report.Upcoming, AlertWindow{
				Prediction: p,
				Zone:       a.deps.Matcher.ClassifyZone(p.Direction),
			})
		} else {
			d.matured = append(d.matured, p)
		}
	}
	sort.SliceStable(d.report.Upcoming, func(i, j int) bool {
		return d.report.Upcoming[i].Prediction.Timestamp.Before(d.report.Upcoming[j].Prediction.Timestamp)
	})
	observability.HazardWindows.WithLabelValues(d.report.SourceID).Set(float64(len(d.report.Upcoming)))
}

func (a *Aggregator) fetchObservations(ctx context.Context, now time.Time, logger *zap.Logger) (models.ObservationSeries, bool) {
	if a.deps.Observations == nil {
		logger.Info("no station configured, skipping reconciliation")
		return models.ObservationSeries{}, false
	}
	series, err := a.deps.Observations.FetchObservations(ctx, now.Add(-a.cfg.ObservationWindow), now)
	if err != nil {
		logger.Warn("station history unavailable, skipping reconciliation", zap.Error(err))
		return models.ObservationSeries{}, false
	}
	logger.Debug("station history fetched", zap.Int("readings", series.Len()))
	return series, true
}

// updateAccuracy recomputes the counters of every source fetched this run from its
// matured hazardous predictions alone; other sources keep their stored entries.
func (a *Aggregator) updateAccuracy(ctx context.Context, data []sourceData, series models.ObservationSeries, haveObservations bool, logger *zap.Logger) (bool, error) {
	if a.deps.Tracker == nil {
		return false, nil
	}
	loaded, err := a.deps.Tracker.Load(ctx)
	if err != nil {
		return false, err
	}

	updates := accuracy.Snapshot{}
	for i := range data {
		d := &data[i]
		d.report.Accuracy = loaded.Get(d.report.SourceID)
		if !haveObservations || d.report.Err != nil {
			continue
		}

		acc := models.SourceAccuracy{SourceID: d.report.SourceID}
		for _, p := range d.matured {
			acc = accuracy.RecordEvaluation(acc, a.deps.Reconciler.WasAccurate(p, series))
		}
		d.report.Evaluated = len(d.matured)
		d.report.Accuracy = acc
		updates[d.report.SourceID] = acc
	}

	for _, d := range data {
		observability.SourceAccuracyPercent.WithLabelValues(d.report.SourceID).Set(accuracy.Percentage(d.report.Accuracy))
	}

	if len(updates) == 0 {
		logger.Info("accuracy not updated this run")
		return false, nil
	}
	if err := a.deps.Tracker.Save(ctx, updates); err != nil {
		return false, fmt.Errorf("persist accuracy: %w", err)
	}
	return true, nil
}
