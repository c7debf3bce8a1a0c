// Package engine ties prediction, caching, debouncing and validation together
package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/mrcode/promille/internal/cache"
	"github.com/mrcode/promille/internal/debounce"
	apperrors "github.com/mrcode/promille/internal/errors"
	"github.com/mrcode/promille/internal/forensic"
	"github.com/mrcode/promille/internal/metrics"
	"github.com/mrcode/promille/internal/models"
	"github.com/mrcode/promille/internal/prediction"
)

// Config configures an Engine. Zero values select the defaults.
type Config struct {
	CacheLimit  int
	QuietPeriod time.Duration
	Clock       clock.Clock
	Scheduler   debounce.Scheduler
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	GridPolicy  *prediction.GridPolicy
}

// ConfigFromSettings derives the engine configuration from app settings
func ConfigFromSettings(s *models.Settings) Config {
	c := s.Clone()
	return Config{
		CacheLimit:  c.CacheLimit,
		QuietPeriod: time.Duration(c.DebounceMillis) * time.Millisecond,
	}
}

// Engine recomputes BAC curves whenever its inputs change. Results are shared
// with the cache and must not be modified by subscribers.
type Engine struct {
	clock     clock.Clock
	scheduler debounce.Scheduler
	quiet     time.Duration
	predictor *prediction.Predictor
	validator *forensic.Validator
	cache     *cache.Cache
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu       sync.RWMutex
	subject  *models.Subject
	drinks   []models.DrinkEvent
	settings *models.CalculationSettings
	latest   models.ResultMap
	running  bool

	// serializes recomputations
	runMu sync.Mutex

	hooksMu    sync.RWMutex
	onStarted  []func()
	onFinished []func(models.ResultMap)
	onFailed   []func(error)
}

// modelFailures adapts metrics to prediction.FailureObserver
type modelFailures struct{ m *metrics.Metrics }

func (f modelFailures) ModelFailed(model models.ModelID) { f.m.ModelFailed(string(model)) }

// New creates a new Engine
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = debounce.NewClockScheduler(cfg.Clock)
	}
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = debounce.DefaultQuietPeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := []prediction.Option{
		prediction.WithNow(cfg.Clock.Now),
		prediction.WithLogger(cfg.Logger),
		prediction.WithFailureObserver(modelFailures{cfg.Metrics}),
	}
	if cfg.GridPolicy != nil {
		opts = append(opts, prediction.WithGridPolicy(*cfg.GridPolicy))
	}

	c := cache.New(cfg.CacheLimit)
	if cfg.Metrics != nil {
		c.SetObserver(cfg.Metrics)
	}

	var rows forensic.RowObserver
	if cfg.Metrics != nil {
		rows = cfg.Metrics
	}

	return &Engine{
		clock:     cfg.Clock,
		scheduler: cfg.Scheduler,
		quiet:     cfg.QuietPeriod,
		predictor: prediction.NewPredictor(opts...),
		validator: forensic.NewValidator(cfg.Logger, rows),
		cache:     c,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// OnComputationStarted registers a hook called before every recomputation
func (e *Engine) OnComputationStarted(fn func()) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.onStarted = append(e.onStarted, fn)
}

// OnComputationFinished registers a hook receiving every result map
func (e *Engine) OnComputationFinished(fn func(models.ResultMap)) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.onFinished = append(e.onFinished, fn)
}

// OnComputationFailed registers a hook receiving input errors
func (e *Engine) OnComputationFailed(fn func(error)) {
	e.hooksMu.Lock()
	defer e.hooksMu.Unlock()
	e.onFailed = append(e.onFailed, fn)
}

// SetSubject replaces the subject and schedules a recomputation
func (e *Engine) SetSubject(subject models.Subject) {
	e.mu.Lock()
	e.subject = &subject
	e.mu.Unlock()

	e.trigger()
}

// SetDrinks replaces the drinks and schedules a recomputation
func (e *Engine) SetDrinks(drinks []models.DrinkEvent) {
	e.mu.Lock()
	e.drinks = append([]models.DrinkEvent(nil), drinks...)
	e.mu.Unlock()

	e.trigger()
}

// SetSettings replaces the calculation settings and schedules a recomputation
func (e *Engine) SetSettings(settings models.CalculationSettings) {
	e.mu.Lock()
	e.settings = settings.Clone()
	e.mu.Unlock()

	e.trigger()
}

func (e *Engine) trigger() {
	e.scheduler.Schedule(e.quiet, func() {
		// errors already reached the failure hooks
		_, _ = e.recompute()
	})
}

// ForceRecompute drops any pending recomputation and computes now
func (e *Engine) ForceRecompute() (models.ResultMap, error) {
	e.scheduler.CancelPending()
	return e.recompute()
}

// Stop drops any pending recomputation
func (e *Engine) Stop() {
	e.scheduler.CancelPending()
}

// IsComputing returns true while a recomputation is running
func (e *Engine) IsComputing() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// LatestResults returns the most recent result map, nil before the first success
func (e *Engine) LatestResults() models.ResultMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Inputs returns copies of the current inputs
func (e *Engine) Inputs() (*models.Subject, []models.DrinkEvent, *models.CalculationSettings) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var subject *models.Subject
	if e.subject != nil {
		s := *e.subject
		subject = &s
	}
	var settings *models.CalculationSettings
	if e.settings != nil {
		settings = e.settings.Clone()
	}
	var drinks []models.DrinkEvent
	if e.drinks != nil {
		drinks = append([]models.DrinkEvent(nil), e.drinks...)
	}
	return subject, drinks, settings
}

// CacheStatistics returns the cache size and limit
func (e *Engine) CacheStatistics() cache.Stats {
	return e.cache.Stats()
}

// ClearCache empties the result cache
func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.logger.Debug("Result cache cleared")
}

// Validate checks a measured BAC against the latest results. An empty model
// validates every model of the latest result.
func (e *Engine) Validate(
	model models.ModelID,
	at time.Time,
	measured float64,
	method models.MeasurementMethod,
) (*models.ValidationReport, error) {
	results := e.LatestResults()
	if results == nil {
		return nil, apperrors.ErrNoResults
	}
	return e.validator.Validate(results, model, at, measured, method)
}

func (e *Engine) recompute() (models.ResultMap, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	subject, drinks, settings := e.Inputs()
	logger := e.logger.With("run_id", uuid.NewString())

	if err := prediction.CheckInputs(subject, drinks, settings); err != nil {
		logger.Debug("Recomputation skipped", "error", err)
		e.metrics.ComputationDone(metrics.OutcomeFailed, 0)
		e.emitFailed(err)
		return nil, err
	}

	e.setRunning(true)
	defer e.setRunning(false)
	e.emitStarted()

	key := cache.Fingerprint(subject, drinks, settings)
	if results, ok := e.cache.Get(key); ok {
		logger.Debug("Using cached results", "fingerprint", key)
		e.metrics.ComputationDone(metrics.OutcomeCached, 0)
		e.publish(results)
		return results, nil
	}

	start := time.Now()
	results, err := e.predictor.Predict(subject, drinks, settings)
	if err != nil {
		logger.Warn("Recomputation failed", "error", err)
		e.metrics.ComputationDone(metrics.OutcomeFailed, 0)
		e.emitFailed(err)
		return nil, err
	}
	elapsed := time.Since(start)

	e.cache.Put(key, results)
	e.metrics.ComputationDone(metrics.OutcomeComputed, elapsed)
	logger.Info("Recomputed BAC curves",
		"fingerprint", key,
		"models", len(results),
		"drinks", len(drinks),
		"elapsed", elapsed,
	)

	e.publish(results)
	return results, nil
}

func (e *Engine) setRunning(running bool) {
	e.mu.Lock()
	e.running = running
	e.mu.Unlock()
}

func (e *Engine) publish(results models.ResultMap) {
	e.mu.Lock()
	e.latest = results
	e.mu.Unlock()

	e.hooksMu.RLock()
	hooks := append(([]func(models.ResultMap))(nil), e.onFinished...)
	e.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(results)
	}
}

func (e *Engine) emitStarted() {
	e.hooksMu.RLock()
	hooks := append(([]func())(nil), e.onStarted...)
	e.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn()
	}
}

func (e *Engine) emitFailed(err error) {
	e.hooksMu.RLock()
	hooks := append(([]func(error))(nil), e.onFailed...)
	e.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(err)
	}
}
