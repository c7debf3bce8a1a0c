package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/facebookgo/clock"

	"github.com/mrcode/promille/internal/engine"
	"github.com/mrcode/promille/internal/models"
	"github.com/mrcode/promille/internal/scenario"
)

// fixedClock reports a constant instant and uses the wrapped clock for timers
type fixedClock struct {
	clock.Clock
	at time.Time
}

func (c fixedClock) Now() time.Time { return c.at }

// Outcome is the evaluation of one scenario
type Outcome struct {
	Scenario *scenario.Scenario
	Results  models.ResultMap
	Report   *models.ValidationReport // nil without a measurement
}

// EvaluatedAt returns the instant the curves were evaluated at
func (o *Outcome) EvaluatedAt() time.Time {
	for _, res := range o.Results {
		return res.EvaluatedAt
	}
	return time.Time{}
}

func (a *App) engineConfig() engine.Config {
	cfg := engine.ConfigFromSettings(a.settings)
	cfg.Logger = a.logger
	cfg.Metrics = a.metrics
	return cfg
}

// Evaluate computes the scenario at its own evaluation instant and validates m
// against the curves when m is set
func (a *App) Evaluate(s *scenario.Scenario, m *scenario.Measurement) (*Outcome, error) {
	cfg := a.engineConfig()
	cfg.Clock = fixedClock{Clock: a.clock, at: s.EvaluatedAt(a.clock.Now())}
	eng := engine.New(cfg)

	setInputs(eng, s)
	results, err := eng.ForceRecompute()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}

	out := &Outcome{Scenario: s, Results: results}
	if m != nil {
		report, err := eng.Validate(m.Model, m.Time, m.BAC, m.Method)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		out.Report = report
	}
	return out, nil
}

func setInputs(eng *engine.Engine, s *scenario.Scenario) {
	eng.SetSubject(s.Subject)
	eng.SetDrinks(s.Drinks)
	eng.SetSettings(s.Settings)
}

// Watcher reloads a scenario file when it changes and keeps the curves of a
// long-lived engine current. Results go to stdout and the alert manager.
type Watcher struct {
	app      *App
	path     string
	engine   *engine.Engine
	interval time.Duration // file poll interval
	refresh  time.Duration // recompute interval for the current BAC

	lastMod time.Time
}

// NewWatcher creates a watcher for the scenario at path
func (a *App) NewWatcher(path string, interval, refresh time.Duration) *Watcher {
	cfg := a.engineConfig()
	cfg.Clock = a.clock
	eng := engine.New(cfg)

	w := &Watcher{
		app:      a,
		path:     path,
		engine:   eng,
		interval: interval,
		refresh:  refresh,
	}

	eng.OnComputationFinished(w.handleResults)
	eng.OnComputationFailed(func(err error) {
		a.logger.Error("BAC computation failed", "path", path, "error", err)
	})

	return w
}

// Run polls the scenario file until ctx is done. Only the first load must succeed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.reload(); err != nil {
		return err
	}
	defer w.engine.Stop()

	ticker := w.app.clock.Ticker(w.interval)
	defer ticker.Stop()
	refresh := w.app.clock.Ticker(w.refresh)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.reload(); err != nil {
				w.app.logger.Warn("Reloading scenario failed", "path", w.path, "error", err)
			}
		case <-refresh.C:
			// cached results keep the BAC of their own run
			w.engine.ClearCache()
			_, _ = w.engine.ForceRecompute()
		}
	}
}

// reload feeds the scenario into the engine when the file changed since the last load
func (w *Watcher) reload() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	if !w.lastMod.IsZero() && !info.ModTime().After(w.lastMod) {
		return nil
	}

	s, err := scenario.Load(w.path)
	if err != nil {
		return err
	}
	w.lastMod = info.ModTime()

	w.app.logger.Info("Scenario loaded", "path", w.path, "drinks", len(s.Drinks))
	setInputs(w.engine, s)
	return nil
}

func (w *Watcher) handleResults(results models.ResultMap) {
	model, bac := results.MaxCurrentBAC()
	fmt.Fprintf(w.app.stdout, "%s  %s %.2f ‰ (%s)\n",
		w.app.clock.Now().Format("15:04:05"), model, bac, w.app.settings.GetBACStatus(bac))

	if err := w.app.notifyManager.CheckAndNotify(results); err != nil {
		w.app.logger.Warn("Notification error", "error", err)
	}
}
