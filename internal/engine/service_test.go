package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	apperrors "github.com/mrcode/promille/internal/errors"
	"github.com/mrcode/promille/internal/metrics"
	"github.com/mrcode/promille/internal/models"
)

type recorder struct {
	mu       sync.Mutex
	started  int
	finished []models.ResultMap
	failed   []error
	done     chan struct{}
}

func newRecorder(e *Engine) *recorder {
	r := &recorder{done: make(chan struct{}, 16)}
	e.OnComputationStarted(func() {
		r.mu.Lock()
		r.started++
		r.mu.Unlock()
	})
	e.OnComputationFinished(func(res models.ResultMap) {
		r.mu.Lock()
		r.finished = append(r.finished, res)
		r.mu.Unlock()
		r.done <- struct{}{}
	})
	e.OnComputationFailed(func(err error) {
		r.mu.Lock()
		r.failed = append(r.failed, err)
		r.mu.Unlock()
		r.done <- struct{}{}
	})
	return r
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("No computation event received")
	}
}

func (r *recorder) counts() (started, finished, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started, len(r.finished), len(r.failed)
}

func setupEngine(t *testing.T) (*Engine, *clock.Mock, *metrics.Metrics) {
	t.Helper()
	mock := clock.NewMock()
	m := metrics.New()
	e := New(Config{Clock: mock, Metrics: m, CacheLimit: 3})
	return e, mock, m
}

func drinksAt(at time.Time, volumes ...float64) []models.DrinkEvent {
	drinks := make([]models.DrinkEvent, len(volumes))
	for i, v := range volumes {
		drinks[i] = models.DrinkEvent{Name: "Beer", Volume: v, ABV: 5, Time: at.Add(time.Duration(i) * time.Hour)}
	}
	return drinks
}

func TestEngine_DebounceCoalescesEdits(t *testing.T) {
	e, mock, _ := setupEngine(t)
	rec := newRecorder(e)
	at := mock.Now()

	e.SetSubject(models.DefaultSubject())
	mock.Add(100 * time.Millisecond)
	e.SetSettings(*models.DefaultCalculationSettings())
	mock.Add(100 * time.Millisecond)
	e.SetDrinks(drinksAt(at, 330))
	mock.Add(100 * time.Millisecond)
	e.SetDrinks(drinksAt(at, 500, 500))

	if started, finished, failed := rec.counts(); started+finished+failed != 0 {
		t.Fatalf("Computation ran inside the quiet period")
	}

	mock.Add(300 * time.Millisecond)
	rec.wait(t)

	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)

	started, finished, failed := rec.counts()
	if started != 1 || finished != 1 || failed != 0 {
		t.Fatalf("Events = (%d started, %d finished, %d failed), want (1, 1, 0)", started, finished, failed)
	}

	res := rec.finished[0][models.Widmark]
	want := models.TotalAlcoholGrams(drinksAt(at, 500, 500))
	if res == nil || res.TotalAlcoholGrams != want {
		t.Errorf("Result was not computed from the last drinks, got %+v", res)
	}
}

func TestEngine_ForceRecomputeIsIdempotent(t *testing.T) {
	e, mock, m := setupEngine(t)
	rec := newRecorder(e)

	e.SetSubject(models.DefaultSubject())
	e.SetDrinks(drinksAt(mock.Now(), 500))
	e.SetSettings(*models.DefaultCalculationSettings())

	first, err := e.ForceRecompute()
	if err != nil {
		t.Fatalf("ForceRecompute failed: %v", err)
	}
	second, err := e.ForceRecompute()
	if err != nil {
		t.Fatalf("ForceRecompute failed: %v", err)
	}

	for _, id := range models.AllModels() {
		if first[id] == nil || first[id] != second[id] {
			t.Errorf("%s: second run did not return the cached result", id)
		}
	}
	if s := e.CacheStatistics(); s.Size != 1 || s.Limit != 3 {
		t.Errorf("CacheStatistics = %+v, want {1 3}", s)
	}
	if got := testutil.ToFloat64(m.CacheHits); got != 1 {
		t.Errorf("Cache hits = %v, want 1", got)
	}

	// the pending debounced run was cancelled
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	if started, _, _ := rec.counts(); started != 2 {
		t.Errorf("Started = %d, want 2", started)
	}

	e.ClearCache()
	if s := e.CacheStatistics(); s.Size != 0 {
		t.Errorf("Size after ClearCache = %d, want 0", s.Size)
	}
}

func TestEngine_MissingInput(t *testing.T) {
	e, _, m := setupEngine(t)
	rec := newRecorder(e)

	e.SetSubject(models.DefaultSubject())
	e.SetSettings(*models.DefaultCalculationSettings())

	_, err := e.ForceRecompute()
	if !errors.Is(err, apperrors.ErrMissingInput) {
		t.Fatalf("ForceRecompute error = %v, want ErrMissingInput", err)
	}

	started, finished, failed := rec.counts()
	if started != 0 || finished != 0 || failed != 1 {
		t.Errorf("Events = (%d, %d, %d), want (0, 0, 1)", started, finished, failed)
	}
	if got := testutil.ToFloat64(m.Computations.WithLabelValues(metrics.OutcomeFailed)); got != 1 {
		t.Errorf("Failed computations = %v, want 1", got)
	}
}

func TestEngine_NoModelSelected(t *testing.T) {
	e, mock, _ := setupEngine(t)

	settings := models.DefaultCalculationSettings()
	settings.Models = nil

	e.SetSubject(models.DefaultSubject())
	e.SetDrinks(drinksAt(mock.Now(), 500))
	e.SetSettings(*settings)

	if _, err := e.ForceRecompute(); !errors.Is(err, apperrors.ErrNoModelSelected) {
		t.Errorf("ForceRecompute error = %v, want ErrNoModelSelected", err)
	}
}

func TestEngine_InputsAreCopied(t *testing.T) {
	e, mock, _ := setupEngine(t)

	drinks := drinksAt(mock.Now(), 500)
	e.SetDrinks(drinks)
	drinks[0].Volume = 1

	_, got, _ := e.Inputs()
	if got[0].Volume != 500 {
		t.Errorf("Stored drink volume = %v, want 500", got[0].Volume)
	}
}

func TestEngine_Validate(t *testing.T) {
	e, mock, m := setupEngine(t)
	at := mock.Now()

	if _, err := e.Validate("", at, 0.3, models.MethodGCFID); !errors.Is(err, apperrors.ErrNoResults) {
		t.Fatalf("Validate before results error = %v, want ErrNoResults", err)
	}

	e.SetSubject(models.DefaultSubject())
	e.SetDrinks(drinksAt(at, 500))
	e.SetSettings(*models.DefaultCalculationSettings())
	results, err := e.ForceRecompute()
	if err != nil {
		t.Fatalf("ForceRecompute failed: %v", err)
	}

	peak := results[models.Watson]
	report, err := e.Validate(models.Watson, peak.PeakTime, peak.PeakBAC, models.MethodHeadspace)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if report.Rows[0].Classification != models.Consistent {
		t.Errorf("Classification = %s, want consistent", report.Rows[0].Classification)
	}

	all, err := e.Validate("", peak.PeakTime, peak.PeakBAC, models.MethodHeadspace)
	if err != nil {
		t.Fatalf("Validate all failed: %v", err)
	}
	if len(all.Rows) != 4 {
		t.Errorf("Rows = %d, want 4", len(all.Rows))
	}
	if got := testutil.ToFloat64(m.Validations.WithLabelValues(string(models.Consistent))); got < 1 {
		t.Errorf("Consistent validation rows = %v, want >= 1", got)
	}
}

func TestConfigFromSettings(t *testing.T) {
	s := models.DefaultSettings()
	s.CacheLimit = 12
	s.DebounceMillis = 150

	cfg := ConfigFromSettings(s)
	if cfg.CacheLimit != 12 || cfg.QuietPeriod != 150*time.Millisecond {
		t.Errorf("Config = %+v, want limit 12 and 150ms", cfg)
	}
}
