package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"

	"github.com/mrcode/promille/internal/models"
	"github.com/mrcode/promille/internal/scenario"
	"github.com/mrcode/promille/pkg/logging"
)

var baseTime = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

// syncBuffer is a bytes.Buffer safe for concurrent writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestApp(settings *models.Settings) (*App, *syncBuffer, *syncBuffer) {
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	a := New(settings, stdout, stderr, logging.New(io.Discard, slog.LevelError))
	a.notifyManager.SetNotifier(func(_, _, _ string) error { return nil })
	return a, stdout, stderr
}

func scenarioYAML(drinksAt time.Time, extra string) string {
	return fmt.Sprintf(`
subject:
  gender: male
  age: 30
  height: 180
  weight: 80
  bodyFat: 20
drinks:
  - name: Beer
    volume: 500
    abv: 5
    time: %s
  - name: Beer
    volume: 500
    abv: 5
    time: %s
%s`, drinksAt.Format(time.RFC3339), drinksAt.Add(20*time.Minute).Format(time.RFC3339), extra)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Usage(t *testing.T) {
	a, stdout, stderr := newTestApp(nil)
	ctx := context.Background()

	if err := a.Run(ctx, nil); !errors.Is(err, ErrUsage) {
		t.Errorf("Run() error = %v, want ErrUsage", err)
	}
	if err := a.Run(ctx, []string{"frobnicate"}); !errors.Is(err, ErrUsage) {
		t.Errorf("Run(unknown) error = %v, want ErrUsage", err)
	}
	if !strings.Contains(stderr.String(), "Unknown command: frobnicate") {
		t.Errorf("stderr = %q, want unknown command message", stderr.String())
	}

	if err := a.Run(ctx, []string{"version"}); err != nil {
		t.Fatalf("Run(version) failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "promille v"+Version) {
		t.Errorf("stdout = %q, want version", stdout.String())
	}

	if err := a.Run(ctx, []string{"compute", "-h"}); err != nil {
		t.Errorf("Run(compute -h) error = %v, want nil", err)
	}
	if err := a.Run(ctx, []string{"compute"}); !errors.Is(err, ErrUsage) {
		t.Errorf("Run(compute) without file error = %v, want ErrUsage", err)
	}
}

func TestRun_Compute(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "evening.yaml", scenarioYAML(baseTime, "now: 2024-06-01T21:00:00Z\n"))
	pngPath := filepath.Join(dir, "curves.png")

	a, stdout, _ := newTestApp(nil)
	if err := a.Run(context.Background(), []string{"compute", "-png", pngPath, path}); err != nil {
		t.Fatalf("Run(compute) failed: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{"MODEL", "Widmark", "Watson", "Forrest", "Seidl", "Max:", "2 drinks"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}

	f, err := os.Open(pngPath)
	if err != nil {
		t.Fatalf("Chart not written: %v", err)
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Chart is not a PNG: %v", err)
	}
	if cfg.Width != 1000 || cfg.Height != 600 {
		t.Errorf("Chart size = %dx%d, want 1000x600", cfg.Width, cfg.Height)
	}
}

func TestRun_ComputeJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "evening.yaml",
		scenarioYAML(baseTime, "now: 2024-06-01T21:00:00Z\nsettings:\n  models: [Widmark, Seidl]\n"))

	a, stdout, _ := newTestApp(nil)
	if err := a.Run(context.Background(), []string{"compute", "-json", path}); err != nil {
		t.Fatalf("Run(compute -json) failed: %v", err)
	}

	var results map[string]map[string]any
	if err := json.Unmarshal([]byte(stdout.String()), &results); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 models, got %d", len(results))
	}
	if _, ok := results["Seidl"]["series"]; !ok {
		t.Error("Seidl result has no series")
	}
}

func TestEvaluate_EvaluationInstant(t *testing.T) {
	a, _, _ := newTestApp(nil)
	mock := clock.NewMock()
	mock.Add(baseTime.Add(30 * time.Minute).Sub(mock.Now()))
	a.clock = mock

	dir := t.TempDir()
	s := mustLoad(t, writeFile(t, dir, "a.yaml", scenarioYAML(baseTime, "")))

	out, err := a.Evaluate(s, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := out.EvaluatedAt(); !got.Equal(baseTime.Add(30 * time.Minute)) {
		t.Errorf("EvaluatedAt = %v, want the clock's now", got)
	}

	fixed := baseTime.Add(5 * time.Hour)
	s.Now = &fixed
	out, err = a.Evaluate(s, nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if got := out.EvaluatedAt(); !got.Equal(fixed) {
		t.Errorf("EvaluatedAt = %v, want the scenario's now", got)
	}
	if out.Results[models.Widmark].CurrentBAC >= out.Results[models.Widmark].PeakBAC {
		t.Error("CurrentBAC five hours later should be below the peak")
	}
}

func TestRun_Validate(t *testing.T) {
	dir := t.TempDir()
	measurement := "now: 2024-06-01T21:00:00Z\nmeasurement:\n  time: 2024-06-01T21:00:00Z\n  bac: 5.0\n  method: gc_fid\n"
	path := writeFile(t, dir, "evening.yaml", scenarioYAML(baseTime, measurement))

	a, stdout, _ := newTestApp(nil)
	if err := a.Run(context.Background(), []string{"validate", path}); err != nil {
		t.Fatalf("Run(validate) failed: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "Aggregate: most_likely_false") {
		t.Errorf("Expected most_likely_false aggregate:\n%s", out)
	}
	if !strings.Contains(out, "too_high") {
		t.Errorf("Expected too_high direction:\n%s", out)
	}

	stdout.buf.Reset()
	err := a.Run(context.Background(), []string{"validate", "-json", "-model", "Widmark", "-bac", "0.3", path})
	if err != nil {
		t.Fatalf("Run(validate -json) failed: %v", err)
	}
	var report models.ValidationReport
	if err := json.Unmarshal([]byte(stdout.String()), &report); err != nil {
		t.Fatalf("Output is not a report: %v", err)
	}
	if len(report.Rows) != 1 || report.Rows[0].Model != models.Widmark {
		t.Errorf("Rows = %+v, want one Widmark row", report.Rows)
	}
	if report.MeasuredBAC != 0.3 || report.Method != models.MethodGCFID {
		t.Errorf("Measurement = (%v, %v), want (0.3, gc_fid)", report.MeasuredBAC, report.Method)
	}
}

func TestRun_ValidateErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "plain.yaml", scenarioYAML(baseTime, ""))
	a, _, _ := newTestApp(nil)
	ctx := context.Background()

	if err := a.Run(ctx, []string{"validate", path}); err == nil {
		t.Error("Expected error without measurement")
	}
	if err := a.Run(ctx, []string{"validate", "-bac", "0.4", "-at", "yesterday", path}); err == nil {
		t.Error("Expected error for malformed -at")
	}
	err := a.Run(ctx, []string{"validate", "-bac", "0.4", "-at", "2024-06-01T21:00:00Z", "-model", "Bogus", path})
	if err == nil {
		t.Error("Expected error for unknown model")
	}
}

func TestRun_Batch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-early.yaml", scenarioYAML(baseTime, "now: 2024-06-01T21:00:00Z\n"))
	writeFile(t, dir, "b-late.json",
		`{"name":"late","drinks":[{"name":"Wine","volume":200,"abv":12,"time":"2024-06-01T23:00:00Z"}],
		  "now":"2024-06-01T23:30:00Z",
		  "measurement":{"time":"2024-06-01T23:30:00Z","bac":0.2,"method":"enzymatic_adh"}}`)
	writeFile(t, dir, "c-broken.yaml", strings.Replace(scenarioYAML(baseTime, ""), "weight: 80", "weight: 0", 1))

	a, stdout, _ := newTestApp(nil)
	err := a.Run(context.Background(), []string{"batch", "-j", "2", dir})
	if err == nil || !strings.Contains(err.Error(), "1 of 3 scenarios failed") {
		t.Fatalf("Run(batch) error = %v, want one failed scenario", err)
	}

	out := stdout.String()
	for _, want := range []string{"a-early", "late", "c-broken.yaml", "error:"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}
}

func TestEvaluateAll_KeepsOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 6; i++ {
		at := baseTime.Add(time.Duration(i) * time.Hour)
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("s%d.yaml", i), scenarioYAML(at, "")))
	}

	a, _, _ := newTestApp(nil)
	rows, err := a.evaluateAll(context.Background(), paths, 3)
	if err != nil {
		t.Fatalf("evaluateAll failed: %v", err)
	}

	for i, row := range rows {
		if row.Err != nil {
			t.Fatalf("Row %d failed: %v", i, row.Err)
		}
		if row.Path != paths[i] {
			t.Errorf("Row %d path = %s, want %s", i, row.Path, paths[i])
		}
		first := row.Outcome.Results[models.Widmark].Contributions[0].ConsumedAt
		if want := baseTime.Add(time.Duration(i) * time.Hour); !first.Equal(want) {
			t.Errorf("Row %d first drink = %v, want %v", i, first, want)
		}
	}
}

func TestEvaluateAll_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.yaml", scenarioYAML(baseTime, ""))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, _, _ := newTestApp(nil)
	if _, err := a.evaluateAll(ctx, []string{path}, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("evaluateAll error = %v, want context.Canceled", err)
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "live.yaml", scenarioYAML(baseTime, ""))
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	a, _, _ := newTestApp(nil)
	w := a.NewWatcher(path, time.Second, time.Minute)
	defer w.engine.Stop()

	if err := w.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, drinks, _ := w.engine.Inputs(); len(drinks) != 2 {
		t.Fatalf("Drinks = %d, want 2", len(drinks))
	}

	// same modification time: not reloaded
	writeFile(t, dir, "live.yaml", scenarioYAML(baseTime, "")+"  - name: Shot\n    volume: 40\n    abv: 40\n    time: 2024-06-01T21:00:00Z\n")
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	if err := w.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, drinks, _ := w.engine.Inputs(); len(drinks) != 2 {
		t.Errorf("Drinks = %d, want 2 before the file is touched", len(drinks))
	}

	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}
	if err := w.reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if _, drinks, _ := w.engine.Inputs(); len(drinks) != 3 {
		t.Errorf("Drinks = %d, want 3 after the change", len(drinks))
	}
}

func TestRun_Watch(t *testing.T) {
	settings := models.DefaultSettings()
	settings.DebounceMillis = 10

	dir := t.TempDir()
	path := writeFile(t, dir, "live.yaml", scenarioYAML(time.Now().Add(-70*time.Minute), ""))

	a, stdout, _ := newTestApp(settings)
	alerts := make(chan string, 8)
	a.notifyManager.SetNotifier(func(title, _, _ string) error {
		alerts <- title
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx, []string{"watch", "-interval", "20ms", "-refresh", "1h", path})
	}()

	select {
	case <-alerts:
	case <-time.After(5 * time.Second):
		t.Fatal("No limit alert within 5s")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run(watch) error = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	if !strings.Contains(stdout.String(), "‰") {
		t.Errorf("Expected a BAC line on stdout, got %q", stdout.String())
	}
}

func TestRun_WatchMissingFile(t *testing.T) {
	a, _, _ := newTestApp(nil)
	err := a.Run(context.Background(), []string{"watch", filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Error("Expected error for missing scenario file")
	}
}

func TestMetricsServer(t *testing.T) {
	dir := t.TempDir()
	s := mustLoad(t, writeFile(t, dir, "a.yaml", scenarioYAML(baseTime, "now: 2024-06-01T21:00:00Z\n")))

	a, _, _ := newTestApp(nil)
	if _, err := a.Evaluate(s, nil); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	srv := httptest.NewServer(a.metricsServer("").Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `promille_computations_total{outcome="computed"} 1`) {
		t.Errorf("Metrics missing computed counter:\n%s", body)
	}
}

func TestRun_SettingsInit(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("config dir follows XDG_CONFIG_HOME only on Linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	settings := models.DefaultSettings()
	settings.CacheLimit = 7
	a, stdout, _ := newTestApp(settings)

	if err := a.Run(context.Background(), []string{"settings", "-init"}); err != nil {
		t.Fatalf("Run(settings -init) failed: %v", err)
	}

	loaded := models.DefaultSettings()
	if err := loaded.LoadFile(filepath.Join(dir, "promille", "settings.json")); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if loaded.CacheLimit != 7 {
		t.Errorf("CacheLimit = %d, want 7", loaded.CacheLimit)
	}
	if !strings.Contains(stdout.String(), `"cacheLimit": 7`) {
		t.Errorf("stdout = %q, want settings JSON", stdout.String())
	}
}

func mustLoad(t *testing.T, path string) *scenario.Scenario {
	t.Helper()
	s, err := scenario.Load(path)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", path, err)
	}
	return s
}
