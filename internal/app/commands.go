package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mrcode/promille/internal/chart"
	"github.com/mrcode/promille/internal/models"
	"github.com/mrcode/promille/internal/scenario"
)

const (
	defaultSparkWidth   = 60
	defaultSparkHeight  = 4
	defaultPollInterval = 2 * time.Second
	defaultRefresh      = time.Minute
)

func (a *App) runCompute(args []string) error {
	fs := a.newFlagSet("compute", "[options] <scenario>")
	pngPath := fs.String("png", "", "write a PNG chart of all curves to this file")
	asJSON := fs.Bool("json", false, "print the results as JSON")
	width := fs.Int("width", defaultSparkWidth, "sparkline width in columns, 0 disables it")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}

	s, err := scenario.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	out, err := a.Evaluate(s, nil)
	if err != nil {
		return err
	}

	if *asJSON {
		if err := writeJSON(a.stdout, out.Results); err != nil {
			return err
		}
	} else {
		printResults(a.stdout, out.Results)
		if id := highestPeak(out.Results); id != "" && *width > 0 {
			if spark := chart.Sparkline(out.Results[id].Series, *width, defaultSparkHeight); spark != "" {
				fmt.Fprintf(a.stdout, "\n%s\n%s\n", id, spark)
			}
		}
	}

	if *pngPath != "" {
		if err := a.writeChart(*pngPath, out); err != nil {
			return err
		}
		fmt.Fprintf(a.stderr, "Chart written to %s\n", *pngPath)
	}
	return nil
}

func (a *App) writeChart(path string, out *Outcome) error {
	f, err := os.Create(path) //nolint:gosec // Path comes from the command line
	if err != nil {
		return err
	}
	if err := a.renderer.RenderPNG(f, out.Results, out.Scenario.Drinks, out.EvaluatedAt()); err != nil {
		_ = f.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	return f.Close()
}

func (a *App) runValidate(args []string) error {
	fs := a.newFlagSet("validate", "[options] <scenario>")
	bac := fs.Float64("bac", 0, "measured BAC in ‰ (overrides the scenario measurement)")
	at := fs.String("at", "", "measurement time, RFC 3339")
	method := fs.String("method", "", "gc_fid, enzymatic_adh, headspace_gc, lc_ms_ms or other")
	model := fs.String("model", "", "validate a single model instead of all")
	asJSON := fs.Bool("json", false, "print the report as JSON")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}

	s, err := scenario.Load(fs.Arg(0))
	if err != nil {
		return err
	}

	m := scenario.Measurement{Method: models.MethodOther}
	if s.Measurement != nil {
		m = *s.Measurement
	}
	if *bac != 0 {
		m.BAC = *bac
	}
	if *at != "" {
		t, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid -at: %w", err)
		}
		m.Time = t
	}
	if *method != "" {
		m.Method = models.MeasurementMethod(*method)
	}
	if *model != "" {
		m.Model = models.ModelID(*model)
	}
	if m.BAC == 0 || m.Time.IsZero() {
		return errors.New("no measurement: pass -bac and -at or add one to the scenario")
	}

	out, err := a.Evaluate(s, &m)
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(a.stdout, out.Report)
	}
	printReport(a.stdout, out.Report)
	return nil
}

// batchRow is the evaluation of one file; Err is set instead of Outcome on failure
type batchRow struct {
	Path    string
	Outcome *Outcome
	Err     error
}

func (a *App) runBatch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("batch", "[options] <file|dir|glob>...")
	jobs := fs.Int("j", runtime.NumCPU(), "number of scenarios evaluated concurrently")
	if err := parseFlags(fs, args, -1); err != nil {
		return err
	}

	paths, err := scenario.Expand(fs.Args())
	if err != nil {
		return err
	}

	rows, err := a.evaluateAll(ctx, paths, *jobs)
	if err != nil {
		return err
	}
	printBatch(a.stdout, rows)

	failed := 0
	for _, row := range rows {
		if row.Err != nil {
			failed++
			a.logger.Warn("Scenario failed", "path", row.Path, "error", row.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(rows))
	}
	return nil
}

// evaluateAll evaluates every path with at most jobs running at once.
// Scenario errors are kept in their row; only cancellation aborts.
func (a *App) evaluateAll(ctx context.Context, paths []string, jobs int) ([]batchRow, error) {
	rows := make([]batchRow, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rows[i].Path = path
			s, err := scenario.Load(path)
			if err != nil {
				rows[i].Err = err
				return nil
			}
			rows[i].Outcome, rows[i].Err = a.Evaluate(s, s.Measurement)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *App) runWatch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("watch", "[options] <scenario>")
	interval := fs.Duration("interval", defaultPollInterval, "how often the file is checked for changes")
	refresh := fs.Duration("refresh", defaultRefresh, "how often the current BAC is recomputed")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	if err := parseFlags(fs, args, 1); err != nil {
		return err
	}
	if *interval <= 0 || *refresh <= 0 {
		return fmt.Errorf("-interval and -refresh must be positive")
	}

	if *metricsAddr != "" {
		srv := a.metricsServer(*metricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("Metrics server failed", "addr", *metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		a.logger.Info("Serving metrics", "addr", *metricsAddr)
	}

	return a.NewWatcher(fs.Arg(0), *interval, *refresh).Run(ctx)
}

func (a *App) metricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (a *App) runSettings(args []string) error {
	fs := a.newFlagSet("settings", "[-init]")
	initFile := fs.Bool("init", false, "write the current settings to the settings file")
	if err := parseFlags(fs, args, 0); err != nil {
		return err
	}

	path, err := models.GetConfigPath()
	if err != nil {
		return err
	}

	if *initFile {
		if err := a.settings.SaveFile(path); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Fprintf(a.stderr, "Settings written to %s\n", path)
	}

	fmt.Fprintf(a.stdout, "# %s\n", path)
	return writeJSON(a.stdout, a.settings.Clone())
}
