// Package app wires the BAC engine into the command line interface
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/facebookgo/clock"

	"github.com/mrcode/promille/internal/chart"
	"github.com/mrcode/promille/internal/metrics"
	"github.com/mrcode/promille/internal/models"
	"github.com/mrcode/promille/internal/notifications"
)

// Version of the command line tool
const Version = "1.0.0"

// ErrUsage is returned for malformed command lines
var ErrUsage = errors.New("invalid usage")

// App holds the services shared by all commands
type App struct {
	settings      *models.Settings
	metrics       *metrics.Metrics
	renderer      *chart.Renderer
	notifyManager *notifications.Manager
	clock         clock.Clock
	logger        *slog.Logger

	stdout io.Writer
	stderr io.Writer
}

// New creates a new App instance
func New(settings *models.Settings, stdout, stderr io.Writer, logger *slog.Logger) *App {
	if settings == nil {
		settings = models.DefaultSettings()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &App{
		settings:      settings,
		metrics:       metrics.New(),
		renderer:      chart.NewRenderer(settings),
		notifyManager: notifications.NewManager(settings),
		clock:         clock.New(),
		logger:        logger,
		stdout:        stdout,
		stderr:        stderr,
	}
}

// Run executes the command named by args[0]
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printUsage()
		return ErrUsage
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "compute":
		err = a.runCompute(rest)
	case "validate":
		err = a.runValidate(rest)
	case "batch":
		err = a.runBatch(ctx, rest)
	case "watch":
		err = a.runWatch(ctx, rest)
	case "settings":
		err = a.runSettings(rest)
	case "test-notification":
		err = a.notifyManager.SendTestNotification()
	case "version":
		fmt.Fprintf(a.stdout, "promille v%s\n", Version)
	case "help", "-h", "--help":
		a.printUsage()
	default:
		fmt.Fprintf(a.stderr, "Unknown command: %s\n\n", cmd)
		a.printUsage()
		return ErrUsage
	}

	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return err
}

func (a *App) printUsage() {
	w := a.stderr
	fmt.Fprintln(w, "Promille v"+Version)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  promille <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  compute <scenario>           Compute BAC curves for every selected model")
	fmt.Fprintln(w, "  validate <scenario>          Check a measured BAC against the curves")
	fmt.Fprintln(w, "  batch <files|dirs|globs>...  Evaluate many scenarios concurrently")
	fmt.Fprintln(w, "  watch <scenario>             Recompute on file changes and send alerts")
	fmt.Fprintln(w, "  settings                     Show or initialise the settings file")
	fmt.Fprintln(w, "  test-notification            Send a desktop test notification")
	fmt.Fprintln(w, "  version                      Print version")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scenario files are YAML (.yaml, .yml) or JSON (.json).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment Variables:")
	fmt.Fprintln(w, "  LOG_LEVEL       debug, info, warn or error (default info)")
	fmt.Fprintln(w, "  LOG_NO_COLOR    disable coloured log output")
	fmt.Fprintln(w, "  XDG_CONFIG_HOME location of promille/settings.json")
}

// newFlagSet creates a flag set that reports errors instead of exiting
func (a *App) newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage:\n  promille %s %s\n\nOptions:\n", name, synopsis)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args and requires exactly n positional arguments, or at least one if n < 0
func parseFlags(fs *flag.FlagSet, args []string, n int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return ErrUsage
	}
	if (n >= 0 && fs.NArg() != n) || (n < 0 && fs.NArg() == 0) {
		fs.Usage()
		return ErrUsage
	}
	return nil
}
