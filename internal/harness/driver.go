package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/infodancer/mailproc-harness/internal/filter"
	"github.com/infodancer/mailproc-harness/internal/fixture"
	"github.com/infodancer/mailproc-harness/internal/logging"
	"github.com/infodancer/mailproc-harness/internal/maildir"
	"github.com/infodancer/mailproc-harness/internal/metrics"
)

// Environment is the shared mailbox and services a case runs in.
type Environment interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ResetMailbox() error
	CreateFolders(folders []string) error
	Base() string
}

// Injector delivers fixture mail.
type Injector interface {
	Inject(ctx context.Context, paths []string) error
}

// ScriptRunner runs one filter script.
type ScriptRunner interface {
	Run(ctx context.Context, inv filter.Invocation) error
}

// DriverConfig holds the collaborators of a Driver.
type DriverConfig struct {
	Env       Environment
	Injector  Injector
	Runner    ScriptRunner
	Logger    *slog.Logger
	Collector metrics.Collector

	// Stderr receives the filter log of cases that fail while running
	// scripts or comparing. Defaults to os.Stderr.
	Stderr io.Writer
}

// Driver runs single cases.
type Driver struct {
	env       Environment
	injector  Injector
	runner    ScriptRunner
	logger    *slog.Logger
	collector metrics.Collector
	stderr    io.Writer
}

// NewDriver creates a Driver from cfg.
func NewDriver(cfg DriverConfig) *Driver {
	d := &Driver{
		env:       cfg.Env,
		injector:  cfg.Injector,
		runner:    cfg.Runner,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		stderr:    cfg.Stderr,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.collector == nil {
		d.collector = &metrics.NoopCollector{}
	}
	if d.stderr == nil {
		d.stderr = os.Stderr
	}
	return d
}

// Run executes c and always tears it down, whatever stage it reached.
func (d *Driver) Run(ctx context.Context, c Case) Result {
	logger := logging.WithCase(d.logger, c.Name, string(c.Protocol))
	ctx = logging.NewContext(ctx, logger)

	start := time.Now()
	res := Result{Case: c, State: StateIdle, Reached: StateIdle}

	res.Err = d.run(ctx, c, &res)
	res.Duration = time.Since(start)

	result := metrics.ResultPass
	if res.Err != nil {
		result = Kind(res.Err)
		logger.Error("case failed",
			slog.String("state", res.Reached.String()),
			slog.String("kind", result),
			slog.String("error", res.Err.Error()))
	} else {
		logger.Info("case passed", slog.Duration("duration", res.Duration))
	}
	d.collector.CaseCompleted(string(c.Protocol), result, res.Duration)

	return res
}

func (d *Driver) run(ctx context.Context, c Case, res *Result) error {
	logger := logging.FromContext(ctx)
	var ws *workspace

	res.Reached = StateSetUp
	defer func() {
		// Services are stopped even when the suite was interrupted.
		d.teardown(context.WithoutCancel(ctx), ws)
		res.State = StateTornDown
		logger.Debug("case torn down", slog.String("reached", res.Reached.String()))
	}()

	if err := d.env.ResetMailbox(); err != nil {
		return err
	}
	if err := d.env.Start(ctx); err != nil {
		return err
	}

	fx, err := fixture.Load(c.Fixture)
	if err != nil {
		return err
	}
	if err := d.env.CreateFolders(fx.Folders); err != nil {
		return err
	}
	if err := d.injector.Inject(ctx, fx.Mail); err != nil {
		return err
	}

	ws, err = newWorkspace()
	if err != nil {
		return err
	}

	res.Reached = StateRunning
	for i, script := range fx.Scripts {
		err := d.runner.Run(ctx, filter.Invocation{
			Protocol:  c.Protocol,
			Index:     i,
			Folder:    script.Folder,
			Source:    script.Source,
			Log:       ws.log,
			CacheFile: ws.cacheFile(),
		})
		if err != nil {
			d.dump(c, ws)
			return err
		}
	}

	res.Reached = StateComparing
	actual, err := maildir.ReadSnapshot(d.env.Base())
	if err != nil {
		d.dump(c, ws)
		return err
	}
	if !fx.Expected.Equal(actual) {
		d.dump(c, ws)
		return NewAssertionError(c.Name, fx.Expected, actual)
	}

	return nil
}

// teardown stops the services, clears the mailbox and removes the
// workspace. Failures are logged and never replace the case result.
func (d *Driver) teardown(ctx context.Context, ws *workspace) {
	logger := logging.FromContext(ctx)

	if err := d.env.Stop(ctx); err != nil {
		logger.Warn("stopping services failed", slog.String("error", err.Error()))
	}
	if err := d.env.ResetMailbox(); err != nil {
		logger.Warn("resetting mailbox failed", slog.String("error", err.Error()))
	}
	if ws != nil {
		if err := ws.Close(); err != nil {
			logger.Warn("removing workspace failed", slog.String("error", err.Error()))
		}
	}
}

// dump copies the filter log of c to the operator's error writer.
func (d *Driver) dump(c Case, ws *workspace) {
	fmt.Fprintf(d.stderr, "=== filter log: %s ===\n", c.Name)
	if err := ws.copyLog(d.stderr); err != nil {
		fmt.Fprintf(d.stderr, "(log unavailable: %v)\n", err)
	}
	fmt.Fprintf(d.stderr, "=== end filter log: %s ===\n", c.Name)
}

// workspace holds the per-case filter log and processing cache.
type workspace struct {
	dir string
	log *os.File
}

const (
	logFileName   = "filter.log"
	cacheFileName = "imapproc.cache"
)

func newWorkspace() (*workspace, error) {
	dir, err := os.MkdirTemp("", "mailproc-case-*")
	if err != nil {
		return nil, fmt.Errorf("creating case workspace: %w", err)
	}
	log, err := os.Create(filepath.Join(dir, logFileName))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("creating filter log: %w", err)
	}
	return &workspace{dir: dir, log: log}, nil
}

func (w *workspace) cacheFile() string {
	return filepath.Join(w.dir, cacheFileName)
}

func (w *workspace) copyLog(dst io.Writer) error {
	if _, err := w.log.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := io.Copy(dst, w.log)
	return err
}

// Close closes the log and removes the workspace directory.
func (w *workspace) Close() error {
	closeErr := w.log.Close()
	if err := os.RemoveAll(w.dir); err != nil {
		return err
	}
	return closeErr
}
