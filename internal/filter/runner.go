// Package filter runs fixture scripts through the external filter
// processors.
package filter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/logging"
	"github.com/infodancer/mailproc-harness/internal/metrics"
)

// Config describes the two processor binaries and how to reach the mailbox.
type Config struct {
	MaildirBinary   string
	IMAPBinary      string
	LogLevel        int
	FolderSeparator string
	MailboxBase     string

	IMAPHost     string
	IMAPUser     string
	IMAPPassword string
	IMAPRoot     string
}

// Invocation is one script run.
type Invocation struct {
	Protocol config.Protocol
	Index    int
	Folder   string
	Source   string

	// Log receives the combined output of the processor.
	Log io.Writer
	// CacheFile is the private processing cache of the imap variant.
	CacheFile string
}

// ExecutionError reports a processor that could not be started or exited
// non-zero.
type ExecutionError struct {
	Index  int
	Folder string
	Err    error
}

func (e *ExecutionError) Error() string {
	folder := e.Folder
	if folder == "" {
		folder = "."
	}
	return fmt.Sprintf("script %d (folder %s): %v", e.Index, folder, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Runner executes filter scripts.
type Runner struct {
	cfg       Config
	collector metrics.Collector
}

// NewRunner creates a Runner. A nil collector records nothing.
func NewRunner(cfg Config, collector metrics.Collector) *Runner {
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Runner{cfg: cfg, collector: collector}
}

// Run writes the script to a temporary rcfile, runs the processor matching
// inv.Protocol once and removes the rcfile again.
func (r *Runner) Run(ctx context.Context, inv Invocation) error {
	logger := logging.FromContext(ctx)
	start := time.Now()

	err := r.run(ctx, inv, logger)

	r.collector.ScriptCompleted(string(inv.Protocol), metrics.Result(err), time.Since(start))
	if err != nil {
		return &ExecutionError{Index: inv.Index, Folder: inv.Folder, Err: err}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, inv Invocation, logger *slog.Logger) error {
	rc, err := os.CreateTemp("", "mailproc-rc-*")
	if err != nil {
		return fmt.Errorf("creating rcfile: %w", err)
	}
	defer os.Remove(rc.Name())

	if _, err := io.WriteString(rc, inv.Source); err != nil {
		_ = rc.Close()
		return fmt.Errorf("writing rcfile: %w", err)
	}
	if err := rc.Close(); err != nil {
		return fmt.Errorf("closing rcfile: %w", err)
	}

	binary, args, err := r.Command(inv, rc.Name())
	if err != nil {
		return err
	}

	logger.Debug("running filter script",
		slog.Int("index", inv.Index),
		slog.String("folder", inv.Folder),
		slog.String("binary", binary),
	)

	cmd := exec.CommandContext(ctx, binary, args...)
	if inv.Log != nil {
		cmd.Stdout = inv.Log
		cmd.Stderr = inv.Log
	}
	return cmd.Run()
}

// Command returns the processor binary and arguments for inv, reading the
// script from rcfile.
func (r *Runner) Command(inv Invocation, rcfile string) (string, []string, error) {
	switch inv.Protocol {
	case config.ProtocolMaildir:
		return r.cfg.MaildirBinary, r.maildirArgs(inv, rcfile), nil
	case config.ProtocolIMAP:
		return r.cfg.IMAPBinary, r.imapArgs(inv, rcfile), nil
	default:
		return "", nil, fmt.Errorf("unknown protocol %q", inv.Protocol)
	}
}

func (r *Runner) maildirArgs(inv Invocation, rcfile string) []string {
	folder := inv.Folder
	if folder == "" {
		folder = "."
	}
	return []string{
		"--once",
		"--maildir-base=" + r.cfg.MailboxBase,
		"--maildir=" + folder,
		"--logfile=-",
		"--log-level=" + strconv.Itoa(r.cfg.LogLevel),
		"--folder-separator=" + r.cfg.FolderSeparator,
		"--rcfile=" + rcfile,
	}
}

func (r *Runner) imapArgs(inv Invocation, rcfile string) []string {
	return []string{
		"--once",
		"--logfile=-",
		"--log-level=" + strconv.Itoa(r.cfg.LogLevel),
		"--host=" + r.cfg.IMAPHost,
		"--user=" + r.cfg.IMAPUser,
		"--password=" + r.cfg.IMAPPassword,
		"--folder-separator=" + r.cfg.FolderSeparator,
		"--folder=" + r.remoteFolder(inv.Folder),
		"--cache-file=" + inv.CacheFile,
		"--rcfile=" + rcfile,
	}
}

// remoteFolder places folder under the IMAP root.
func (r *Runner) remoteFolder(folder string) string {
	if folder == "" || folder == "." {
		return r.cfg.IMAPRoot
	}
	return r.cfg.IMAPRoot + r.cfg.FolderSeparator + folder
}
