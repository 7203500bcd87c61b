// Package services controls the mail transfer agent and IMAP server the
// harness runs against, and owns the mailbox base they deliver into.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"github.com/infodancer/mailproc-harness/internal/logging"
	"github.com/infodancer/mailproc-harness/internal/maildir"
	"github.com/infodancer/mailproc-harness/internal/metrics"
)

// Service names used in errors, logs and metrics.
const (
	ServiceMTA     = "mta"
	ServiceIMAP    = "imap"
	ServiceMailbox = "mailbox"
)

// Operation names used in errors, logs and metrics.
const (
	OpStart  = "start"
	OpStop   = "stop"
	OpReady  = "ready"
	OpReset  = "reset"
	OpFolder = "create-folder"
)

// Config describes how to control the services.
type Config struct {
	MailboxBase string

	MTAStart  []string
	MTAStop   []string
	IMAPStart []string
	IMAPStop  []string

	// WaitReady enables a single readiness check of each service after it starts.
	WaitReady    bool
	SMTPAddress  string
	IMAPAddress  string
	IMAPUser     string
	IMAPPassword string
}

// ServiceError reports a service command or readiness check that failed.
type ServiceError struct {
	Service string
	Op      string
	Err     error
	Output  string
}

func (e *ServiceError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s %s: %v: %s", e.Service, e.Op, e.Err, e.Output)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Environment is the shared state every test case runs in: the two services
// and the mailbox base. Cases are bracketed by
// ResetMailbox, Start, (body), Stop, ResetMailbox.
type Environment struct {
	cfg       Config
	collector metrics.Collector
	ready     readinessChecker
}

// readinessChecker checks that a started service accepts connections.
type readinessChecker interface {
	SMTP(ctx context.Context, address string) error
	IMAP(ctx context.Context, address, user, password string) error
}

// NewEnvironment creates an Environment. A nil collector records nothing.
func NewEnvironment(cfg Config, collector metrics.Collector) *Environment {
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Environment{
		cfg:       cfg,
		collector: collector,
		ready:     netChecker{},
	}
}

// Base returns the mailbox base directory.
func (e *Environment) Base() string {
	return e.cfg.MailboxBase
}

// Start brings up the MTA and then the IMAP server. Either failing is fatal
// to the case; the IMAP server is not started when the MTA fails.
func (e *Environment) Start(ctx context.Context) error {
	if err := e.run(ctx, ServiceMTA, OpStart, e.cfg.MTAStart); err != nil {
		return err
	}
	if err := e.run(ctx, ServiceIMAP, OpStart, e.cfg.IMAPStart); err != nil {
		return err
	}

	if !e.cfg.WaitReady {
		return nil
	}
	if err := e.ready.SMTP(ctx, e.cfg.SMTPAddress); err != nil {
		e.collector.ServiceOperation(ServiceMTA, OpReady, metrics.ResultFail)
		return &ServiceError{Service: ServiceMTA, Op: OpReady, Err: err}
	}
	e.collector.ServiceOperation(ServiceMTA, OpReady, metrics.ResultPass)
	if err := e.ready.IMAP(ctx, e.cfg.IMAPAddress, e.cfg.IMAPUser, e.cfg.IMAPPassword); err != nil {
		e.collector.ServiceOperation(ServiceIMAP, OpReady, metrics.ResultFail)
		return &ServiceError{Service: ServiceIMAP, Op: OpReady, Err: err}
	}
	e.collector.ServiceOperation(ServiceIMAP, OpReady, metrics.ResultPass)
	return nil
}

// Stop tears down the IMAP server and then the MTA. Both are attempted even
// if the first fails; the failures are returned joined.
func (e *Environment) Stop(ctx context.Context) error {
	imapErr := e.run(ctx, ServiceIMAP, OpStop, e.cfg.IMAPStop)
	mtaErr := e.run(ctx, ServiceMTA, OpStop, e.cfg.MTAStop)
	return errors.Join(imapErr, mtaErr)
}

// ResetMailbox removes the mailbox base and everything below it. A missing
// base is not an error.
func (e *Environment) ResetMailbox() error {
	err := os.RemoveAll(e.cfg.MailboxBase)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &ServiceError{Service: ServiceMailbox, Op: OpReset, Err: err}
	}
	return nil
}

// CreateFolders creates cur, new and tmp under each named folder of the
// mailbox base.
func (e *Environment) CreateFolders(folders []string) error {
	for _, folder := range folders {
		if err := maildir.InitFolder(e.cfg.MailboxBase, folder); err != nil {
			return &ServiceError{Service: ServiceMailbox, Op: OpFolder, Err: err}
		}
	}
	return nil
}

// run executes one control command. Its output goes to the debug log and,
// on failure, into the returned error. An empty command is a no-op.
func (e *Environment) run(ctx context.Context, service, op string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}

	logger := logging.FromContext(ctx)
	logger.Debug("running service command",
		"service", service,
		"op", op,
		"command", strings.Join(argv, " "),
	)

	out := logging.NewOutputWriter(logger, argv[0])
	var captured bytes.Buffer
	w := io.MultiWriter(&captured, out)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = w
	cmd.Stderr = w
	err := cmd.Run()
	out.Flush()

	e.collector.ServiceOperation(service, op, metrics.Result(err))
	if err != nil {
		return &ServiceError{
			Service: service,
			Op:      op,
			Err:     err,
			Output:  strings.TrimSpace(captured.String()),
		}
	}
	return nil
}
