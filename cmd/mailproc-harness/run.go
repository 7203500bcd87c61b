package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/filter"
	"github.com/infodancer/mailproc-harness/internal/harness"
	"github.com/infodancer/mailproc-harness/internal/inject"
	"github.com/infodancer/mailproc-harness/internal/logging"
	"github.com/infodancer/mailproc-harness/internal/metrics"
	"github.com/infodancer/mailproc-harness/internal/services"
)

// runSuite runs every discovered case and returns the process exit code.
func runSuite() int {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		return 1
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}

	var filterRe *regexp.Regexp
	if flags.Run != "" {
		filterRe, err = regexp.Compile(flags.Run)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -run pattern: %v\n", err)
			return 1
		}
	}

	logger := logging.NewLogger(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, aborting suite", "signal", sig.String())
		cancel()
	}()

	collector, metricsServer, exporter := metrics.New(metrics.Config{
		Enabled:  cfg.Metrics.Enabled,
		Address:  cfg.Metrics.Address,
		Path:     cfg.Metrics.Path,
		Textfile: cfg.Metrics.Textfile,
	})
	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	injector, err := inject.New(injectConfig(cfg), collector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring injection: %v\n", err)
		return 1
	}

	driver := harness.NewDriver(harness.DriverConfig{
		Env:       services.NewEnvironment(servicesConfig(cfg), collector),
		Injector:  injector,
		Runner:    filter.NewRunner(filterConfig(cfg), collector),
		Logger:    logger,
		Collector: collector,
		Stderr:    os.Stderr,
	})

	cases, err := harness.Discover(cfg.TestsDir, cfg.Protocols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error discovering fixtures: %v\n", err)
		return 1
	}

	logger.Info("starting suite",
		slog.String("tests_dir", cfg.TestsDir),
		slog.String("mailbox_base", cfg.MailboxBase),
		slog.String("transport", string(injector.Transport())),
		slog.Int("cases", len(cases)))

	suite := &harness.Suite{Runner: driver, Out: os.Stdout, Filter: filterRe}
	summary := suite.Run(ctx, cases)

	if err := exporter.Export(); err != nil {
		logger.Error("writing metrics textfile failed", "error", err)
	}

	return summary.ExitCode()
}

func servicesConfig(cfg config.Config) services.Config {
	return services.Config{
		MailboxBase:  cfg.MailboxBase,
		MTAStart:     cfg.Services.MTAStart,
		MTAStop:      cfg.Services.MTAStop,
		IMAPStart:    cfg.Services.IMAPStart,
		IMAPStop:     cfg.Services.IMAPStop,
		WaitReady:    cfg.Services.WaitReady,
		SMTPAddress:  cfg.Services.SMTPAddress,
		IMAPAddress:  cfg.Services.IMAPAddress,
		IMAPUser:     cfg.Filter.IMAPUser,
		IMAPPassword: cfg.Filter.IMAPPassword,
	}
}

func injectConfig(cfg config.Config) inject.Config {
	return inject.Config{
		Transport:        cfg.Inject.Transport,
		Sendmail:         cfg.Inject.Sendmail,
		Flush:            cfg.Inject.Flush,
		SMTPAddress:      cfg.Inject.SMTPAddress,
		Helo:             cfg.Inject.Helo,
		Sender:           cfg.Inject.Sender,
		DefaultRecipient: cfg.Inject.DefaultRecipient,
		Username:         cfg.Inject.Username,
		Password:         cfg.Inject.Password,
		DKIM:             cfg.Inject.DKIM,
		MailboxBase:      cfg.MailboxBase,
		DefaultMail:      cfg.DefaultMail,
	}
}

func filterConfig(cfg config.Config) filter.Config {
	return filter.Config{
		MaildirBinary:   cfg.Filter.MaildirBinary,
		IMAPBinary:      cfg.Filter.IMAPBinary,
		LogLevel:        cfg.Filter.LogLevel,
		FolderSeparator: cfg.Filter.FolderSeparator,
		MailboxBase:     cfg.MailboxBase,
		IMAPHost:        cfg.Filter.IMAPHost,
		IMAPUser:        cfg.Filter.IMAPUser,
		IMAPPassword:    cfg.Filter.IMAPPassword,
		IMAPRoot:        cfg.Filter.IMAPRoot,
	}
}
