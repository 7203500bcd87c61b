package config

import (
	"os"
	"strconv"
)

// ApplyEnv applies environment variable overrides to the configuration.
// Environment variables take precedence over TOML config but are overridden by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("MAILPROC_HARNESS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_TESTS_DIR"); v != "" {
		cfg.TestsDir = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_MAILBOX_BASE"); v != "" {
		cfg.MailboxBase = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_PROTOCOLS"); v != "" {
		cfg.Protocols = parseProtocols(v)
	}
	if v := os.Getenv("MAILPROC_HARNESS_TRANSPORT"); v != "" {
		cfg.Inject.Transport = Transport(v)
	}
	if v := os.Getenv("MAILPROC_HARNESS_MAILDIR_BINARY"); v != "" {
		cfg.Filter.MaildirBinary = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_IMAP_BINARY"); v != "" {
		cfg.Filter.IMAPBinary = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_IMAP_USER"); v != "" {
		cfg.Filter.IMAPUser = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_IMAP_PASSWORD"); v != "" {
		cfg.Filter.IMAPPassword = v
	}
	if v := os.Getenv("MAILPROC_HARNESS_FILTER_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Filter.LogLevel = n
		}
	}
	if v := os.Getenv("MAILPROC_HARNESS_SMTP_PASSWORD"); v != "" {
		cfg.Inject.Password = v
	}

	return cfg
}
