// Package config provides configuration management for the mail processing
// test harness.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Protocol selects how the filter processor reaches the mailbox.
type Protocol string

const (
	// ProtocolMaildir runs the processor directly on the maildir tree.
	ProtocolMaildir Protocol = "maildir"
	// ProtocolIMAP runs the processor against the IMAP server.
	ProtocolIMAP Protocol = "imap"
)

// Transport selects how fixture mail is injected.
type Transport string

const (
	// TransportSendmail pipes each message to the MTA's sendmail interface.
	TransportSendmail Transport = "sendmail"
	// TransportSMTP submits each message to the MTA over SMTP.
	TransportSMTP Transport = "smtp"
	// TransportMaildir writes each message straight into the mailbox base.
	TransportMaildir Transport = "maildir"
)

// FileConfig is the top-level wrapper for the configuration file.
type FileConfig struct {
	Harness Config `toml:"harness"`
}

// Config holds the complete harness configuration.
type Config struct {
	LogLevel    string         `toml:"log_level"`
	TestsDir    string         `toml:"tests_dir"`
	MailboxBase string         `toml:"mailbox_base"`
	Protocols   []Protocol     `toml:"protocols"`
	DefaultMail string         `toml:"default_mail"`
	Services    ServicesConfig `toml:"services"`
	Inject      InjectConfig   `toml:"inject"`
	Filter      FilterConfig   `toml:"filter"`
	Metrics     MetricsConfig  `toml:"metrics"`
}

// ServicesConfig holds the commands that control the MTA and IMAP server.
type ServicesConfig struct {
	MTAStart    []string `toml:"mta_start"`
	MTAStop     []string `toml:"mta_stop"`
	IMAPStart   []string `toml:"imap_start"`
	IMAPStop    []string `toml:"imap_stop"`
	WaitReady   bool     `toml:"wait_ready"`
	SMTPAddress string   `toml:"smtp_address"`
	IMAPAddress string   `toml:"imap_address"`
}

// InjectConfig controls how fixture mail reaches the mailbox.
type InjectConfig struct {
	Transport        Transport  `toml:"transport"`
	Sendmail         []string   `toml:"sendmail"`
	Flush            []string   `toml:"flush"`
	SMTPAddress      string     `toml:"smtp_address"`
	Helo             string     `toml:"helo"`
	Sender           string     `toml:"sender"`
	DefaultRecipient string     `toml:"default_recipient"`
	Username         string     `toml:"username"`
	Password         string     `toml:"password"`
	DKIM             DKIMConfig `toml:"dkim"`
}

// DKIMConfig enables signing of injected mail when KeyFile is set.
type DKIMConfig struct {
	Domain   string `toml:"domain"`
	Selector string `toml:"selector"`
	KeyFile  string `toml:"key_file"`
}

// IsEnabled reports whether injected mail should be DKIM-signed.
func (d *DKIMConfig) IsEnabled() bool {
	return d.KeyFile != ""
}

// FilterConfig describes the external filter processors.
type FilterConfig struct {
	MaildirBinary   string `toml:"maildir_binary"`
	IMAPBinary      string `toml:"imap_binary"`
	LogLevel        int    `toml:"log_level"`
	FolderSeparator string `toml:"folder_separator"`
	IMAPHost        string `toml:"imap_host"`
	IMAPUser        string `toml:"imap_user"`
	IMAPPassword    string `toml:"imap_password"`
	IMAPRoot        string `toml:"imap_root"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled"`
	Address  string `toml:"address"`
	Path     string `toml:"path"`
	Textfile string `toml:"textfile"`
}

// Default returns a Config matching the reference container image: postfix
// and dovecot delivering to /root/Maildir, fixtures under /tests.
func Default() Config {
	return Config{
		LogLevel:    "info",
		TestsDir:    "/tests",
		MailboxBase: "/root/Maildir",
		Protocols:   []Protocol{ProtocolMaildir, ProtocolIMAP},
		Services: ServicesConfig{
			MTAStart:    []string{"postfix", "start"},
			MTAStop:     []string{"postfix", "stop"},
			IMAPStart:   []string{"dovecot"},
			IMAPStop:    []string{"dovecot", "stop"},
			SMTPAddress: "localhost:25",
			IMAPAddress: "localhost:143",
		},
		Inject: InjectConfig{
			Transport:        TransportSendmail,
			Sendmail:         []string{"sendmail", "-t"},
			Flush:            []string{"postqueue", "-f"},
			SMTPAddress:      "localhost:25",
			Helo:             "localhost",
			Sender:           "harness@localhost",
			DefaultRecipient: "root@localhost",
		},
		Filter: FilterConfig{
			MaildirBinary:   "maildirproc",
			IMAPBinary:      "imapproc",
			LogLevel:        99,
			FolderSeparator: "/",
			IMAPHost:        "localhost",
			IMAPUser:        "root",
			IMAPPassword:    "root",
			IMAPRoot:        "INBOX",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.TestsDir == "" {
		return errors.New("tests_dir is required")
	}

	if c.MailboxBase == "" {
		return errors.New("mailbox_base is required")
	}
	if !filepath.IsAbs(c.MailboxBase) {
		return fmt.Errorf("mailbox_base %q must be an absolute path", c.MailboxBase)
	}
	if filepath.Clean(c.MailboxBase) == "/" {
		return errors.New("mailbox_base must not be the filesystem root")
	}

	if len(c.Protocols) == 0 {
		return errors.New("at least one protocol is required")
	}
	for i, p := range c.Protocols {
		if !isValidProtocol(p) {
			return fmt.Errorf("protocol %d: invalid protocol %q", i, p)
		}
	}

	if len(c.Services.MTAStart) == 0 || len(c.Services.IMAPStart) == 0 {
		return errors.New("services: mta_start and imap_start commands are required")
	}

	switch c.Inject.Transport {
	case TransportSendmail:
		if len(c.Inject.Sendmail) == 0 {
			return errors.New("inject: sendmail command is required for the sendmail transport")
		}
	case TransportSMTP:
		if c.Inject.SMTPAddress == "" {
			return errors.New("inject: smtp_address is required for the smtp transport")
		}
		if c.Inject.Sender == "" {
			return errors.New("inject: sender is required for the smtp transport")
		}
	case TransportMaildir:
	default:
		return fmt.Errorf("inject: invalid transport %q (valid: sendmail, smtp, maildir)", c.Inject.Transport)
	}

	if c.Inject.DKIM.IsEnabled() && (c.Inject.DKIM.Domain == "" || c.Inject.DKIM.Selector == "") {
		return errors.New("inject.dkim: domain and selector are required when key_file is set")
	}

	if c.Filter.MaildirBinary == "" || c.Filter.IMAPBinary == "" {
		return errors.New("filter: maildir_binary and imap_binary are required")
	}
	if c.Filter.FolderSeparator == "" {
		return errors.New("filter: folder_separator is required")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" && c.Metrics.Textfile == "" {
			return errors.New("metrics address or textfile is required when metrics are enabled")
		}
		if c.Metrics.Address != "" && c.Metrics.Path == "" {
			return errors.New("metrics path is required when a metrics address is set")
		}
	}

	return nil
}

func isValidProtocol(p Protocol) bool {
	switch p {
	case ProtocolMaildir, ProtocolIMAP:
		return true
	default:
		return false
	}
}
