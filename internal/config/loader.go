package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath  string
	LogLevel    string
	TestsDir    string
	MailboxBase string
	Protocols   string
	Transport   string
	Run         string
	MetricsFile string
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	return ParseFlagSet(flag.CommandLine, os.Args[1:])
}

// ParseFlagSet registers the harness flags on fs and parses args.
// Parse errors follow fs's error handling policy.
func ParseFlagSet(fs *flag.FlagSet, args []string) *Flags {
	f := &Flags{}

	fs.StringVar(&f.ConfigPath, "config", "./mailproc-harness.toml", "Path to configuration file")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.TestsDir, "tests", "", "Directory holding the test fixtures")
	fs.StringVar(&f.MailboxBase, "maildir", "", "Mailbox base directory")
	fs.StringVar(&f.Protocols, "protocols", "", "Comma-separated protocol variants to run (maildir, imap)")
	fs.StringVar(&f.Transport, "transport", "", "Mail injection transport (sendmail, smtp, maildir)")
	fs.StringVar(&f.Run, "run", "", "Only run cases whose name matches this regular expression")
	fs.StringVar(&f.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file when the suite finishes")

	_ = fs.Parse(args)
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	// Merge file config into defaults
	cfg = mergeConfig(cfg, fileConfig.Harness)

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.TestsDir != "" {
		cfg.TestsDir = f.TestsDir
	}

	if f.MailboxBase != "" {
		cfg.MailboxBase = f.MailboxBase
	}

	if f.Protocols != "" {
		cfg.Protocols = parseProtocols(f.Protocols)
	}

	if f.Transport != "" {
		cfg.Inject.Transport = Transport(f.Transport)
	}

	if f.MetricsFile != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Textfile = f.MetricsFile
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// applies environment overrides, then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	cfg = ApplyEnv(cfg)
	return ApplyFlags(cfg, f), nil
}

func parseProtocols(s string) []Protocol {
	var out []Protocol
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, Protocol(p))
		}
	}
	return out
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.TestsDir != "" {
		dst.TestsDir = src.TestsDir
	}

	if src.MailboxBase != "" {
		dst.MailboxBase = src.MailboxBase
	}

	if len(src.Protocols) > 0 {
		dst.Protocols = src.Protocols
	}

	if src.DefaultMail != "" {
		dst.DefaultMail = src.DefaultMail
	}

	dst.Services = mergeServices(dst.Services, src.Services)
	dst.Inject = mergeInject(dst.Inject, src.Inject)
	dst.Filter = mergeFilter(dst.Filter, src.Filter)

	// Metrics: enabled is explicitly set (boolean), so we merge if source has any non-zero value
	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}

	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	if src.Metrics.Textfile != "" {
		dst.Metrics.Textfile = src.Metrics.Textfile
	}

	return dst
}

func mergeServices(dst, src ServicesConfig) ServicesConfig {
	if len(src.MTAStart) > 0 {
		dst.MTAStart = src.MTAStart
	}
	if len(src.MTAStop) > 0 {
		dst.MTAStop = src.MTAStop
	}
	if len(src.IMAPStart) > 0 {
		dst.IMAPStart = src.IMAPStart
	}
	if len(src.IMAPStop) > 0 {
		dst.IMAPStop = src.IMAPStop
	}
	if src.WaitReady {
		dst.WaitReady = true
	}
	if src.SMTPAddress != "" {
		dst.SMTPAddress = src.SMTPAddress
	}
	if src.IMAPAddress != "" {
		dst.IMAPAddress = src.IMAPAddress
	}
	return dst
}

func mergeInject(dst, src InjectConfig) InjectConfig {
	if src.Transport != "" {
		dst.Transport = src.Transport
	}
	if len(src.Sendmail) > 0 {
		dst.Sendmail = src.Sendmail
	}
	// An explicitly empty flush list disables flushing.
	if src.Flush != nil {
		dst.Flush = src.Flush
	}
	if src.SMTPAddress != "" {
		dst.SMTPAddress = src.SMTPAddress
	}
	if src.Helo != "" {
		dst.Helo = src.Helo
	}
	if src.Sender != "" {
		dst.Sender = src.Sender
	}
	if src.DefaultRecipient != "" {
		dst.DefaultRecipient = src.DefaultRecipient
	}
	if src.Username != "" {
		dst.Username = src.Username
	}
	if src.Password != "" {
		dst.Password = src.Password
	}
	if src.DKIM.Domain != "" {
		dst.DKIM.Domain = src.DKIM.Domain
	}
	if src.DKIM.Selector != "" {
		dst.DKIM.Selector = src.DKIM.Selector
	}
	if src.DKIM.KeyFile != "" {
		dst.DKIM.KeyFile = src.DKIM.KeyFile
	}
	return dst
}

func mergeFilter(dst, src FilterConfig) FilterConfig {
	if src.MaildirBinary != "" {
		dst.MaildirBinary = src.MaildirBinary
	}
	if src.IMAPBinary != "" {
		dst.IMAPBinary = src.IMAPBinary
	}
	if src.LogLevel != 0 {
		dst.LogLevel = src.LogLevel
	}
	if src.FolderSeparator != "" {
		dst.FolderSeparator = src.FolderSeparator
	}
	if src.IMAPHost != "" {
		dst.IMAPHost = src.IMAPHost
	}
	if src.IMAPUser != "" {
		dst.IMAPUser = src.IMAPUser
	}
	if src.IMAPPassword != "" {
		dst.IMAPPassword = src.IMAPPassword
	}
	if src.IMAPRoot != "" {
		dst.IMAPRoot = src.IMAPRoot
	}
	return dst
}
