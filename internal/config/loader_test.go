package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	require.NoError(t, err, "missing file falls back to defaults")
	assert.Equal(t, Default().MailboxBase, cfg.MailboxBase)
}

func TestLoadValidTOML(t *testing.T) {
	content := `
[harness]
log_level = "debug"
tests_dir = "/srv/tests"
mailbox_base = "/home/test/Maildir"
protocols = ["imap"]
default_mail = "/srv/default.eml"

[harness.services]
mta_start = ["systemctl", "start", "postfix"]
imap_stop = ["doveadm", "stop"]
wait_ready = true

[harness.inject]
transport = "smtp"
smtp_address = "127.0.0.1:2525"
sender = "tests@example.com"

[harness.inject.dkim]
domain = "example.com"
selector = "s1"
key_file = "/srv/dkim.pem"

[harness.filter]
maildir_binary = "/usr/local/bin/maildirproc"
log_level = 10
imap_root = "Mail"
`

	cfg, err := Load(createTempConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/tests", cfg.TestsDir)
	assert.Equal(t, "/home/test/Maildir", cfg.MailboxBase)
	assert.Equal(t, []Protocol{ProtocolIMAP}, cfg.Protocols)
	assert.Equal(t, "/srv/default.eml", cfg.DefaultMail)

	assert.Equal(t, []string{"systemctl", "start", "postfix"}, cfg.Services.MTAStart)
	assert.Equal(t, Default().Services.MTAStop, cfg.Services.MTAStop, "unset commands keep their defaults")
	assert.True(t, cfg.Services.WaitReady)

	assert.Equal(t, TransportSMTP, cfg.Inject.Transport)
	assert.Equal(t, "127.0.0.1:2525", cfg.Inject.SMTPAddress)
	assert.True(t, cfg.Inject.DKIM.IsEnabled())
	assert.Equal(t, "s1", cfg.Inject.DKIM.Selector)

	assert.Equal(t, "/usr/local/bin/maildirproc", cfg.Filter.MaildirBinary)
	assert.Equal(t, "imapproc", cfg.Filter.IMAPBinary)
	assert.Equal(t, 10, cfg.Filter.LogLevel)
	assert.Equal(t, "Mail", cfg.Filter.IMAPRoot)

	assert.NoError(t, cfg.Validate())
}

func TestLoadInvalidTOML(t *testing.T) {
	content := `
[harness
tests_dir = "broken
`

	_, err := Load(createTempConfig(t, content))
	assert.Error(t, err)
}

func TestLoadPartialConfig(t *testing.T) {
	content := `
[harness]
tests_dir = "/partial"
`

	cfg, err := Load(createTempConfig(t, content))
	require.NoError(t, err)

	defaults := Default()
	assert.Equal(t, "/partial", cfg.TestsDir)
	assert.Equal(t, defaults.LogLevel, cfg.LogLevel)
	assert.Equal(t, defaults.Filter.IMAPHost, cfg.Filter.IMAPHost)
}

func TestLoadMetricsConfig(t *testing.T) {
	content := `
[harness.metrics]
enabled = true
address = ":9200"
path = "/custom-metrics"
textfile = "/var/lib/node_exporter/harness.prom"
`

	cfg, err := Load(createTempConfig(t, content))
	require.NoError(t, err)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9200", cfg.Metrics.Address)
	assert.Equal(t, "/custom-metrics", cfg.Metrics.Path)
	assert.Equal(t, "/var/lib/node_exporter/harness.prom", cfg.Metrics.Textfile)
}

func TestApplyFlags(t *testing.T) {
	flags := &Flags{
		LogLevel:    "debug",
		TestsDir:    "/flag/tests",
		MailboxBase: "/flag/Maildir",
		Protocols:   "maildir, imap ,",
		Transport:   "maildir",
		MetricsFile: "/flag/metrics.prom",
	}

	result := ApplyFlags(Default(), flags)

	assert.Equal(t, "debug", result.LogLevel)
	assert.Equal(t, "/flag/tests", result.TestsDir)
	assert.Equal(t, "/flag/Maildir", result.MailboxBase)
	assert.Equal(t, []Protocol{ProtocolMaildir, ProtocolIMAP}, result.Protocols)
	assert.Equal(t, TransportMaildir, result.Inject.Transport)
	assert.True(t, result.Metrics.Enabled, "a metrics file turns metrics on")
	assert.Equal(t, "/flag/metrics.prom", result.Metrics.Textfile)
}

func TestApplyFlagsEmptyValuesDoNotOverride(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	cfg.TestsDir = "/original"

	result := ApplyFlags(cfg, &Flags{})

	assert.Equal(t, "warn", result.LogLevel)
	assert.Equal(t, "/original", result.TestsDir)
	assert.Len(t, result.Protocols, 2)
}

func TestParseFlagSet(t *testing.T) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	f := ParseFlagSet(fs, []string{"-config", "/etc/harness.toml", "-run", "archive", "-protocols", "imap"})

	assert.Equal(t, "/etc/harness.toml", f.ConfigPath)
	assert.Equal(t, "archive", f.Run)
	assert.Equal(t, "imap", f.Protocols)
}

func TestFlagPriorityOverEnvAndConfig(t *testing.T) {
	content := `
[harness]
log_level = "warn"
tests_dir = "/from-config"
`
	path := createTempConfig(t, content)

	t.Setenv("MAILPROC_HARNESS_LOG_LEVEL", "error")
	t.Setenv("MAILPROC_HARNESS_TESTS_DIR", "/from-env")

	cfg, err := LoadWithFlags(&Flags{ConfigPath: path, TestsDir: "/from-flag"})
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.LogLevel, "env overrides config")
	assert.Equal(t, "/from-flag", cfg.TestsDir, "flag overrides env")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MAILPROC_HARNESS_PROTOCOLS", "imap")
	t.Setenv("MAILPROC_HARNESS_TRANSPORT", "smtp")
	t.Setenv("MAILPROC_HARNESS_IMAP_PASSWORD", "secret")
	t.Setenv("MAILPROC_HARNESS_FILTER_LOG_LEVEL", "5")

	cfg := ApplyEnv(Default())

	assert.Equal(t, []Protocol{ProtocolIMAP}, cfg.Protocols)
	assert.Equal(t, TransportSMTP, cfg.Inject.Transport)
	assert.Equal(t, "secret", cfg.Filter.IMAPPassword)
	assert.Equal(t, 5, cfg.Filter.LogLevel)
}

func TestApplyEnvIgnoresBadLogLevel(t *testing.T) {
	t.Setenv("MAILPROC_HARNESS_FILTER_LOG_LEVEL", "loud")

	cfg := ApplyEnv(Default())
	assert.Equal(t, 99, cfg.Filter.LogLevel)
}

func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
