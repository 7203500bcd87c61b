// Package inject delivers fixture mail into the system under test.
package inject

import (
	"context"
	"crypto"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/logging"
	"github.com/infodancer/mailproc-harness/internal/metrics"
)

// DefaultMessageID is the Message-ID of the embedded default message.
const DefaultMessageID = "<mailproc-harness-default@localhost>"

// defaultSource names the default message in errors and logs.
const defaultSource = "default message"

//go:embed default.eml
var defaultMessage []byte

// Config controls how messages are injected.
type Config struct {
	Transport config.Transport

	// Sendmail is the command that reads a message on stdin.
	Sendmail []string
	// Flush is run once after all messages were submitted. Empty disables it.
	Flush []string

	SMTPAddress      string
	Helo             string
	Sender           string
	DefaultRecipient string
	Username         string
	Password         string

	DKIM config.DKIMConfig

	// MailboxBase receives messages directly for the maildir transport.
	MailboxBase string
	// DefaultMail replaces the embedded default message when set.
	DefaultMail string
}

// DeliveryError reports a message that could not be injected or a failed
// queue flush.
type DeliveryError struct {
	Source    string
	Transport config.Transport
	Err       error
	Output    string
}

func (e *DeliveryError) Error() string {
	msg := fmt.Sprintf("delivering %s via %s: %v", e.Source, e.Transport, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// transport submits a single message.
type transport interface {
	Submit(ctx context.Context, msg []byte) error
}

// Injector delivers messages through the configured transport.
type Injector struct {
	cfg       Config
	transport transport
	signer    crypto.Signer
	collector metrics.Collector
}

// New creates an Injector. It fails when the transport is unknown or the
// DKIM key cannot be loaded.
func New(cfg Config, collector metrics.Collector) (*Injector, error) {
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	inj := &Injector{cfg: cfg, collector: collector}

	switch cfg.Transport {
	case config.TransportSendmail, "":
		inj.cfg.Transport = config.TransportSendmail
		inj.transport = &sendmailTransport{argv: cfg.Sendmail}
	case config.TransportSMTP:
		inj.transport = &smtpTransport{
			address:   cfg.SMTPAddress,
			helo:      cfg.Helo,
			sender:    cfg.Sender,
			recipient: cfg.DefaultRecipient,
			username:  cfg.Username,
			password:  cfg.Password,
		}
	case config.TransportMaildir:
		inj.transport = &maildirTransport{base: cfg.MailboxBase}
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}

	if cfg.DKIM.IsEnabled() {
		signer, err := loadSigner(cfg.DKIM.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading DKIM key: %w", err)
		}
		inj.signer = signer
	}

	return inj, nil
}

// Transport returns the transport messages are submitted through.
func (i *Injector) Transport() config.Transport {
	return i.cfg.Transport
}

// Inject delivers every message in paths, or the default message when paths
// is empty, then flushes the MTA queue. The first failure aborts injection.
func (i *Injector) Inject(ctx context.Context, paths []string) error {
	logger := logging.FromContext(ctx)

	sources, err := i.sources(paths)
	if err != nil {
		return err
	}

	for _, src := range sources {
		msgs, err := src.messages()
		if err != nil {
			return &DeliveryError{Source: src.name, Transport: i.cfg.Transport, Err: err}
		}
		for n, msg := range msgs {
			if i.signer != nil {
				msg, err = sign(msg, i.cfg.DKIM.Domain, i.cfg.DKIM.Selector, i.signer)
				if err != nil {
					return &DeliveryError{Source: src.name, Transport: i.cfg.Transport, Err: err}
				}
			}

			err := i.transport.Submit(ctx, msg)
			i.collector.MessageInjected(string(i.cfg.Transport), metrics.Result(err))
			if err != nil {
				return wrapDelivery(src.name, i.cfg.Transport, err)
			}
			logger.Debug("message injected",
				"source", src.name,
				"index", n,
				"transport", i.cfg.Transport,
			)
		}
	}

	return i.flush(ctx)
}

// flush forces the MTA to deliver its queue so the mail is visible before
// the filter runs.
func (i *Injector) flush(ctx context.Context) error {
	if i.cfg.Transport == config.TransportMaildir || len(i.cfg.Flush) == 0 {
		return nil
	}
	if err := runCommand(ctx, i.cfg.Flush, nil); err != nil {
		return wrapDelivery("queue flush", i.cfg.Transport, err)
	}
	return nil
}

// sources resolves the message files to inject.
func (i *Injector) sources(paths []string) ([]source, error) {
	if len(paths) > 0 {
		out := make([]source, 0, len(paths))
		for _, p := range paths {
			out = append(out, fileSource(p))
		}
		return out, nil
	}

	if i.cfg.DefaultMail != "" {
		return []source{fileSource(i.cfg.DefaultMail)}, nil
	}
	return []source{{name: defaultSource, data: defaultMessage}}, nil
}

// DefaultMessage returns a copy of the embedded default message.
func DefaultMessage() []byte {
	out := make([]byte, len(defaultMessage))
	copy(out, defaultMessage)
	return out
}

func wrapDelivery(name string, t config.Transport, err error) error {
	var cmdErr *commandError
	if errors.As(err, &cmdErr) {
		return &DeliveryError{Source: name, Transport: t, Err: cmdErr.Err, Output: cmdErr.Output}
	}
	return &DeliveryError{Source: name, Transport: t, Err: err}
}

// source is a message file, possibly an mbox holding several messages.
type source struct {
	name string
	path string
	data []byte
}

func fileSource(path string) source {
	return source{name: filepath.Base(path), path: path}
}

func (s source) messages() ([][]byte, error) {
	data := s.data
	if s.path != "" {
		var err error
		data, err = os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("reading message file: %w", err)
		}
		if isMbox(s.path) {
			return splitMbox(data)
		}
	}
	return [][]byte{data}, nil
}
