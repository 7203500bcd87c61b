package inject

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/infodancer/mailproc-harness/internal/logging"
	"github.com/infodancer/mailproc-harness/internal/maildir"
)

// commandError carries the output of a failed external command.
type commandError struct {
	Err    error
	Output string
}

func (e *commandError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Output)
}

func (e *commandError) Unwrap() error {
	return e.Err
}

// runCommand runs argv with stdin as its input. Output is logged at debug
// level and returned in the error on failure.
func runCommand(ctx context.Context, argv []string, stdin io.Reader) error {
	if len(argv) == 0 {
		return errors.New("no command configured")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = stdin
	output, err := cmd.CombinedOutput()

	if len(output) > 0 {
		w := logging.NewOutputWriter(logging.FromContext(ctx), argv[0])
		_, _ = w.Write(output)
		w.Flush()
	}
	if err != nil {
		return &commandError{Err: err, Output: strings.TrimSpace(string(output))}
	}
	return nil
}

// sendmailTransport pipes each message to the MTA's sendmail interface.
type sendmailTransport struct {
	argv []string
}

func (t *sendmailTransport) Submit(ctx context.Context, msg []byte) error {
	return runCommand(ctx, t.argv, bytes.NewReader(msg))
}

// smtpTransport submits each message over SMTP.
type smtpTransport struct {
	address   string
	helo      string
	sender    string
	recipient string
	username  string
	password  string
}

func (t *smtpTransport) Submit(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rcpts, err := recipients(msg)
	if err != nil {
		return err
	}
	if len(rcpts) == 0 {
		if t.recipient == "" {
			return errors.New("message has no recipients and no default recipient is configured")
		}
		rcpts = []string{t.recipient}
	}

	c, err := smtp.Dial(t.address)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", t.address, err)
	}
	defer c.Close()

	if t.helo != "" {
		if err := c.Hello(t.helo); err != nil {
			return fmt.Errorf("EHLO: %w", err)
		}
	}
	if t.username != "" {
		if err := c.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
			return fmt.Errorf("AUTH PLAIN as %s: %w", t.username, err)
		}
	}

	if err := c.Mail(t.sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM <%s>: %w", t.sender, err)
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("RCPT TO <%s>: %w", rcpt, err)
		}
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := wc.Write(msg); err != nil {
		_ = wc.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finishing DATA: %w", err)
	}

	if err := c.Quit(); err != nil {
		logging.FromContext(ctx).Warn("SMTP QUIT failed", "error", err)
	}
	return nil
}

// recipients collects the To, Cc and Bcc addresses of msg.
func recipients(msg []byte) ([]string, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(msg)))
	if err != nil {
		return nil, fmt.Errorf("reading message header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	var out []string
	for _, key := range []string{"To", "Cc", "Bcc"} {
		addrs, err := h.AddressList(key)
		if err != nil {
			return nil, fmt.Errorf("parsing %s header: %w", key, err)
		}
		for _, a := range addrs {
			out = append(out, a.Address)
		}
	}
	return out, nil
}

// maildirTransport delivers straight into the mailbox base without an MTA.
type maildirTransport struct {
	base string
}

func (t *maildirTransport) Submit(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return maildir.Deliver(t.base, ".", bytes.NewReader(msg))
}
