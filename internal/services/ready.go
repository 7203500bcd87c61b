package services

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-smtp"
)

// netChecker checks readiness over the network. Each check is a single
// attempt.
type netChecker struct{}

// SMTP connects to address, reads the greeting and says hello.
func (netChecker) SMTP(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := smtp.Dial(address)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer c.Close()

	if err := c.Hello("localhost"); err != nil {
		return fmt.Errorf("EHLO to %s: %w", address, err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("QUIT to %s: %w", address, err)
	}
	return nil
}

// IMAP connects to address and logs in with the given credentials.
func (netChecker) IMAP(ctx context.Context, address, user, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := imapclient.DialInsecure(address, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", address, err)
	}
	defer c.Close()

	if err := c.Login(user, password).Wait(); err != nil {
		return fmt.Errorf("login to %s as %s: %w", address, user, err)
	}
	if err := c.Logout().Wait(); err != nil {
		return fmt.Errorf("logout from %s: %w", address, err)
	}
	return nil
}
