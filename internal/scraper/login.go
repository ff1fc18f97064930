package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	loginPath           = "/login"
	loginUserSelector   = `input[name="username"]`
	loginPassSelector   = `input[name="password"]`
	loginSubmitSelector = `button[type="submit"]`
	loginMenuSelector   = `[data-testid="user-menu"]`

	loginFormWait   = 10 * time.Second
	loginSettleWait = 10 * time.Second
)

// WithCredentials forwards credentials to the sign-in step. The strings
// are opaque to the crawler: they are typed into the login form as-is.
// Every session the crawler opens, including ones recreated after a
// recovery, signs in before first use; a failed sign-in is logged and the
// session continues anonymously.
func (c *Crawler) WithCredentials(username, password string) *Crawler {
	if username == "" {
		return c
	}

	base := c.newSession
	loginURL := strings.TrimSuffix(c.baseURL, "/") + loginPath
	logger := c.logger.With("component", "login")

	c.newSession = func(ctx context.Context) (Session, error) {
		session, err := base(ctx)
		if err != nil {
			return nil, err
		}
		if err := login(ctx, session, loginURL, username, password); err != nil {
			if IsSessionFatal(err) || ctx.Err() != nil {
				session.Close()
				return nil, err
			}
			logger.Warn("sign-in failed, continuing anonymously", "error", err)
		}
		return session, nil
	}
	return c
}

// login opens the login page and submits the form. A page without a
// username field means no sign-in is required; that is not an error.
func login(ctx context.Context, session Session, loginURL, username, password string) error {
	if err := session.Navigate(ctx, loginURL); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	session.WaitFor(loginUserSelector, loginFormWait)

	userFields, err := session.Query(loginUserSelector)
	if err != nil {
		return fmt.Errorf("find username field: %w", err)
	}
	if len(userFields) == 0 {
		return nil
	}
	if err := userFields[0].Fill(username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}

	passFields, err := session.Query(loginPassSelector)
	if err != nil {
		return fmt.Errorf("find password field: %w", err)
	}
	if len(passFields) == 0 {
		return fmt.Errorf("login form has no password field")
	}
	if err := passFields[0].Fill(password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	submits, err := session.Query(loginSubmitSelector)
	if err != nil {
		return fmt.Errorf("find submit control: %w", err)
	}
	if len(submits) == 0 {
		return fmt.Errorf("login form has no submit control")
	}
	if err := submits[0].Click(); err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	session.WaitFor(loginMenuSelector, loginSettleWait)
	return nil
}
