package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Element is one interactive element inside a live session.
type Element interface {
	ScrollIntoView() error
	Click() error
	Fill(value string) error
	Attr(name string) (string, error)
	Visible() (bool, error)
	Text() (string, error)
}

// Session wraps one browser tab. A session is a single-owner resource:
// its page state (current URL, scroll position) is mutated in place, so
// concurrent use is not allowed. Callers that finish with a session on an
// error path must still Close it.
type Session struct {
	page   playwright.Page
	logger *slog.Logger
	closed bool
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if !s.IsValid() {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		if isConnectionError(err) {
			s.closed = true
			return fmt.Errorf("navigate %s: %w", url, ErrSessionClosed)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Content returns the current rendered HTML of the page.
func (s *Session) Content() (string, error) {
	if !s.IsValid() {
		return "", ErrSessionClosed
	}
	html, err := s.page.Content()
	if err != nil {
		if isConnectionError(err) {
			s.closed = true
			return "", fmt.Errorf("read page content: %w", ErrSessionClosed)
		}
		return "", fmt.Errorf("read page content: %w", err)
	}
	return html, nil
}

// WaitFor blocks until the selector appears or the timeout elapses.
// A timed-out wait is not an error; the caller proceeds with whatever
// is on the page.
func (s *Session) WaitFor(selector string, timeout time.Duration) bool {
	if !s.IsValid() {
		return false
	}
	_, err := s.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		s.logger.Debug("wait timed out", "selector", selector, "timeout", timeout)
		return false
	}
	return true
}

// Query returns handles for every element currently matching the selector.
func (s *Session) Query(selector string) ([]Element, error) {
	if !s.IsValid() {
		return nil, ErrSessionClosed
	}

	locator := s.page.Locator(selector)
	count, err := locator.Count()
	if err != nil {
		if isConnectionError(err) {
			s.closed = true
			return nil, fmt.Errorf("query %q: %w", selector, ErrSessionClosed)
		}
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	elements := make([]Element, 0, count)
	for i := 0; i < count; i++ {
		elements = append(elements, &element{locator: locator.Nth(i)})
	}
	return elements, nil
}

func (s *Session) IsValid() bool {
	return s != nil && !s.closed && s.page != nil && !s.page.IsClosed()
}

// Close tears the tab down. Safe to call at any point, including on a
// session that already died; never panics.
func (s *Session) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	if s.page == nil || s.page.IsClosed() {
		return nil
	}
	if err := s.page.Close(); err != nil {
		s.logger.Warn("failed to close page", "error", err)
		return fmt.Errorf("close page: %w", err)
	}
	return nil
}

type element struct {
	locator playwright.Locator
}

func (e *element) ScrollIntoView() error {
	return e.locator.ScrollIntoViewIfNeeded()
}

func (e *element) Click() error {
	return e.locator.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(5000),
	})
}

func (e *element) Fill(value string) error {
	return e.locator.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(5000),
	})
}

func (e *element) Attr(name string) (string, error) {
	val, err := e.locator.GetAttribute(name)
	if err != nil {
		return "", err
	}
	return val, nil
}

func (e *element) Visible() (bool, error) {
	return e.locator.IsVisible()
}

func (e *element) Text() (string, error) {
	text, err := e.locator.TextContent()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// isConnectionError recognizes playwright failures that mean the tab or
// browser connection is gone for good rather than a transient page issue.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"target closed",
		"target page, context or browser has been closed",
		"browser has been closed",
		"connection closed",
		"websocket",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
