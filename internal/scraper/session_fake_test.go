package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/studyboard/program-scraper/internal/browser"
)

// errSessionLost simulates the session-fatal failure mode.
var errSessionLost = browser.ErrSessionClosed

// fakeElement is a scriptable browser.Element.
type fakeElement struct {
	text      string
	visible   bool
	attrs     map[string]string
	filled    string
	scrollErr error
	clickErr  error
	fillErr   error
	onClick   func()
}

func (e *fakeElement) ScrollIntoView() error { return e.scrollErr }

func (e *fakeElement) Click() error {
	if e.clickErr != nil {
		return e.clickErr
	}
	if e.onClick != nil {
		e.onClick()
	}
	return nil
}

func (e *fakeElement) Fill(value string) error {
	if e.fillErr != nil {
		return e.fillErr
	}
	e.filled = value
	return nil
}

func (e *fakeElement) Attr(name string) (string, error) {
	return e.attrs[name], nil
}

func (e *fakeElement) Visible() (bool, error) { return e.visible, nil }

func (e *fakeElement) Text() (string, error) { return e.text, nil }

// fakeSession serves canned HTML per URL and routes element queries
// through a per-test hook.
type fakeSession struct {
	pages      map[string]string
	navErr     map[string]error
	queryFn    func(selector string) ([]browser.Element, error)
	current    string
	queries    []string
	navigated  []string
	closed     bool
	invalid    bool
	contentErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pages:  map[string]string{},
		navErr: map[string]error{},
	}
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.navigated = append(s.navigated, url)
	if err := s.navErr[url]; err != nil {
		if IsSessionFatal(err) {
			s.invalid = true
		}
		return err
	}
	if _, ok := s.pages[url]; !ok {
		return fmt.Errorf("no page for %s", url)
	}
	s.current = url
	return nil
}

func (s *fakeSession) Content() (string, error) {
	if s.contentErr != nil {
		return "", s.contentErr
	}
	return s.pages[s.current], nil
}

func (s *fakeSession) WaitFor(selector string, timeout time.Duration) bool { return true }

func (s *fakeSession) Query(selector string) ([]browser.Element, error) {
	s.queries = append(s.queries, selector)
	if s.queryFn == nil {
		return nil, nil
	}
	return s.queryFn(selector)
}

func (s *fakeSession) IsValid() bool { return !s.closed && !s.invalid }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSession) queryCount(selector string) int {
	n := 0
	for _, q := range s.queries {
		if q == selector {
			n++
		}
	}
	return n
}
