package scraper

import (
	"context"
	"time"

	"github.com/studyboard/program-scraper/internal/browser"
)

// Session is the live rendering session the pipeline drives. It is the
// one shared mutable resource in the whole crawler: calls against it are
// strictly serialized, and every component that touches it leaves a known
// URL loaded before returning. *browser.Session is the production
// implementation; tests inject scripted fakes.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Content() (string, error)
	WaitFor(selector string, timeout time.Duration) bool
	Query(selector string) ([]browser.Element, error)
	IsValid() bool
	Close() error
}

// SessionFactory opens a fresh session. The batch orchestrator calls it
// lazily on first need and again after a session-fatal error. The context
// bounds session setup, including any sign-in step, so a cancelled crawl
// does not open fresh sessions mid-recovery.
type SessionFactory func(ctx context.Context) (Session, error)
