package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/studyboard/program-scraper/internal/models"
	"github.com/studyboard/program-scraper/internal/ratelimit"
)

const detailContentWait = 10 * time.Second

// BatchOrchestrator visits detail pages strictly in input order and
// assembles the output sequence of programs. Errors are local by
// default: a failed page is logged and dropped, never retried. Only a
// session-fatal error changes the flow: the dead session is closed,
// partially built state discarded, a fresh session opened, and the batch
// moves on to the next URL.
type BatchOrchestrator struct {
	newSession SessionFactory
	extractor  *Extractor
	logger     *slog.Logger
	settle     time.Duration
	transition time.Duration
	limiter    ratelimit.Limiter

	session    Session
	recoveries int
}

func NewBatchOrchestrator(factory SessionFactory, logger *slog.Logger) *BatchOrchestrator {
	return &BatchOrchestrator{
		newSession: factory,
		extractor:  NewExtractor(logger),
		logger:     logger.With("component", "batch"),
		settle:     defaultSettleWait,
		transition: defaultTransitionWait,
	}
}

// WithWaits overrides the fixed settle/transition waits used by the
// expander and carousel walker.
func (b *BatchOrchestrator) WithWaits(settle, transition time.Duration) *BatchOrchestrator {
	b.settle = settle
	b.transition = transition
	return b
}

// WithLimiter spaces out detail-page fetches. Nil disables pacing.
func (b *BatchOrchestrator) WithLimiter(limiter ratelimit.Limiter) *BatchOrchestrator {
	b.limiter = limiter
	return b
}

// Recoveries reports how many times the render session was recreated.
func (b *BatchOrchestrator) Recoveries() int {
	return b.recoveries
}

// RunBatch processes the URLs in order and returns the surviving
// records. Records without a program name are discarded rather than
// emitted. The returned error is non-nil only when the batch could not
// start or could not continue at all.
func (b *BatchOrchestrator) RunBatch(ctx context.Context, urls []string) ([]models.Program, error) {
	if len(urls) == 0 {
		return nil, ErrNoProgramRefs
	}

	defer b.teardown()

	var programs []models.Program
	attempted := 0

	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return programs, err
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return programs, err
			}
		}
		attempted++

		if err := b.ensureSession(ctx); err != nil {
			return programs, err
		}

		program, err := b.scrapeDetailPage(ctx, url)
		if err != nil {
			if IsSessionFatal(err) {
				b.logger.Warn("render session lost, recovering", "url", url, "error", err)
				b.recover()
			} else {
				b.logger.Error("failed to scrape program", "url", url, "error", err)
			}
			b.logger.Info("batch progress", "attempted", attempted, "succeeded", len(programs))
			continue
		}

		if !program.HasIdentity() {
			b.logger.Warn("discarding record without program name", "url", url)
			b.logger.Info("batch progress", "attempted", attempted, "succeeded", len(programs))
			continue
		}

		programs = append(programs, *program)
		b.logger.Info("batch progress", "attempted", attempted, "succeeded", len(programs))
	}

	b.logger.Info("batch finished", "attempted", attempted, "succeeded", len(programs), "recoveries", b.recoveries)
	return programs, nil
}

func (b *BatchOrchestrator) scrapeDetailPage(ctx context.Context, url string) (*models.Program, error) {
	if err := b.session.Navigate(ctx, url); err != nil {
		return nil, fmt.Errorf("open detail page: %w", err)
	}
	b.session.WaitFor("h1", detailContentWait)

	NewSectionExpander(b.session, b.logger).WithSettle(b.settle).Expand()

	html, err := b.session.Content()
	if err != nil {
		return nil, fmt.Errorf("read detail page: %w", err)
	}

	program := b.extractor.ExtractProgram(html, url)

	scholarships, err := NewCarouselWalker(b.session, b.logger).WithTransitionWait(b.transition).Walk()
	if err != nil {
		return nil, fmt.Errorf("walk scholarships: %w", err)
	}
	if scholarships != nil {
		program.Scholarships = scholarships
	}

	return program, nil
}

// ensureSession opens the session lazily on first need and after a
// recovery dropped it.
func (b *BatchOrchestrator) ensureSession(ctx context.Context) error {
	if b.session != nil && b.session.IsValid() {
		return nil
	}
	if b.session != nil {
		b.session.Close()
		b.session = nil
		b.recoveries++
	}

	session, err := b.newSession(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoRenderBackend, err)
	}
	b.session = session
	return nil
}

// recover closes the dead session so that the next iteration opens a
// fresh one. Any half-built record for the current URL is already gone:
// the URL is simply absent from the output.
func (b *BatchOrchestrator) recover() {
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}
	b.recoveries++
}

func (b *BatchOrchestrator) teardown() {
	if b.session != nil {
		b.session.Close()
		b.session = nil
	}
}
