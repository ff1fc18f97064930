package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/studyboard/program-scraper/internal/models"
	"github.com/studyboard/program-scraper/internal/ratelimit"
)

// Crawler runs the full pipeline for one destination: resolve the
// listing URL, walk its pages for program references, then batch-scrape
// the detail pages.
type Crawler struct {
	discoverer *DestinationDiscoverer
	newSession SessionFactory
	baseURL    string
	logger     *slog.Logger
	settle     time.Duration
	transition time.Duration
	limiter    ratelimit.Limiter
}

// CrawlResult is the outcome of one destination crawl.
type CrawlResult struct {
	Destination models.Destination
	SourceURL   string
	Programs    []models.Program
	Recoveries  int
}

func NewCrawler(baseURL string, factory SessionFactory, logger *slog.Logger) *Crawler {
	return &Crawler{
		discoverer: NewDestinationDiscoverer(baseURL, logger),
		newSession: factory,
		baseURL:    baseURL,
		logger:     logger.With("component", "crawler"),
		settle:     defaultSettleWait,
		transition: defaultTransitionWait,
	}
}

// WithWaits overrides the settle and transition waits used on detail pages.
func (c *Crawler) WithWaits(settle, transition time.Duration) *Crawler {
	c.settle = settle
	c.transition = transition
	return c
}

// WithRateLimit paces detail-page fetches with a jittered gap.
func (c *Crawler) WithRateLimit(min, max time.Duration) *Crawler {
	if min > 0 {
		c.limiter = ratelimit.NewJitteredLimiter(min, max)
	}
	return c
}

// Destinations lists the discoverable study destinations.
func (c *Crawler) Destinations(ctx context.Context) (map[string]models.Destination, error) {
	return c.discoverer.Discover(ctx)
}

// Crawl scrapes up to limit programs for the named destination.
func (c *Crawler) Crawl(ctx context.Context, destination string, limit int) (*CrawlResult, error) {
	dest, err := c.resolveDestination(ctx, destination)
	if err != nil {
		return nil, err
	}

	listingURL, err := c.discoverer.ExploreProgramsLink(ctx, dest.ListingURL)
	if err != nil {
		return nil, fmt.Errorf("resolve listing for %s: %w", dest.Name, err)
	}

	c.logger.Info("starting crawl",
		"destination", dest.Name,
		"listing_url", listingURL,
		"limit", limit)

	session, err := c.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRenderBackend, err)
	}

	walker := NewPaginationWalker(session, c.logger)
	refs, err := walker.CollectProgramRefs(ctx, listingURL, limit)
	session.Close()
	if err != nil && len(refs) == 0 {
		return nil, fmt.Errorf("collect program refs: %w", err)
	}
	if err != nil {
		c.logger.Warn("listing traversal ended early", "collected", len(refs), "error", err)
	}
	if len(refs) == 0 {
		return nil, ErrNoProgramRefs
	}

	urls := make([]string, 0, len(refs))
	for _, ref := range refs {
		urls = append(urls, ref.DetailURL)
	}

	orchestrator := NewBatchOrchestrator(c.newSession, c.logger).
		WithWaits(c.settle, c.transition).
		WithLimiter(c.limiter)
	programs, err := orchestrator.RunBatch(ctx, urls)
	if err != nil && len(programs) == 0 {
		return nil, fmt.Errorf("batch scrape: %w", err)
	}
	if err != nil {
		c.logger.Warn("batch ended early", "scraped", len(programs), "error", err)
	}

	return &CrawlResult{
		Destination: dest,
		SourceURL:   listingURL,
		Programs:    programs,
		Recoveries:  orchestrator.Recoveries(),
	}, nil
}

func (c *Crawler) resolveDestination(ctx context.Context, name string) (models.Destination, error) {
	destinations, err := c.discoverer.Discover(ctx)
	if err != nil {
		return models.Destination{}, err
	}

	if dest, ok := destinations[name]; ok {
		return dest, nil
	}
	for key, dest := range destinations {
		if strings.EqualFold(key, name) {
			return dest, nil
		}
	}

	return models.Destination{}, fmt.Errorf("unknown destination %q", name)
}
