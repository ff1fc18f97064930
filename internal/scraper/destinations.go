package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/studyboard/program-scraper/internal/dom"
	"github.com/studyboard/program-scraper/internal/models"
)

// Destination discovery runs over plain HTTP: the homepage menu and the
// country pages are server-rendered, so no render session is needed and
// calls are safe to parallelize.

var destinationSlugs = []string{
	"australia",
	"canada",
	"ireland",
	"germany",
	"uk",
	"usa",
}

type DestinationDiscoverer struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

func NewDestinationDiscoverer(baseURL string, logger *slog.Logger) *DestinationDiscoverer {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetRetryCount(2)

	return &DestinationDiscoverer{
		client:  client,
		baseURL: baseURL,
		logger:  logger.With("component", "destinations"),
	}
}

// Discover scrapes the homepage menu for study-destination links.
// Destinations are keyed by display name; a later link with the same
// name overwrites the earlier one.
func (d *DestinationDiscoverer) Discover(ctx context.Context) (map[string]models.Destination, error) {
	doc, err := d.fetch(ctx, d.baseURL)
	if err != nil {
		return nil, err
	}

	destinations := make(map[string]models.Destination)
	for _, link := range dom.FindAll(doc.Selection, dom.Spec{Tag: "a", Class: "elementor-sub-item"}) {
		href := dom.Attr(link, "href")
		name := dom.Text(link, true)
		if href == "" || name == "" {
			continue
		}
		if !isDestinationLink(href) {
			continue
		}
		destinations[name] = models.Destination{Name: name, ListingURL: href}
	}

	if len(destinations) == 0 {
		return nil, ErrNoDestinations
	}

	d.logger.Info("discovered destinations", "count", len(destinations))
	return destinations, nil
}

// ExploreProgramsLink resolves a country page to its program-search URL
// via the "Explore more programs" button, falling back to any search link
// that carries filter parameters.
func (d *DestinationDiscoverer) ExploreProgramsLink(ctx context.Context, countryURL string) (string, error) {
	doc, err := d.fetch(ctx, countryURL)
	if err != nil {
		return "", err
	}

	for _, link := range dom.FindAll(doc.Selection, dom.Spec{Tag: "a", Class: "elementor-button"}) {
		text := strings.ToLower(dom.Text(link, true))
		if strings.Contains(text, "explore") && strings.Contains(text, "program") {
			if href := dom.Attr(link, "href"); href != "" {
				return href, nil
			}
		}
	}

	fallback := dom.Find(doc.Selection, dom.Spec{
		Tag: "a",
		AttrMatch: map[string]func(string) bool{
			"href": func(href string) bool {
				return strings.Contains(href, "/search?") && strings.Contains(href, "filter")
			},
		},
	})
	if fallback != nil {
		return dom.Attr(fallback, "href"), nil
	}

	return "", fmt.Errorf("no programs link found on %s", countryURL)
}

func (d *DestinationDiscoverer) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	resp, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}

	doc, err := dom.ParseDocument(string(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}

func isDestinationLink(href string) bool {
	lower := strings.ToLower(href)
	for _, slug := range destinationSlugs {
		if strings.Contains(lower, slug) {
			return true
		}
	}
	return false
}
