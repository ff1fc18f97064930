package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/studyboard/program-scraper/internal/dom"
	"github.com/studyboard/program-scraper/internal/models"
)

const (
	// listingPageSize overrides the site default of 12 cards per page to
	// cut down the number of page fetches.
	listingPageSize = 48

	listingCardWait = 10 * time.Second
)

var (
	totalItemsPattern = regexp.MustCompile(`of\s+(\d+)\s+items`)
	pageSizePattern   = regexp.MustCompile(`page\[size\]=\d+`)
	pageNumberPattern = regexp.MustCompile(`page\[number\]=\d+`)
)

// PaginationWalker traverses a program listing page by page, collecting
// detail-page references until the requested limit or the declared total
// is reached. Each CollectProgramRefs call is self-contained and
// restartable.
type PaginationWalker struct {
	session Session
	logger  *slog.Logger
}

func NewPaginationWalker(session Session, logger *slog.Logger) *PaginationWalker {
	return &PaginationWalker{
		session: session,
		logger:  logger.With("component", "pagination"),
	}
}

func (w *PaginationWalker) CollectProgramRefs(ctx context.Context, listingURL string, limit int) ([]models.ProgramRef, error) {
	if limit <= 0 {
		return nil, nil
	}

	pageURL := NormalizeListingURL(listingURL)
	if err := w.session.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("render listing page: %w", err)
	}
	w.session.WaitFor("article", listingCardWait)

	html, err := w.session.Content()
	if err != nil {
		return nil, fmt.Errorf("read listing page: %w", err)
	}
	doc, err := dom.ParseDocument(html)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	// Total of 0 means the count text was missing or reworded; the walker
	// then trusts the caller-provided limit alone.
	total := ParseTotalItems(doc)
	w.logger.Info("listing opened", "url", pageURL, "declared_total", total)

	var refs []models.ProgramRef
	pageNum := 1

	for {
		pageRefs := extractProgramRefs(doc)
		w.logger.Info("found programs on page", "page", pageNum, "count", len(pageRefs))

		for _, ref := range pageRefs {
			refs = append(refs, ref)
			if len(refs) >= limit || (total > 0 && len(refs) >= total) {
				return refs, nil
			}
		}

		// A page with no extractable cards means either the listing ended
		// early or the layout changed; either way forward progress stops.
		if len(pageRefs) == 0 {
			break
		}
		if total > 0 && len(refs) >= total {
			break
		}

		pageNum++
		pageURL = NextPageURL(pageURL, pageNum)
		if err := w.session.Navigate(ctx, pageURL); err != nil {
			if IsSessionFatal(err) {
				return refs, err
			}
			w.logger.Warn("next page failed to render, stopping", "page", pageNum, "error", err)
			break
		}
		w.session.WaitFor("article", listingCardWait)

		html, err = w.session.Content()
		if err != nil {
			if IsSessionFatal(err) {
				return refs, err
			}
			w.logger.Warn("failed to read next page, stopping", "page", pageNum, "error", err)
			break
		}
		doc, err = dom.ParseDocument(html)
		if err != nil {
			w.logger.Warn("failed to parse next page, stopping", "page", pageNum, "error", err)
			break
		}
	}

	return refs, nil
}

// NormalizeListingURL requests the larger page size, replacing an
// existing page[size] parameter or appending one.
func NormalizeListingURL(listingURL string) string {
	sizeParam := fmt.Sprintf("page[size]=%d", listingPageSize)
	if pageSizePattern.MatchString(listingURL) {
		return pageSizePattern.ReplaceAllString(listingURL, sizeParam)
	}
	sep := "?"
	if strings.Contains(listingURL, "?") {
		sep = "&"
	}
	return listingURL + sep + sizeParam
}

// NextPageURL sets the page-number query parameter, inserting it if
// absent and replacing it if present.
func NextPageURL(currentURL string, pageNum int) string {
	numParam := fmt.Sprintf("page[number]=%d", pageNum)
	if pageNumberPattern.MatchString(currentURL) {
		return pageNumberPattern.ReplaceAllString(currentURL, numParam)
	}
	sep := "?"
	if strings.Contains(currentURL, "?") {
		sep = "&"
	}
	return currentURL + sep + numParam
}

// ParseTotalItems reads the "1 - 48 of 830 items" pagination caption.
// Returns 0 when the caption is missing or does not match.
func ParseTotalItems(doc *goquery.Document) int {
	caption := dom.Find(doc.Selection, dom.Spec{Tag: "span", Attr: map[string]string{"data-testid": "temp"}})
	if caption == nil {
		return 0
	}
	match := totalItemsPattern.FindStringSubmatch(dom.Text(caption, true))
	if match == nil {
		return 0
	}
	total, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return total
}

// extractProgramRefs pulls detail-page links out of every card-like
// element on the page. A card without a discoverable link is skipped.
func extractProgramRefs(doc *goquery.Document) []models.ProgramRef {
	cards := dom.FindAll(doc.Selection, dom.Spec{Tag: "article", Class: "css-1v3njm"})
	if len(cards) == 0 {
		// Legacy layout: plain articles.
		cards = dom.FindAll(doc.Selection, dom.Spec{Tag: "article"})
	}

	var refs []models.ProgramRef
	for _, card := range cards {
		if href := programLink(card); href != "" {
			refs = append(refs, models.ProgramRef{DetailURL: href})
		}
	}
	return refs
}

func programLink(card *goquery.Selection) string {
	link := dom.Find(card, dom.Spec{
		Tag: "a",
		AttrMatch: map[string]func(string) bool{
			"href": func(href string) bool { return strings.Contains(href, "/programs/") },
		},
	})
	return dom.Attr(link, "href")
}
