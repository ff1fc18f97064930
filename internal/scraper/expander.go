package scraper

import (
	"log/slog"
	"time"
)

// Collapsed-content controls come in three independent flavors on detail
// pages. Each category has its own query; a category with zero matches is
// simply skipped.
var expansionSelectors = []string{
	`button[data-testid="show-more-button"]`,
	`[data-state="collapsed"]`,
	`[data-accordion-component="AccordionItemButton"][aria-expanded="false"]`,
}

const defaultSettleWait = 300 * time.Millisecond

// SectionExpander reveals collapsed and truncated content on a detail
// page before extraction. Running it on an already-expanded page is a
// no-op: the matched elements are gone or carry expanded state.
type SectionExpander struct {
	session Session
	logger  *slog.Logger
	settle  time.Duration
}

func NewSectionExpander(session Session, logger *slog.Logger) *SectionExpander {
	return &SectionExpander{
		session: session,
		logger:  logger.With("component", "expander"),
		settle:  defaultSettleWait,
	}
}

// WithSettle overrides the fixed settle wait between interactions.
func (e *SectionExpander) WithSettle(d time.Duration) *SectionExpander {
	e.settle = d
	return e
}

// Expand activates every matched control: scroll into view, settle,
// click, settle. A broken control is skipped so the rest of the page
// still expands. Returns the number of successful activations.
func (e *SectionExpander) Expand() int {
	activated := 0

	for _, selector := range expansionSelectors {
		elements, err := e.session.Query(selector)
		if err != nil {
			e.logger.Warn("expansion query failed", "selector", selector, "error", err)
			continue
		}
		if len(elements) == 0 {
			continue
		}

		e.logger.Debug("expanding", "selector", selector, "count", len(elements))

		for _, el := range elements {
			if err := el.ScrollIntoView(); err != nil {
				e.logger.Debug("skipping control, scroll failed", "selector", selector, "error", err)
				continue
			}
			time.Sleep(e.settle)

			if err := el.Click(); err != nil {
				e.logger.Debug("skipping control, activation failed", "selector", selector, "error", err)
				continue
			}
			time.Sleep(e.settle)
			activated++
		}
	}

	return activated
}
