package scraper

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/studyboard/program-scraper/internal/models"
)

const (
	carouselContainerSelector = `[data-testid="scholarships-carousel"]`
	carouselCardSelector      = `[data-testid="scholarship-card"]`
	carouselNextSelector      = `[data-testid="scholarships-carousel"] button[aria-label="Next"]`

	// maxCarouselIterations bounds runaway carousels. Hitting the cap is a
	// soft stop: whatever was gathered is returned.
	maxCarouselIterations = 25

	defaultTransitionWait = 400 * time.Millisecond
)

type carouselState int

const (
	stateScanning carouselState = iota
	stateAdvancing
	stateDone
)

// CarouselWalker pages through the scholarships carousel on a detail
// page. The widget loops endlessly with no last-page signal, so the sole
// reliable end condition is a full pass that yields no names we have not
// already seen. A walk consumes live session state and is not restartable.
type CarouselWalker struct {
	session    Session
	logger     *slog.Logger
	transition time.Duration
}

func NewCarouselWalker(session Session, logger *slog.Logger) *CarouselWalker {
	return &CarouselWalker{
		session:    session,
		logger:     logger.With("component", "carousel"),
		transition: defaultTransitionWait,
	}
}

// WithTransitionWait overrides the fixed wait after advancing.
func (w *CarouselWalker) WithTransitionWait(d time.Duration) *CarouselWalker {
	w.transition = d
	return w
}

// Walk returns the carousel's entries in first-seen order, deduplicated
// by name. A page without a carousel yields an empty sequence and no
// session interaction beyond the container probe.
func (w *CarouselWalker) Walk() ([]models.Scholarship, error) {
	containers, err := w.session.Query(carouselContainerSelector)
	if err != nil {
		return nil, fmt.Errorf("probe carousel: %w", err)
	}
	if len(containers) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var entries []models.Scholarship

	state := stateScanning
	iterations := 0

	for state != stateDone {
		switch state {
		case stateScanning:
			iterations++
			if iterations > maxCarouselIterations {
				w.logger.Warn("carousel iteration cap hit", "entries", len(entries))
				state = stateDone
				break
			}

			added, err := w.scanVisible(seen, &entries)
			if err != nil {
				return entries, err
			}
			if added == 0 {
				// Wrapped around: a full pass with nothing new is the end.
				state = stateDone
				break
			}
			state = stateAdvancing

		case stateAdvancing:
			advanced, err := w.advance()
			if err != nil {
				return entries, err
			}
			if !advanced {
				state = stateDone
				break
			}
			state = stateScanning
		}
	}

	return entries, nil
}

// scanVisible reads the currently visible cards and appends entries with
// names not seen in this walk. Cards that stay visible across a partial
// scroll are naturally skipped by the dedup.
func (w *CarouselWalker) scanVisible(seen map[string]bool, entries *[]models.Scholarship) (int, error) {
	cards, err := w.session.Query(carouselCardSelector)
	if err != nil {
		return 0, fmt.Errorf("scan carousel cards: %w", err)
	}

	added := 0
	for _, card := range cards {
		visible, err := card.Visible()
		if err != nil || !visible {
			continue
		}
		text, err := card.Text()
		if err != nil {
			continue
		}
		entry := parseScholarshipCard(text)
		if entry.Name == "" || seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		*entries = append(*entries, entry)
		added++
	}
	return added, nil
}

// advance activates the forward control. A missing, disabled, or
// unclickable control is a terminal condition, reported as false.
func (w *CarouselWalker) advance() (bool, error) {
	controls, err := w.session.Query(carouselNextSelector)
	if err != nil {
		return false, fmt.Errorf("find carousel next control: %w", err)
	}
	if len(controls) == 0 {
		return false, nil
	}

	next := controls[0]
	if disabled, err := next.Attr("disabled"); err == nil && disabled != "" {
		return false, nil
	}
	if ariaDisabled, err := next.Attr("aria-disabled"); err == nil && ariaDisabled == "true" {
		return false, nil
	}

	if err := next.ScrollIntoView(); err != nil {
		return false, nil
	}
	if err := next.Click(); err != nil {
		w.logger.Debug("carousel next click failed", "error", err)
		return false, nil
	}

	time.Sleep(w.transition)
	return true, nil
}

// parseScholarshipCard splits a card's text into name (first line) and
// label/value attribute pairs (subsequent "Label: value" lines).
func parseScholarshipCard(text string) models.Scholarship {
	lines := strings.Split(text, "\n")
	entry := models.Scholarship{}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if entry.Name == "" {
			entry.Name = line
			continue
		}
		if key, value, found := strings.Cut(line, ":"); found {
			key = strings.TrimSpace(key)
			value = strings.TrimSpace(value)
			if key != "" && value != "" {
				if entry.Attributes == nil {
					entry.Attributes = make(map[string]string)
				}
				entry.Attributes[normalizeKey(key)] = value
			}
		}
	}
	return entry
}
