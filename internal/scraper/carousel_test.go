package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyboard/program-scraper/internal/browser"
)

// carouselPage models a looping carousel: frames of cards, a next
// control that advances the frame index, wrapping at the end.
type carouselPage struct {
	frames   [][]*fakeElement
	frame    int
	disabled bool
	wrap     bool
}

func (p *carouselPage) query(selector string) ([]browser.Element, error) {
	switch selector {
	case carouselContainerSelector:
		return []browser.Element{&fakeElement{visible: true}}, nil
	case carouselCardSelector:
		cards := make([]browser.Element, 0, len(p.frames[p.frame]))
		for _, c := range p.frames[p.frame] {
			cards = append(cards, c)
		}
		return cards, nil
	case carouselNextSelector:
		attrs := map[string]string{}
		if p.disabled {
			attrs["disabled"] = "true"
		}
		next := &fakeElement{attrs: attrs}
		next.onClick = func() {
			p.frame++
			if p.frame >= len(p.frames) {
				if p.wrap {
					p.frame = 0
				} else {
					p.frame = len(p.frames) - 1
				}
			}
		}
		return []browser.Element{next}, nil
	}
	return nil, nil
}

func card(name string, lines ...string) *fakeElement {
	text := name
	for _, line := range lines {
		text += "\n" + line
	}
	return &fakeElement{text: text, visible: true}
}

func TestCarouselWalker_NoCarousel(t *testing.T) {
	session := newFakeSession()
	session.queryFn = func(selector string) ([]browser.Element, error) {
		return nil, nil
	}

	entries, err := NewCarouselWalker(session, slog.Default()).Walk()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Only the container probe happened.
	assert.Equal(t, []string{carouselContainerSelector}, session.queries)
}

func TestCarouselWalker_WrapAroundTerminates(t *testing.T) {
	page := &carouselPage{
		wrap: true,
		frames: [][]*fakeElement{
			{card("Entrance Award", "Amount: $5,000"), card("Dean's Scholarship", "Amount: $2,500")},
			{card("International Merit", "Amount: $10,000", "Deadline: Mar 2027")},
		},
	}
	session := newFakeSession()
	session.queryFn = page.query

	entries, err := NewCarouselWalker(session, slog.Default()).WithTransitionWait(0).Walk()
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Entrance Award", entries[0].Name)
	assert.Equal(t, map[string]string{"amount": "$5,000"}, entries[0].Attributes)
	assert.Equal(t, "Dean's Scholarship", entries[1].Name)
	assert.Equal(t, "International Merit", entries[2].Name)
	assert.Equal(t, map[string]string{"amount": "$10,000", "deadline": "Mar 2027"}, entries[2].Attributes)
}

func TestCarouselWalker_DisabledNextStops(t *testing.T) {
	page := &carouselPage{
		disabled: true,
		frames: [][]*fakeElement{
			{card("Entrance Award"), card("Dean's Scholarship")},
			{card("Never Reached")},
		},
	}
	session := newFakeSession()
	session.queryFn = page.query

	entries, err := NewCarouselWalker(session, slog.Default()).WithTransitionWait(0).Walk()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Entrance Award", entries[0].Name)
}

func TestCarouselWalker_InvisibleCardsSkipped(t *testing.T) {
	hidden := card("Hidden Award")
	hidden.visible = false
	page := &carouselPage{
		frames: [][]*fakeElement{{card("Visible Award"), hidden}},
	}
	session := newFakeSession()
	session.queryFn = page.query

	entries, err := NewCarouselWalker(session, slog.Default()).WithTransitionWait(0).Walk()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Visible Award", entries[0].Name)
}

func TestCarouselWalker_IterationCap(t *testing.T) {
	// Every frame produces a never-before-seen name, so only the cap
	// stops the walk.
	n := 0
	session := newFakeSession()
	session.queryFn = func(selector string) ([]browser.Element, error) {
		switch selector {
		case carouselContainerSelector:
			return []browser.Element{&fakeElement{visible: true}}, nil
		case carouselCardSelector:
			n++
			return []browser.Element{card(fmt.Sprintf("Award %d", n))}, nil
		case carouselNextSelector:
			return []browser.Element{&fakeElement{}}, nil
		}
		return nil, nil
	}

	entries, err := NewCarouselWalker(session, slog.Default()).WithTransitionWait(0).Walk()
	require.NoError(t, err)
	assert.Len(t, entries, maxCarouselIterations)
}

func TestCarouselWalker_QueryErrorPropagates(t *testing.T) {
	session := newFakeSession()
	probe := true
	session.queryFn = func(selector string) ([]browser.Element, error) {
		if probe && selector == carouselContainerSelector {
			probe = false
			return []browser.Element{&fakeElement{visible: true}}, nil
		}
		return nil, errors.New("session closed")
	}

	_, err := NewCarouselWalker(session, slog.Default()).WithTransitionWait(0).Walk()
	require.Error(t, err)
	assert.True(t, IsSessionFatal(err))
}

func TestParseScholarshipCard(t *testing.T) {
	entry := parseScholarshipCard("Entrance Award\nAmount: $5,000\nDeadline: Mar 2027\nnot a pair\n")
	assert.Equal(t, "Entrance Award", entry.Name)
	assert.Equal(t, map[string]string{"amount": "$5,000", "deadline": "Mar 2027"}, entry.Attributes)

	empty := parseScholarshipCard("  \n ")
	assert.Empty(t, empty.Name)
}
