package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyboard/program-scraper/internal/dom"
)

func TestNormalizeListingURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no query string",
			in:   "https://example.com/search",
			want: "https://example.com/search?page[size]=48",
		},
		{
			name: "existing query string",
			in:   "https://example.com/search?filter=ca",
			want: "https://example.com/search?filter=ca&page[size]=48",
		},
		{
			name: "replaces existing page size",
			in:   "https://example.com/search?page[size]=12&filter=ca",
			want: "https://example.com/search?page[size]=48&filter=ca",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeListingURL(tt.in))
		})
	}
}

func TestNextPageURL(t *testing.T) {
	base := "https://example.com/search?page[size]=48"

	page2 := NextPageURL(base, 2)
	assert.Equal(t, base+"&page[number]=2", page2)

	// Replacing keeps a single page[number] parameter.
	page3 := NextPageURL(page2, 3)
	assert.Equal(t, base+"&page[number]=3", page3)
}

func TestParseTotalItems(t *testing.T) {
	tests := []struct {
		name string
		html string
		want int
	}{
		{
			name: "standard caption",
			html: `<span data-testid="temp">1 - 48 of 830 items</span>`,
			want: 830,
		},
		{
			name: "caption missing",
			html: `<span>1 - 48 of 830 items</span>`,
			want: 0,
		},
		{
			name: "reworded caption",
			html: `<span data-testid="temp">830 results</span>`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dom.ParseDocument(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ParseTotalItems(doc))
		})
	}
}

// listingPageHTML renders a listing page with n cards and the given
// total caption.
func listingPageHTML(startIdx, n, total int) string {
	var sb strings.Builder
	if total > 0 {
		fmt.Fprintf(&sb, `<span data-testid="temp">1 - 48 of %d items</span>`, total)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb,
			`<article class="css-1v3njm"><a href="/programs/p%d"><h2 class="css-7iklpx">Program %d</h2></a></article>`,
			startIdx+i, startIdx+i)
	}
	return sb.String()
}

func TestCollectProgramRefs(t *testing.T) {
	logger := slog.Default()
	listing := "https://example.com/search?filter=ca"
	page1 := NormalizeListingURL(listing)
	page2 := NextPageURL(page1, 2)
	page3 := NextPageURL(page1, 3)

	t.Run("limit below declared total", func(t *testing.T) {
		session := newFakeSession()
		session.pages[page1] = listingPageHTML(0, 48, 830)
		session.pages[page2] = listingPageHTML(48, 48, 830)

		walker := NewPaginationWalker(session, logger)
		refs, err := walker.CollectProgramRefs(context.Background(), listing, 60)
		require.NoError(t, err)
		assert.Len(t, refs, 60)
		assert.Equal(t, "/programs/p0", refs[0].DetailURL)
		assert.Equal(t, "/programs/p59", refs[59].DetailURL)
	})

	t.Run("declared total below limit", func(t *testing.T) {
		session := newFakeSession()
		session.pages[page1] = listingPageHTML(0, 5, 5)

		walker := NewPaginationWalker(session, logger)
		refs, err := walker.CollectProgramRefs(context.Background(), listing, 100)
		require.NoError(t, err)
		assert.Len(t, refs, 5)
	})

	t.Run("unparsable total stops on empty page", func(t *testing.T) {
		session := newFakeSession()
		session.pages[page1] = listingPageHTML(0, 48, 0)
		session.pages[page2] = listingPageHTML(48, 10, 0)
		session.pages[page3] = ""

		walker := NewPaginationWalker(session, logger)
		refs, err := walker.CollectProgramRefs(context.Background(), listing, 500)
		require.NoError(t, err)
		assert.Len(t, refs, 58)
	})

	t.Run("session fatal mid walk returns partial refs and error", func(t *testing.T) {
		session := newFakeSession()
		session.pages[page1] = listingPageHTML(0, 48, 830)
		session.navErr[page2] = fmt.Errorf("navigate: %w", errSessionLost)

		walker := NewPaginationWalker(session, logger)
		refs, err := walker.CollectProgramRefs(context.Background(), listing, 100)
		require.Error(t, err)
		assert.True(t, IsSessionFatal(err))
		assert.Len(t, refs, 48)
	})

	t.Run("zero limit collects nothing", func(t *testing.T) {
		session := newFakeSession()
		walker := NewPaginationWalker(session, logger)
		refs, err := walker.CollectProgramRefs(context.Background(), listing, 0)
		require.NoError(t, err)
		assert.Empty(t, refs)
		assert.Empty(t, session.navigated)
	})

	t.Run("cards without detail links are skipped", func(t *testing.T) {
		session := newFakeSession()
		session.pages[page1] = `
			<article class="css-1v3njm"><a href="/programs/p1"><h2>One</h2></a></article>
			<article class="css-1v3njm"><a href="/schools/s1"><h2>No detail link</h2></a></article>`

		walker := NewPaginationWalker(session, logger)
		refs, err := walker.CollectProgramRefs(context.Background(), listing, 10)
		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, "/programs/p1", refs[0].DetailURL)
	})
}

func TestCollectListingPrograms(t *testing.T) {
	logger := slog.Default()
	listing := "https://example.com/search?filter=ca"
	page1 := NormalizeListingURL(listing)

	session := newFakeSession()
	session.pages[page1] = `
		<span data-testid="temp">1 - 48 of 2 items</span>
		<article class="css-1v3njm">
			<a href="/programs/p1"><h2 class="css-7iklpx">MSc Computing</h2></a>
			<h3 class="css-1a91344">Tech University</h3>
			<div class="css-eqx0xi">Master's Degree</div>
		</article>
		<article class="css-1v3njm">
			<a href="/programs/p2"><h2 class="css-7iklpx">BSc Biology</h2></a>
			<h3 class="css-1a91344">Science College</h3>
		</article>`

	walker := NewPaginationWalker(session, logger)
	programs, err := walker.CollectListingPrograms(context.Background(), listing, 10)
	require.NoError(t, err)
	require.Len(t, programs, 2)

	assert.Equal(t, "MSc Computing", programs[0].Name)
	assert.Equal(t, "Tech University", programs[0].SchoolName)
	assert.Equal(t, "Master's Degree", programs[0].DegreeType)
	assert.Equal(t, "/programs/p1", programs[0].URL)
	assert.Equal(t, "BSc Biology", programs[1].Name)
}
