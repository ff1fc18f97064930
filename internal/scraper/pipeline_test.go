package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Listing traversal feeding the batch orchestrator, end to end over
// scripted sessions.
func TestListingToDetailPipeline(t *testing.T) {
	listing := "https://example.com/search?filter=ca"
	page1 := NormalizeListingURL(listing)

	listingSession := newFakeSession()
	listingSession.pages[page1] = listingPageHTML(0, 48, 830)

	walker := NewPaginationWalker(listingSession, slog.Default())
	refs, err := walker.CollectProgramRefs(context.Background(), listing, 10)
	require.NoError(t, err)

	// Ten references fit on the first page, so only one page renders.
	require.Len(t, refs, 10)
	assert.Equal(t, []string{page1}, listingSession.navigated)
	for i, ref := range refs {
		assert.Equal(t, fmt.Sprintf("/programs/p%d", i), ref.DetailURL)
	}

	f := newBatchFixture()
	urls := make([]string, len(refs))
	for i, ref := range refs {
		urls[i] = ref.DetailURL
		f.pages[ref.DetailURL] = detailPage(fmt.Sprintf("Program %d", i))
	}

	b := NewBatchOrchestrator(f.factory, slog.Default()).WithWaits(0, 0)
	programs, err := b.RunBatch(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, programs, 10)

	for i, p := range programs {
		assert.Equal(t, fmt.Sprintf("Program %d", i), p.Name)
		assert.Equal(t, urls[i], p.URL)
		assert.NotNil(t, p.Scholarships)
		assert.Empty(t, p.Scholarships)
	}
	assert.Equal(t, 0, b.Recoveries())
}
