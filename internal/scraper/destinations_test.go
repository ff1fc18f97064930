package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHTML(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDiscover(t *testing.T) {
	homepage := `<html><body><nav>
		<a class="elementor-sub-item" href="/study-in-canada/">Study in Canada</a>
		<a class="elementor-sub-item" href="/study-in-australia/">Study in Australia</a>
		<a class="elementor-sub-item" href="/study-in-the-uk/">Study in the UK</a>
		<a class="elementor-sub-item" href="/blog/">Blog</a>
		<a class="elementor-sub-item" href="/about-us/">About Us</a>
		<a href="/study-in-germany/">Study in Germany</a>
	</nav></body></html>`

	server := serveHTML(t, map[string]string{"/": homepage})
	d := NewDestinationDiscoverer(server.URL, slog.Default())

	destinations, err := d.Discover(context.Background())
	require.NoError(t, err)

	// Only menu entries whose href names a supported country survive;
	// the plain link without the menu class is invisible.
	require.Len(t, destinations, 3)
	assert.Equal(t, "/study-in-canada/", destinations["Study in Canada"].ListingURL)
	assert.Equal(t, "/study-in-australia/", destinations["Study in Australia"].ListingURL)
	assert.Equal(t, "/study-in-the-uk/", destinations["Study in the UK"].ListingURL)
	assert.NotContains(t, destinations, "Blog")
	assert.NotContains(t, destinations, "Study in Germany")
}

func TestDiscover_DuplicateNameLastWins(t *testing.T) {
	homepage := `<html><body>
		<a class="elementor-sub-item" href="/study-in-canada-old/">Study in Canada</a>
		<a class="elementor-sub-item" href="/study-in-canada/">Study in Canada</a>
	</body></html>`

	server := serveHTML(t, map[string]string{"/": homepage})
	d := NewDestinationDiscoverer(server.URL, slog.Default())

	destinations, err := d.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, destinations, 1)
	assert.Equal(t, "/study-in-canada/", destinations["Study in Canada"].ListingURL)
}

func TestDiscover_NoMenu(t *testing.T) {
	server := serveHTML(t, map[string]string{"/": "<html><body><p>maintenance</p></body></html>"})
	d := NewDestinationDiscoverer(server.URL, slog.Default())

	_, err := d.Discover(context.Background())
	assert.ErrorIs(t, err, ErrNoDestinations)
}

func TestExploreProgramsLink_Button(t *testing.T) {
	country := `<html><body>
		<a class="elementor-button" href="/contact/"><span>Contact an advisor</span></a>
		<a class="elementor-button" href="/search?filter[country]=ca"><span>Explore more programs</span></a>
	</body></html>`

	server := serveHTML(t, map[string]string{"/study-in-canada/": country})
	d := NewDestinationDiscoverer(server.URL, slog.Default())

	href, err := d.ExploreProgramsLink(context.Background(), server.URL+"/study-in-canada/")
	require.NoError(t, err)
	assert.Equal(t, "/search?filter[country]=ca", href)
}

func TestExploreProgramsLink_Fallback(t *testing.T) {
	country := `<html><body>
		<a href="/search?q=test">plain search</a>
		<a href="/search?filter[country]=au&page[size]=12">browse programs</a>
	</body></html>`

	server := serveHTML(t, map[string]string{"/study-in-australia/": country})
	d := NewDestinationDiscoverer(server.URL, slog.Default())

	href, err := d.ExploreProgramsLink(context.Background(), server.URL+"/study-in-australia/")
	require.NoError(t, err)
	assert.Equal(t, "/search?filter[country]=au&page[size]=12", href)
}

func TestExploreProgramsLink_Missing(t *testing.T) {
	server := serveHTML(t, map[string]string{"/study-in-the-uk/": "<html><body></body></html>"})
	d := NewDestinationDiscoverer(server.URL, slog.Default())

	_, err := d.ExploreProgramsLink(context.Background(), server.URL+"/study-in-the-uk/")
	assert.ErrorContains(t, err, "no programs link found")
}

func TestIsDestinationLink(t *testing.T) {
	assert.True(t, isDestinationLink("/study-in-Canada/"))
	assert.True(t, isDestinationLink("https://example.com/study-in-usa"))
	assert.False(t, isDestinationLink("/blog/"))
	assert.False(t, isDestinationLink(""))
}
