package storage

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyboard/program-scraper/internal/models"
)

func samplePrograms() []models.Program {
	return []models.Program{
		{
			Name:       "Master of Data Science",
			URL:        "https://example.com/programs/mds",
			SchoolName: "Metro University",
			Attributes: map[string]string{"tuition": "$24,000"},
			Intakes:    []string{"Sep 2026"},
		},
		{
			Name: "Bachelor of Commerce",
			URL:  "https://example.com/programs/bcom",
		},
	}
}

func TestWriteResults(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path, err := w.WriteResults("Study in Canada", "https://example.com/search?filter[country]=ca", samplePrograms())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^study_in_canada_programs_\d{8}_\d{6}\.json$`), filepath.Base(path))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/search?filter[country]=ca", doc.SourceURL)
	assert.Equal(t, 2, doc.TotalItems)
	require.Len(t, doc.Data, 2)
	assert.Equal(t, "Master of Data Science", doc.Data[0].Name)
	assert.Equal(t, "$24,000", doc.Data[0].Attributes["tuition"])
	assert.False(t, doc.ScrapedAt.IsZero())

	// No temp file may survive a successful write.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteResults_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out", "nested")
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path, err := w.WriteResults("UK", "https://example.com", nil)
	require.NoError(t, err)

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, 0, doc.TotalItems)
	assert.Empty(t, doc.Data)
}

func TestWriteTo(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "chosen-name.json")
	require.NoError(t, w.WriteTo(path, "https://example.com/search", samplePrograms()[:1]))

	doc, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.TotalItems)
	assert.Equal(t, "Master of Data Science", doc.Data[0].Name)
}

func TestReadDocument_MissingFile(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Study in Canada", "study_in_canada"},
		{"Study in the UK", "study_in_the_uk"},
		{"  USA!  ", "usa"},
		{"---", "destination"},
		{"", "destination"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slugify(tt.in), tt.in)
	}
}
