package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/studyboard/program-scraper/internal/models"
)

// Document is the top-level shape of a crawl result file.
type Document struct {
	ScrapedAt  time.Time        `json:"scraped_at"`
	SourceURL  string           `json:"source_url"`
	TotalItems int              `json:"total_items"`
	Data       []models.Program `json:"data"`
}

// Writer persists crawl results as JSON documents under a base directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteResults writes programs scraped for a destination to a timestamped
// file and returns its path.
func (w *Writer) WriteResults(destination, sourceURL string, programs []models.Program) (string, error) {
	doc := Document{
		ScrapedAt:  time.Now().UTC(),
		SourceURL:  sourceURL,
		TotalItems: len(programs),
		Data:       programs,
	}

	name := fmt.Sprintf("%s_programs_%s.json", slugify(destination), doc.ScrapedAt.Format("20060102_150405"))
	path := filepath.Join(w.dir, name)
	if err := w.writeFile(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

// WriteTo writes a document to an explicit path, for caller-chosen filenames.
func (w *Writer) WriteTo(path, sourceURL string, programs []models.Program) error {
	doc := Document{
		ScrapedAt:  time.Now().UTC(),
		SourceURL:  sourceURL,
		TotalItems: len(programs),
		Data:       programs,
	}
	return w.writeFile(path, doc)
}

func (w *Writer) writeFile(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	// Write to temp file first for atomicity
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("finalize results: %w", err)
	}
	return nil
}

// ReadDocument loads a previously written result file.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return &doc, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "destination"
	}
	return slug
}
