package scraper

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/studyboard/program-scraper/internal/dom"
	"github.com/studyboard/program-scraper/internal/models"
)

// Extractor maps one rendered detail page to a Program record. Every
// field is resolved through an ordered chain of independent query
// strategies; the first strategy yielding a non-empty result wins and a
// field with no winner stays at its empty default. Extraction never
// fails a record over a missing field: a page missing everything comes
// back as an empty Program (which the orchestrator will discard for
// lacking a name).
//
// The chains are two-tiered: current-layout selectors first, then the
// legacy selectors the site used before its redesign. Legacy strategies
// only run when the whole current tier came up empty for that field.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// fieldStrategy is one side-effect-free attempt at locating a field in
// the DOM snapshot.
type fieldStrategy func(doc *goquery.Document) string

func firstNonEmpty(doc *goquery.Document, strategies ...fieldStrategy) string {
	for _, strategy := range strategies {
		if value := strategy(doc); value != "" {
			return value
		}
	}
	return ""
}

// ExtractProgram extracts all static fields from rendered detail-page
// HTML. Scholarships come from the live carousel walk, not from here.
func (e *Extractor) ExtractProgram(html, url string) *models.Program {
	program := models.NewProgram(url)

	doc, err := dom.ParseDocument(html)
	if err != nil {
		e.logger.Warn("unparsable detail page", "url", url, "error", err)
		return program
	}

	program.Name = firstNonEmpty(doc,
		byTestID("h1", "program-name"),
		byClass("h1", "css-1vg6q84"),
		byClass("h2", "css-7iklpx"), // legacy listing-style heading
	)
	program.SchoolName = firstNonEmpty(doc,
		byTestID("", "school-name"),
		byClass("h3", "css-1a91344"),
		schoolLinkText,
	)
	program.SchoolURL = firstNonEmpty(doc, schoolLinkHref)
	program.DegreeType = firstNonEmpty(doc,
		byTestID("", "degree-type"),
		byClass("div", "css-eqx0xi"),
	)
	program.Summary = firstNonEmpty(doc,
		byTestID("", "program-summary"),
		sectionParagraphs("about"),
		byClass("div", "css-lme41u"),
	)
	program.SuccessChance = firstNonEmpty(doc,
		successChance(dom.Spec{Attr: map[string]string{"data-testid": "success-chance"}}),
		successChance(dom.Spec{Tag: "div", Class: "css-koraoo"}),
	)

	program.Attributes = e.extractAttributes(doc)
	program.Intakes = extractIntakes(doc)
	program.Features = extractFeatures(doc)
	program.Institution = extractInstitution(doc)
	program.Requirements = extractRequirements(doc)

	return program
}

// --- single-value strategies ---

func byTestID(tag, testID string) fieldStrategy {
	return func(doc *goquery.Document) string {
		return dom.Text(dom.Find(doc.Selection, dom.Spec{
			Tag:  tag,
			Attr: map[string]string{"data-testid": testID},
		}), true)
	}
}

func byClass(tag, class string) fieldStrategy {
	return func(doc *goquery.Document) string {
		return dom.Text(dom.Find(doc.Selection, dom.Spec{Tag: tag, Class: class}), true)
	}
}

func schoolLink(doc *goquery.Document) *goquery.Selection {
	return dom.Find(doc.Selection, dom.Spec{
		Tag: "a",
		AttrMatch: map[string]func(string) bool{
			"href": func(href string) bool { return strings.Contains(href, "/schools/") },
		},
	})
}

func schoolLinkText(doc *goquery.Document) string {
	return dom.Text(schoolLink(doc), true)
}

func schoolLinkHref(doc *goquery.Document) string {
	return dom.Attr(schoolLink(doc), "href")
}

func sectionParagraphs(sectionID string) fieldStrategy {
	return func(doc *goquery.Document) string {
		section := dom.Find(doc.Selection, dom.Spec{Tag: "section", Attr: map[string]string{"id": sectionID}})
		if section == nil {
			return ""
		}
		var parts []string
		for _, p := range dom.FindAll(section, dom.Spec{Tag: "p"}) {
			if text := dom.Text(p, true); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	}
}

func successChance(spec dom.Spec) fieldStrategy {
	return func(doc *goquery.Document) string {
		for _, el := range dom.FindAll(doc.Selection, spec) {
			switch text := dom.Text(el, true); text {
			case "High", "Medium", "Low":
				return text
			}
		}
		return ""
	}
}

// --- attribute table ---

// extractAttributes reads the label/value definition list. Current
// layout first; the legacy dl classes only when it yields nothing.
func (e *Extractor) extractAttributes(doc *goquery.Document) map[string]string {
	attrs := readDefinitionList(doc, dom.Spec{Tag: "dl", Attr: map[string]string{"data-testid": "program-details"}})
	if len(attrs) == 0 {
		attrs = readDefinitionList(doc, dom.Spec{Tag: "dl", Class: "css-1d44v5m"})
	}
	return attrs
}

func readDefinitionList(doc *goquery.Document, listSpec dom.Spec) map[string]string {
	list := dom.Find(doc.Selection, listSpec)
	if list == nil {
		return map[string]string{}
	}

	attrs := make(map[string]string)
	for _, row := range dom.FindAll(list, dom.Spec{Tag: "div"}) {
		label := dom.Text(dom.Find(row, dom.Spec{Tag: "dt"}), true)
		if label == "" {
			continue
		}
		value := smallestDeclaredValue(dom.FindAll(row, dom.Spec{Tag: "dd"}))
		if value == "" {
			continue
		}
		attrs[normalizeKey(label)] = value
	}
	return attrs
}

// smallestDeclaredValue picks the shortest candidate that actually looks
// like a value. Labels nested inside value cells sneak into the
// candidates; they give themselves away by being far too long for a
// declared figure or by reading like a question.
func smallestDeclaredValue(candidates []*goquery.Selection) string {
	best := ""
	for _, c := range candidates {
		text := dom.Text(c, true)
		if text == "" || looksLikeNestedLabel(text) {
			continue
		}
		if best == "" || len(text) < len(best) {
			best = text
		}
	}
	return best
}

var questionWords = []string{"what", "how", "why", "when", "where", "which", "who", "do ", "does", "is ", "are ", "can "}

const maxDeclaredValueLen = 48

func looksLikeNestedLabel(text string) bool {
	if len(text) > maxDeclaredValueLen {
		return true
	}
	lower := strings.ToLower(text)
	for _, word := range questionWords {
		if strings.HasPrefix(lower, word) {
			return true
		}
	}
	return strings.HasSuffix(text, "?")
}

func normalizeKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// --- intakes ---

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

func extractIntakes(doc *goquery.Document) []string {
	elements := dom.FindAll(doc.Selection, dom.Spec{Attr: map[string]string{"data-testid": "intake-date"}})
	if len(elements) == 0 {
		elements = dom.FindAll(doc.Selection, dom.Spec{Tag: "div", Class: "css-koraoo"})
	}

	seen := make(map[string]bool)
	var intakes []string
	for _, el := range elements {
		text := dom.Text(el, true)
		if text == "" || !containsMonth(text) || seen[text] {
			continue
		}
		seen[text] = true
		intakes = append(intakes, text)
	}
	return intakes
}

func containsMonth(text string) bool {
	for _, month := range monthNames {
		if strings.Contains(text, month) {
			return true
		}
	}
	return false
}

// --- feature tags ---

func extractFeatures(doc *goquery.Document) []string {
	elements := dom.FindAll(doc.Selection, dom.Spec{Attr: map[string]string{"data-testid": "feature-tag"}})
	if len(elements) == 0 {
		elements = dom.FindAll(doc.Selection, dom.Spec{Tag: "span", Class: "css-1wftnvw"})
	}

	var features []string
	for _, el := range elements {
		if text := dom.Text(el, true); text != "" {
			features = append(features, text)
		}
	}
	return features
}

// --- institution info ---

func extractInstitution(doc *goquery.Document) map[string]string {
	info := readDefinitionList(doc, dom.Spec{Tag: "dl", Attr: map[string]string{"data-testid": "institution-info"}})
	if len(info) > 0 {
		return info
	}

	// Legacy layout: a section of strong-label + span-value rows.
	section := dom.Find(doc.Selection, dom.Spec{Tag: "section", Attr: map[string]string{"id": "institution"}})
	if section == nil {
		return map[string]string{}
	}
	info = make(map[string]string)
	for _, row := range dom.FindAll(section, dom.Spec{Tag: "div"}) {
		label := dom.Text(dom.Find(row, dom.Spec{Tag: "strong"}), true)
		value := dom.Text(dom.Find(row, dom.Spec{Tag: "span"}), true)
		if label != "" && value != "" && !looksLikeNestedLabel(value) {
			info[normalizeKey(label)] = value
		}
	}
	return info
}

// --- requirement matrix ---

// requirementColumns maps the fixed-width requirement table positionally:
// column index → field. Rows with a different cell count are skipped.
var requirementColumns = []string{"country", "min_gpa", "ielts", "toefl", "duolingo", "pte"}

func extractRequirements(doc *goquery.Document) []models.CountryRequirement {
	table := dom.Find(doc.Selection, dom.Spec{Tag: "table", Attr: map[string]string{"data-testid": "admission-requirements"}})
	if table == nil {
		table = dom.Find(doc.Selection, dom.Spec{Tag: "table", Class: "css-requirements"})
	}
	if table == nil {
		return nil
	}

	var requirements []models.CountryRequirement
	for _, row := range dom.FindAll(table, dom.Spec{Tag: "tr"}) {
		cells := dom.FindAll(row, dom.Spec{Tag: "td"})
		if len(cells) != len(requirementColumns) {
			continue // header or malformed row
		}

		req := models.CountryRequirement{}
		for col, cell := range cells {
			value := dom.Text(cell, true)
			switch requirementColumns[col] {
			case "country":
				req.Country = value
			case "min_gpa":
				req.MinGPA = value
			case "ielts":
				req.IELTS = value
			case "toefl":
				req.TOEFL = value
			case "duolingo":
				req.Duolingo = value
			case "pte":
				req.PTE = value
			}
		}
		if req.Country != "" {
			requirements = append(requirements, req)
		}
	}
	return requirements
}
