package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/studyboard/program-scraper/internal/dom"
	"github.com/studyboard/program-scraper/internal/models"
)

// Shallow extraction reads program records straight off the listing
// cards, skipping detail pages entirely. The cards carry a useful subset
// of the record (names, degree, intakes, features) and no scholarships.

// CollectListingPrograms walks the listing like CollectProgramRefs but
// returns card-level records instead of references.
func (w *PaginationWalker) CollectListingPrograms(ctx context.Context, listingURL string, limit int) ([]models.Program, error) {
	if limit <= 0 {
		return nil, nil
	}

	pageURL := NormalizeListingURL(listingURL)
	var programs []models.Program
	pageNum := 1

	for {
		if err := w.session.Navigate(ctx, pageURL); err != nil {
			if pageNum == 1 {
				return nil, fmt.Errorf("render listing page: %w", err)
			}
			break
		}
		w.session.WaitFor("article", listingCardWait)

		html, err := w.session.Content()
		if err != nil {
			return programs, fmt.Errorf("read listing page: %w", err)
		}
		doc, err := dom.ParseDocument(html)
		if err != nil {
			return programs, fmt.Errorf("parse listing page: %w", err)
		}

		total := ParseTotalItems(doc)
		cards := listingCards(doc)
		w.logger.Info("found programs on page", "page", pageNum, "count", len(cards))
		if len(cards) == 0 {
			break
		}

		for _, card := range cards {
			program := ExtractListingProgram(card)
			if !program.HasIdentity() {
				continue
			}
			programs = append(programs, program)
			if len(programs) >= limit || (total > 0 && len(programs) >= total) {
				return programs, nil
			}
		}

		pageNum++
		pageURL = NextPageURL(pageURL, pageNum)
	}

	return programs, nil
}

func listingCards(doc *goquery.Document) []*goquery.Selection {
	cards := dom.FindAll(doc.Selection, dom.Spec{Tag: "article", Class: "css-1v3njm"})
	if len(cards) == 0 {
		cards = dom.FindAll(doc.Selection, dom.Spec{Tag: "article"})
	}
	return cards
}

// ExtractListingProgram pulls the card-level subset of a program record:
// heading, school, degree type, dt/dd detail pairs, success chance,
// intakes and feature tags.
func ExtractListingProgram(card *goquery.Selection) models.Program {
	program := models.Program{
		Attributes:   make(map[string]string),
		Scholarships: make([]models.Scholarship, 0),
	}

	program.Name = dom.Text(dom.Find(card, dom.Spec{Tag: "h2"}), true)
	program.URL = programLink(card)
	program.SchoolName = dom.Text(dom.Find(card, dom.Spec{Tag: "h3"}), true)

	if link := dom.Find(card, dom.Spec{
		Tag: "a",
		AttrMatch: map[string]func(string) bool{
			"href": func(href string) bool { return strings.Contains(href, "/schools/") },
		},
	}); link != nil {
		program.SchoolURL = dom.Attr(link, "href")
	}

	program.DegreeType = dom.Text(dom.Find(card, dom.Spec{Tag: "div", Class: "css-eqx0xi"}), true)

	if list := dom.Find(card, dom.Spec{Tag: "dl"}); list != nil {
		for _, row := range dom.FindAll(list, dom.Spec{Tag: "div"}) {
			label := dom.Text(dom.Find(row, dom.Spec{Tag: "dt"}), true)
			value := smallestDeclaredValue(dom.FindAll(row, dom.Spec{Tag: "dd"}))
			if label != "" && value != "" {
				program.Attributes[normalizeKey(label)] = value
			}
		}
	}

	seen := make(map[string]bool)
	for _, el := range dom.FindAll(card, dom.Spec{Tag: "div", Class: "css-koraoo"}) {
		text := dom.Text(el, true)
		switch text {
		case "High", "Medium", "Low":
			program.SuccessChance = text
		default:
			if containsMonth(text) && !seen[text] {
				seen[text] = true
				program.Intakes = append(program.Intakes, text)
			}
		}
	}

	for _, el := range dom.FindAll(card, dom.Spec{Tag: "span", Class: "css-1wftnvw"}) {
		if text := dom.Text(el, true); text != "" {
			program.Features = append(program.Features, text)
		}
	}

	return program
}
