package models

import (
	"time"
)

// Destination is a top-level catalog category (a country) linking to
// its own program listing page.
type Destination struct {
	Name       string `json:"name"`
	ListingURL string `json:"listing_url"`
}

// ProgramRef points at a program detail page discovered on a listing card.
type ProgramRef struct {
	DetailURL string `json:"detail_url"`
}

// Program is the structured record extracted from one detail page.
// Fields that could not be located stay at their zero value; a Program
// without a Name is discarded by the batch orchestrator.
type Program struct {
	Name          string               `json:"program_name"`
	URL           string               `json:"program_url"`
	SchoolName    string               `json:"school_name"`
	SchoolURL     string               `json:"school_url,omitempty"`
	DegreeType    string               `json:"degree_type,omitempty"`
	Summary       string               `json:"summary,omitempty"`
	Attributes    map[string]string    `json:"attributes,omitempty"`
	Intakes       []string             `json:"available_intakes,omitempty"`
	Requirements  []CountryRequirement `json:"requirements,omitempty"`
	Institution   map[string]string    `json:"institution,omitempty"`
	Features      []string             `json:"features,omitempty"`
	Scholarships  []Scholarship        `json:"scholarships"`
	SuccessChance string               `json:"success_chance,omitempty"`
	ScrapedAt     time.Time            `json:"scraped_at"`
}

// CountryRequirement is one row of the requirement-by-country matrix on
// a detail page. Columns are positional and map to these fields in order.
type CountryRequirement struct {
	Country  string `json:"country"`
	MinGPA   string `json:"min_gpa,omitempty"`
	IELTS    string `json:"ielts,omitempty"`
	TOEFL    string `json:"toefl,omitempty"`
	Duolingo string `json:"duolingo,omitempty"`
	PTE      string `json:"pte,omitempty"`
}

// Scholarship is one entry of the scholarships carousel embedded in a
// detail page. Name is the dedup key within one carousel walk.
type Scholarship struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func NewProgram(url string) *Program {
	return &Program{
		URL:          url,
		Attributes:   make(map[string]string),
		Institution:  make(map[string]string),
		Scholarships: make([]Scholarship, 0),
		ScrapedAt:    time.Now(),
	}
}

// HasIdentity reports whether the record carries the primary identifier
// required for it to enter the output sequence.
func (p *Program) HasIdentity() bool {
	return p != nil && p.Name != ""
}
