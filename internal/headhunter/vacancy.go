package headhunter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/job-harvester/internal/listing"
)

var highlight = regexp.MustCompile(`</?highlighttext>`)

// Years of experience for the hh.ru experience dictionary.
var experienceYears = map[string]int{
	"noExperience": 0,
	"between1And3": 1,
	"between3And6": 3,
	"moreThan6":    6,
}

type Vacancies struct {
	Items []*Vacancy
}

type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type Employer struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name,omitempty"`
	URL          string `json:"url,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Trusted      bool   `json:"trusted,omitempty"`
}

type Salary struct {
	From     int    `json:"from,omitempty"`
	To       int    `json:"to,omitempty"`
	Currency string `json:"currency,omitempty"`
	Gross    bool   `json:"gross,omitempty"`
}

type Snippet struct {
	Requirement    string `json:"requirement,omitempty"`
	Responsibility string `json:"responsibility,omitempty"`
}

type Vacancy struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	Area         Named    `json:"area,omitempty"`
	Salary       *Salary  `json:"salary,omitempty"`
	Experience   Named    `json:"experience,omitempty"`
	Schedule     Named    `json:"schedule,omitempty"`
	Employment   Named    `json:"employment,omitempty"`
	Employer     Employer `json:"employer,omitempty"`
	AlternateURL string   `json:"alternate_url,omitempty"`
	Description  string   `json:"description,omitempty"`
	KeySkills    []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Archived    bool    `json:"archived,omitempty"`
	Snippet     Snippet `json:"snippet,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
}

func (v *Vacancies) Len() int {
	return len(v.Items)
}

// ToListings converts the non archived vacancies.
func (v *Vacancies) ToListings() []*listing.JobListing {
	result := make([]*listing.JobListing, 0, len(v.Items))
	for _, vacancy := range v.Items {
		if vacancy == nil || vacancy.Archived {
			continue
		}
		result = append(result, vacancy.ToListing())
	}
	return result
}

func (va *Vacancy) ToListing() *listing.JobListing {
	skills := listing.NewSkillSet()
	for _, skill := range va.KeySkills {
		skills.Add(skill.Name)
	}

	description := va.Description
	if description == "" {
		description = strings.TrimSpace(va.Snippet.Requirement + " " + va.Snippet.Responsibility)
	}
	description = highlight.ReplaceAllString(description, "")
	if skills.Len() == 0 {
		skills = listing.ExtractSkills(description)
	}

	var id string
	if va.ID != "" {
		id = Name + "-" + va.ID
	}

	return &listing.JobListing{
		ID:                 id,
		Title:              va.Name,
		Company:            va.Employer.Name,
		Location:           va.Area.Name,
		Description:        description,
		URL:                va.AlternateURL,
		RequiredSkills:     skills,
		RequiredExperience: experienceYears[va.Experience.ID],
		Salary:             va.salary(),
		PostedAt:           va.PublishedAt,
		ContractType:       va.Employment.Name,
	}
}

func (va *Vacancy) salary() string {
	s := va.Salary
	if s == nil {
		return ""
	}
	switch {
	case s.From > 0 && s.To > 0:
		return fmt.Sprintf("%d-%d %s", s.From, s.To, s.Currency)
	case s.From > 0:
		return fmt.Sprintf("from %d %s", s.From, s.Currency)
	case s.To > 0:
		return fmt.Sprintf("up to %d %s", s.To, s.Currency)
	default:
		return ""
	}
}
