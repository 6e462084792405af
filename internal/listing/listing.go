package listing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeInternship JobType = "internship"
	JobTypeJunior     JobType = "junior"
	JobTypeStandard   JobType = "standard"
)

// ParseJobType maps free-form values (including the French "stage" and "alternance") to a JobType.
func ParseJobType(s string) JobType {
	switch Fold(s) {
	case "internship", "intern", "stage", "stagiaire", "alternance", "apprentissage", "apprenticeship":
		return JobTypeInternship
	case "junior", "entry", "entry level", "entry-level", "debutant", "graduate":
		return JobTypeJunior
	default:
		return JobTypeStandard
	}
}

// EntryLevel reports whether the search targets internships or junior positions.
func (t JobType) EntryLevel() bool {
	return t == JobTypeInternship || t == JobTypeJunior
}

var validate = validator.New()

// SearchCriteria is produced once per search and treated as read-only afterwards.
type SearchCriteria struct {
	Keywords    []string `json:"keywords" validate:"min=1,dive,required"`
	Exclude     []string `json:"exclude,omitempty"`
	Location    string   `json:"location"`
	JobType     JobType  `json:"job_type" validate:"oneof=internship junior standard"`
	ResultLimit int      `json:"result_limit" validate:"gt=0"`
}

// NewCriteria copies and cleans the inputs and validates the result.
func NewCriteria(keywords []string, location string, jobType JobType, limit int, exclude ...string) (SearchCriteria, error) {
	if jobType == "" {
		jobType = JobTypeStandard
	}

	c := SearchCriteria{
		Keywords:    uniqueTrimmed(keywords),
		Exclude:     uniqueTrimmed(exclude),
		Location:    strings.TrimSpace(location),
		JobType:     jobType,
		ResultLimit: limit,
	}

	if err := c.Validate(); err != nil {
		return SearchCriteria{}, err
	}

	return c, nil
}

func (c SearchCriteria) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid search criteria: %w", err)
	}
	return nil
}

// Query joins the keywords into a single search string.
func (c SearchCriteria) Query() string {
	return strings.Join(c.Keywords, " ")
}

// CandidateProfile is built once from the résumé and the query hints.
type CandidateProfile struct {
	Skills              SkillSet `json:"skills"`
	ExperienceYears     int      `json:"experience_years"`
	Education           string   `json:"education,omitempty"`
	Languages           SkillSet `json:"languages"`
	TargetRoles         []string `json:"target_roles"`
	AcceptableLocations []string `json:"acceptable_locations,omitempty"`
}

// JobListing is created by exactly one connector and discarded at the end of a search.
type JobListing struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	Company            string   `json:"company"`
	Location           string   `json:"location"`
	Description        string   `json:"description,omitempty"`
	URL                string   `json:"url"`
	Source             string   `json:"source"`
	RequiredSkills     SkillSet `json:"required_skills"`
	RequiredExperience int      `json:"required_experience"`
	MatchScore         int      `json:"match_score"`
	MatchedSkills      SkillSet `json:"matched_skills"`
	Enriched           bool     `json:"enriched"`

	JudgeReason  string `json:"judge_reason,omitempty"`
	Salary       string `json:"salary,omitempty"`
	PostedAt     string `json:"posted_at,omitempty"`
	ContractType string `json:"contract_type,omitempty"`
	ApplyEmail   string `json:"apply_email,omitempty"`
}

// Normalize trims text fields, makes skill sets non-nil and assigns an id when the source had none.
func (l *JobListing) Normalize(source string) {
	l.Title = strings.Join(strings.Fields(l.Title), " ")
	l.Company = strings.TrimSpace(l.Company)
	l.Location = strings.TrimSpace(l.Location)
	l.Description = strings.TrimSpace(l.Description)
	l.URL = strings.TrimSpace(l.URL)
	l.Source = source

	if l.RequiredSkills == nil {
		l.RequiredSkills = make(SkillSet)
	}
	if l.MatchedSkills == nil {
		l.MatchedSkills = make(SkillSet)
	}
	if l.RequiredExperience < 0 {
		l.RequiredExperience = 0
	}
	if strings.TrimSpace(l.ID) == "" {
		l.ID = fmt.Sprintf("%s-%s", source, uuid.NewString())
	}
}

// IdentityKey decides whether two listings describe the same job: the normalized url
// when it has a scheme and a host, otherwise lower(title)-lower(company).
func (l *JobListing) IdentityKey() string {
	if key, ok := NormalizeURL(l.URL); ok {
		return key
	}
	return strings.ToLower(strings.TrimSpace(l.Title)) + "-" + strings.ToLower(strings.TrimSpace(l.Company))
}

// NormalizeURL lower-cases scheme and host, drops the fragment and a trailing slash.
func NormalizeURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	return u.String(), true
}

// Host returns the lower-cased host of the listing url or an empty string.
func (l *JobListing) Host() string {
	u, err := url.Parse(strings.TrimSpace(l.URL))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func uniqueTrimmed(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.Join(strings.Fields(item), " ")
		if item == "" {
			continue
		}
		key := Fold(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, item)
	}
	return result
}
