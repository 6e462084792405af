// Package scoring computes the heuristic 0-100 match score of a listing against a
// candidate profile. Scoring is pure: no I/O and no randomness.
package scoring

import (
	"math"
	"strings"

	"github.com/spigell/job-harvester/internal/listing"
)

const (
	maxDescriptionSkills = 10
	partialTitleRatio    = 0.7
	nearExperienceRatio  = 0.7
	seniorRequirement    = 5
	juniorExperience     = 2
)

var (
	genericTitleWords = []string{"developer", "developpeur", "dev", "engineer", "ingenieur", "programmer", "programmeur", "software", "logiciel"}
	remoteMarkers     = []string{"remote", "télétravail", "teletravail", "hybrid", "hybride", "work from home", "à distance"}
)

// Weights are the points each factor is worth. They add up to 100.
type Weights struct {
	Title      float64
	Skills     float64
	Experience float64
	Location   float64
	Language   float64
}

var DefaultWeights = Weights{Title: 30, Skills: 35, Experience: 20, Location: 10, Language: 5}

// Factors holds the points earned per factor before clamping.
type Factors struct {
	Title      float64
	Skills     float64
	Experience float64
	Location   float64
	Language   float64
}

func (f Factors) Sum() float64 {
	return f.Title + f.Skills + f.Experience + f.Location + f.Language
}

type Result struct {
	Score         int
	MatchedSkills listing.SkillSet
	Factors       Factors
}

type Scorer struct {
	weights Weights
}

func New() *Scorer {
	return &Scorer{weights: DefaultWeights}
}

func NewWithWeights(w Weights) *Scorer {
	return &Scorer{weights: w}
}

func (s *Scorer) Score(profile listing.CandidateProfile, l *listing.JobListing) Result {
	if l == nil {
		return Result{MatchedSkills: listing.NewSkillSet()}
	}

	skillRatio, matched := skillMatch(profile, l)
	f := Factors{
		Title:      s.weights.Title * titleMatch(profile.TargetRoles, l.Title),
		Skills:     s.weights.Skills * skillRatio,
		Experience: s.experience(profile.ExperienceYears, l.RequiredExperience),
		Location:   s.weights.Location * locationMatch(profile.AcceptableLocations, l.Location),
		Language:   s.weights.Language,
	}

	return Result{
		Score:         clamp(f.Sum()),
		MatchedSkills: matched,
		Factors:       f,
	}
}

// ScoreAll writes MatchScore and MatchedSkills of every listing in place.
func (s *Scorer) ScoreAll(profile listing.CandidateProfile, listings []*listing.JobListing) {
	for _, l := range listings {
		if l == nil {
			continue
		}
		r := s.Score(profile, l)
		l.MatchScore = r.Score
		l.MatchedSkills = r.MatchedSkills
	}
}

// titleMatch returns the best ratio over all target roles.
func titleMatch(roles []string, title string) float64 {
	foldedTitle := listing.Fold(title)
	if len(roles) == 0 {
		for _, word := range genericTitleWords {
			if listing.ContainsWord(foldedTitle, word) {
				return 0.5
			}
		}
		return 0
	}

	titleTokens := make(map[string]struct{})
	for _, token := range listing.Tokens(foldedTitle) {
		titleTokens[token] = struct{}{}
	}

	best := 0.0
	for _, role := range roles {
		foldedRole := listing.Fold(role)
		if foldedRole == "" {
			continue
		}
		if strings.Contains(foldedTitle, foldedRole) {
			return 1
		}

		roleTokens := listing.Tokens(foldedRole)
		if len(roleTokens) == 0 {
			continue
		}
		common := 0
		for _, token := range roleTokens {
			if _, ok := titleTokens[token]; ok {
				common++
			}
		}

		switch ratio := float64(common) / float64(len(roleTokens)); {
		case ratio >= partialTitleRatio:
			best = math.Max(best, 0.8)
		case common > 0:
			best = math.Max(best, 0.4)
		}
	}
	return best
}

// skillMatch compares against the required skills, or against the description
// when the listing has none.
func skillMatch(profile listing.CandidateProfile, l *listing.JobListing) (float64, listing.SkillSet) {
	if l.RequiredSkills.Len() > 0 {
		matched := profile.Skills.Intersect(l.RequiredSkills)
		return float64(matched.Len()) / float64(l.RequiredSkills.Len()), matched
	}

	matched := listing.NewSkillSet()
	if l.Description == "" || profile.Skills.Len() == 0 {
		return 0, matched
	}

	for _, skill := range profile.Skills.Sorted() {
		if listing.ContainsWord(l.Description, skill) {
			matched.Add(skill)
		}
	}
	ratio := float64(matched.Len()) / float64(min(profile.Skills.Len(), maxDescriptionSkills))
	return math.Min(ratio, 1), matched
}

func (s *Scorer) experience(years, required int) float64 {
	full := s.weights.Experience
	switch {
	case years >= required:
		return full
	case float64(years) >= nearExperienceRatio*float64(required):
		return full / 2
	case required > seniorRequirement && years < juniorExperience:
		return -full / 2
	default:
		return full / 5
	}
}

func locationMatch(acceptable []string, location string) float64 {
	folded := listing.Fold(location)
	if folded == "" {
		return 0
	}
	for _, marker := range remoteMarkers {
		if listing.ContainsWord(folded, marker) {
			return 1
		}
	}
	for _, place := range acceptable {
		if place = listing.Fold(place); place != "" && strings.Contains(folded, place) {
			return 1
		}
	}
	return 0
}

func clamp(total float64) int {
	return int(math.Floor(math.Max(0, math.Min(100, total)) + 0.5))
}
