package filtering

import (
	"context"

	"github.com/spigell/job-harvester/internal/listing"
)

const maxEntryLevelExperience = 2

var (
	seniorityMarkers = []string{"senior", "lead", "principal", "staff", "manager", "director", "architect"}

	entryLevelKeywords = []string{
		"stage", "stagiaire", "intern", "internship", "alternance", "alternant", "apprenti", "apprentice",
		"coop", "co-op", "junior", "jr", "entry level", "entry-level", "debutant", "graduate", "new grad",
	}
)

type seniorityFilter struct {
	toggle
}

// NewSeniority creates a filter that removes senior positions from internship and junior searches.
func NewSeniority() Filter {
	return &seniorityFilter{}
}

func (f *seniorityFilter) Name() string { return "seniority" }

func (f *seniorityFilter) Validate(*Config) error { return nil }

func (f *seniorityFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	if !deps.Criteria.JobType.EntryLevel() {
		return v, Step{Initial: v.Len(), Left: v.Len()}, nil
	}

	info := drop(v, deps, "excluding senior listings", func(l *listing.JobListing) bool {
		return mentionsAny(l.Title, seniorityMarkers)
	})
	return v, info, nil
}

type entryLevelFilter struct {
	toggle
}

// NewEntryLevel creates a filter that keeps, in internship and junior searches,
// only listings that say they are entry level and ask for less than two years.
func NewEntryLevel() Filter {
	return &entryLevelFilter{}
}

func (f *entryLevelFilter) Name() string { return "entry_level" }

func (f *entryLevelFilter) Validate(*Config) error { return nil }

func (f *entryLevelFilter) Apply(_ context.Context, deps Deps, v *listing.Listings) (*listing.Listings, Step, error) {
	if !deps.Criteria.JobType.EntryLevel() {
		return v, Step{Initial: v.Len(), Left: v.Len()}, nil
	}

	info := drop(v, deps, "excluding listings that are not entry level", func(l *listing.JobListing) bool {
		if mentionsAny(l.Title, entryLevelKeywords) {
			return false
		}
		if !mentionsAny(l.Description, entryLevelKeywords) {
			return true
		}
		years, ok := listing.ParseExperience(l.Description)
		return ok && years >= maxEntryLevelExperience
	})
	return v, info, nil
}

func mentionsAny(text string, words []string) bool {
	for _, word := range words {
		if listing.ContainsWord(text, word) {
			return true
		}
	}
	return false
}
