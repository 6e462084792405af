// Package dedup merges listings coming from several connectors into a unique set.
package dedup

import (
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/listing"
)

// Stats counts the dropped duplicates per source.
type Stats struct {
	Input   int
	Kept    int
	Dropped map[string]int
}

// Sources returns the sources that lost listings, sorted by name.
func (s Stats) Sources() []string {
	sources := make([]string, 0, len(s.Dropped))
	for source := range s.Dropped {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

func (s Stats) Fields() []zap.Field {
	fields := []zap.Field{zap.Int("input", s.Input), zap.Int("kept", s.Kept)}
	for _, source := range s.Sources() {
		fields = append(fields, zap.Int("dropped_"+source, s.Dropped[source]))
	}
	return fields
}

// Deduplicate keeps the first listing of every identity key, in first-occurrence order.
// Later duplicates are dropped without merging their fields.
func Deduplicate(listings []*listing.JobListing) []*listing.JobListing {
	result, _ := DeduplicateWithStats(listings)
	return result
}

func DeduplicateWithStats(listings []*listing.JobListing) ([]*listing.JobListing, Stats) {
	stats := Stats{Input: len(listings), Dropped: make(map[string]int)}
	seen := make(map[string]struct{}, len(listings))
	result := make([]*listing.JobListing, 0, len(listings))

	for _, l := range listings {
		if l == nil {
			continue
		}
		key := l.IdentityKey()
		if _, ok := seen[key]; ok {
			stats.Dropped[l.Source]++
			continue
		}
		seen[key] = struct{}{}
		result = append(result, l)
	}

	stats.Kept = len(result)
	return result, stats
}
