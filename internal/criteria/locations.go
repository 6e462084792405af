package criteria

import (
	"sort"
	"strings"

	"github.com/spigell/job-harvester/internal/listing"
)

const DefaultLocation = "Montreal, QC, Canada"

// locations maps folded city and country names to the form the job boards expect.
var locations = map[string]string{
	"qc":             "Quebec, QC, Canada",
	"quebec":         "Quebec, QC, Canada",
	"montreal":       "Montreal, QC, Canada",
	"mtl":            "Montreal, QC, Canada",
	"laval":          "Laval, QC, Canada",
	"longueuil":      "Longueuil, QC, Canada",
	"gatineau":       "Gatineau, QC, Canada",
	"sherbrooke":     "Sherbrooke, QC, Canada",
	"saguenay":       "Saguenay, QC, Canada",
	"ontario":        "Ontario, Canada",
	"toronto":        "Toronto, ON, Canada",
	"ottawa":         "Ottawa, ON, Canada",
	"vancouver":      "Vancouver, BC, Canada",
	"calgary":        "Calgary, AB, Canada",
	"canada":         "Canada",
	"france":         "France",
	"paris":          "Paris, France",
	"lyon":           "Lyon, France",
	"marseille":      "Marseille, France",
	"toulouse":       "Toulouse, France",
	"bordeaux":       "Bordeaux, France",
	"nantes":         "Nantes, France",
	"lille":          "Lille, France",
	"rennes":         "Rennes, France",
	"strasbourg":     "Strasbourg, France",
	"grenoble":       "Grenoble, France",
	"montpellier":    "Montpellier, France",
	"usa":            "United States",
	"america":        "United States",
	"california":     "California, USA",
	"new york":       "New York, USA",
	"texas":          "Texas, USA",
	"florida":        "Florida, USA",
	"seattle":        "Seattle, WA, USA",
	"boston":         "Boston, MA, USA",
	"chicago":        "Chicago, IL, USA",
	"los angeles":    "Los Angeles, CA, USA",
	"san francisco":  "San Francisco, CA, USA",
	"silicon valley": "Silicon Valley, CA, USA",
	"belgique":       "Belgique",
	"bruxelles":      "Bruxelles, Belgique",
	"suisse":         "Suisse",
	"zurich":         "Zurich, Suisse",
	"geneve":         "Genève, Suisse",
	"london":         "London, UK",
	"maroc":          "Maroc",
	"luxembourg":     "Luxembourg",
	"madrid":         "Madrid, Spain",
	"barcelona":      "Barcelona, Spain",
	"berlin":         "Berlin, Germany",
	"allemagne":      "Germany",
	"moscow":         "Moscow, Russia",
	"moskva":         "Moscow, Russia",
}

// typos are applied to the folded location before the table lookup.
var typos = strings.NewReplacer(
	"californie", "california",
	"califormie", "california",
	"califormia", "california",
	"etats-unis", "usa",
	"united-states", "usa",
	"united states", "usa",
	"new-york", "new york",
)

// locationKeys holds the table keys longest first, so "new york" is tried before "york".
var locationKeys = func() []string {
	keys := make([]string, 0, len(locations))
	for key := range locations {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// NormalizeLocation fixes common typos and expands known names. Unknown locations
// are returned trimmed, an empty one becomes fallback.
func NormalizeLocation(loc, fallback string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return fallback
	}

	folded := typos.Replace(listing.Fold(loc))
	if known, ok := locations[folded]; ok {
		return known
	}
	return loc
}

// DetectLocation returns the first known location named in text.
func DetectLocation(text string) (string, bool) {
	folded := typos.Replace(listing.Fold(text))
	for _, key := range locationKeys {
		if listing.ContainsWord(folded, key) {
			return locations[key], true
		}
	}
	return "", false
}

// isLocationWord reports whether a single query token names a known place.
func isLocationWord(token string) bool {
	_, ok := locations[typos.Replace(listing.Fold(token))]
	return ok
}
