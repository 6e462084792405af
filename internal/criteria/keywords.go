package criteria

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spigell/job-harvester/internal/listing"
)

const (
	maxFallbackKeywords = 5
	minKeywordLength    = 3
)

// stopWords are compared against folded tokens.
var stopWords = toSet(
	// french
	"le", "la", "les", "un", "une", "des", "du", "de", "d", "l", "a", "au", "aux", "pour", "par", "avec", "sans",
	"moi", "je", "j", "me", "mon", "ma", "mes", "trouve", "trouver", "cherche", "chercher", "recherche",
	"offre", "offres", "poste", "postes", "emploi", "emplois", "travail", "en", "sur", "dans", "et", "ou",
	"qui", "que", "quoi", "est", "sont", "etre", "avoir", "tout", "tous", "toutes", "veux", "voudrais",
	"bonjour", "merci", "svp", "stp", "plus", "tres", "bien", "comme", "chez", "vers", "pres", "ville",
	// english
	"the", "an", "and", "or", "of", "to", "in", "on", "at", "for", "with", "without", "from", "by",
	"i", "me", "my", "we", "you", "find", "search", "looking", "look", "want", "need", "please", "some",
	"any", "job", "jobs", "position", "positions", "role", "roles", "offer", "offers", "work", "near",
	"around", "city", "entry", "level", "hi", "hello", "thanks", "new", "best", "good", "show", "get",
)

// hint words select the job type and are not used as keywords.
var (
	internshipHints = []string{"stage", "stages", "stagiaire", "internship", "internships", "intern", "interns", "alternance", "alternant", "apprentissage", "apprenti"}
	juniorHints     = []string{"junior", "juniors", "entry level", "entry-level", "debutant", "debutante", "graduate"}

	hintWords = toSet(append(append([]string{}, internshipHints...), juniorHints...)...)
)

// DetectJobType reads internship and junior hints from the request. The second
// value is false when the request names neither.
func DetectJobType(query string) (listing.JobType, bool) {
	for _, hint := range internshipHints {
		if listing.ContainsWord(query, hint) {
			return listing.JobTypeInternship, true
		}
	}
	for _, hint := range juniorHints {
		if listing.ContainsWord(query, hint) {
			return listing.JobTypeJunior, true
		}
	}
	return listing.JobTypeStandard, false
}

// FallbackKeywords tokenizes the request without any model: stop words, hint words,
// place names and short tokens are dropped, order is kept and duplicates removed.
func FallbackKeywords(query string) []string {
	seen := make(map[string]struct{})

	var keywords []string
	for _, word := range strings.FieldsFunc(strings.ToLower(query), separator) {
		word = strings.TrimRight(word, ".")
		folded := listing.Fold(word)
		if folded == "" {
			continue
		}
		if _, ok := stopWords[folded]; ok {
			continue
		}
		if _, ok := hintWords[folded]; ok {
			continue
		}
		if utf8.RuneCountInString(word) < minKeywordLength && !shortTechTerm(folded) {
			continue
		}
		if isLocationWord(folded) {
			continue
		}
		if _, ok := seen[folded]; ok {
			continue
		}

		seen[folded] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == maxFallbackKeywords {
			break
		}
	}

	return keywords
}

func separator(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.')
}

// shortTechTerm keeps two letter vocabulary terms such as "go" and "c#".
func shortTechTerm(token string) bool {
	if utf8.RuneCountInString(token) < 2 {
		return false
	}
	for _, term := range listing.Vocabulary {
		if term == token {
			return true
		}
	}
	return false
}

func toSet(items ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[listing.Fold(item)] = struct{}{}
	}
	return set
}
