package listing

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics so "Développeur" and "developpeur" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Tokens splits folded text into words. The characters + # . stay inside a word
// so that "c++", "c#" and "node.js" survive; trailing dots are dropped.
func Tokens(s string) []string {
	var (
		tokens []string
		word   strings.Builder
	)

	flush := func() {
		w := strings.TrimRight(word.String(), ".")
		word.Reset()
		if w != "" {
			tokens = append(tokens, w)
		}
	}

	for _, r := range Fold(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' || r == '.' {
			word.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return tokens
}

// ContainsWord reports whether the folded text contains word as a whole token.
func ContainsWord(text, word string) bool {
	word = Fold(word)
	if word == "" {
		return false
	}

	if parts := Tokens(word); len(parts) != 1 || parts[0] != word {
		return containsPhrase(Fold(text), word)
	}

	for _, token := range Tokens(text) {
		if token == word {
			return true
		}
	}
	return false
}

// containsPhrase matches a multi-word phrase on word boundaries.
func containsPhrase(text, phrase string) bool {
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)
		if isBoundary(text, idx-1) && isBoundary(text, end) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isBoundary(text string, pos int) bool {
	if pos < 0 || pos >= len(text) {
		return true
	}
	r := rune(text[pos])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r)) || r > unicode.MaxASCII
}

// A range ("0-2 ans", "0 à 2 ans", "1 or 2 years") reports its lower bound.
var experiencePattern = regexp.MustCompile(`\b(\d{1,2})\s*\+?\s*(?:(?:-|–|a|to|or|ou)\s*\d{1,2}\s*)?(?:years?|yrs?|ans?|annees?)\b`)

// ParseExperience finds the first "N+ years" or "N ans d'expérience" statement.
// Mentions qualified as years of study are ignored.
func ParseExperience(text string) (int, bool) {
	folded := Fold(text)
	for _, loc := range experiencePattern.FindAllStringSubmatchIndex(folded, -1) {
		tail := folded[loc[1]:min(len(folded), loc[1]+24)]
		if studyQualified(tail) {
			continue
		}
		years, err := strconv.Atoi(folded[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		return years, true
	}
	return 0, false
}

func studyQualified(tail string) bool {
	tail = strings.TrimSpace(tail)
	for _, prefix := range []string{"of study", "of studies", "d'etude", "d’etude", "d etude"} {
		if strings.HasPrefix(tail, prefix) {
			return true
		}
	}
	return false
}
