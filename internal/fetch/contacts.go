package fetch

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/spigell/job-harvester/internal/listing"
)

const maxEmails = 5

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+`)

	// hrPrefixes mark recruiting mailboxes; they are listed before anything else.
	hrPrefixes = []string{
		"recrutement@", "recrutement.", "rh@", "jobs@", "careers@", "emploi@", "emplois@",
		"recruitment@", "hr@", "talent@", "carrieres@", "contact@", "info@",
	}
	automatedMarkers = []string{"noreply", "no-reply", "mailer", "donotreply"}
	assetSuffixes    = []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp"}

	// sites that are never a company's own website
	platformHosts = []string{
		"linkedin.com", "facebook.com", "twitter.com", "instagram.com", "youtube.com",
		"wikipedia.org", "indeed.", "glassdoor.", "jobboom", "guichetemplois", "jobbank.gc.ca",
		"monster.", "jooble.", "adzuna.", "google.",
	}
	legalSuffixes = map[string]struct{}{
		"inc": {}, "ltd": {}, "ltee": {}, "llc": {}, "corp": {}, "corporation": {}, "co": {},
		"sa": {}, "sas": {}, "sarl": {}, "gmbh": {}, "group": {}, "groupe": {}, "the": {},
	}
)

// Emails finds the addresses in text and extra, lower-cased and without
// duplicates. Recruiting mailboxes come first; automated senders are dropped.
func Emails(text string, extra ...string) []string {
	candidates := append(emailPattern.FindAllString(text, -1), extra...)

	seen := make(map[string]struct{}, len(candidates))
	var hr, other []string
	for _, candidate := range candidates {
		email := strings.TrimRight(strings.ToLower(strings.TrimSpace(candidate)), ".")
		if !emailPattern.MatchString(email) || hasAny(email, assetSuffixes, strings.HasSuffix) {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}

		switch {
		case hasAny(email, hrPrefixes, strings.HasPrefix):
			hr = append(hr, email)
		case hasAny(email, automatedMarkers, strings.Contains):
		default:
			other = append(other, email)
		}
	}

	emails := append(hr, other...)
	if len(emails) > maxEmails {
		emails = emails[:maxEmails]
	}
	return emails
}

// CompanyWebsite returns the origin of the first link whose host contains a
// slug of company, or an empty string.
func CompanyWebsite(links []string, company string) string {
	slugs := companySlugs(company)
	if len(slugs) == 0 {
		return ""
	}

	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if hasAny(host, platformHosts, strings.Contains) {
			continue
		}
		for _, slug := range slugs {
			if strings.Contains(host, slug) {
				return u.Scheme + "://" + u.Host
			}
		}
	}
	return ""
}

// companySlugs returns the joined name without legal suffixes and, when long
// enough, its first word: "Acme Solutions Inc." gives acmesolutions and acme.
func companySlugs(company string) []string {
	var words []string
	for _, token := range listing.Tokens(company) {
		token = strings.NewReplacer(".", "", "+", "", "#", "").Replace(token)
		if _, ok := legalSuffixes[token]; ok || token == "" {
			continue
		}
		words = append(words, token)
	}
	if len(words) == 0 {
		return nil
	}

	var slugs []string
	if joined := strings.Join(words, ""); len(joined) >= 3 {
		slugs = append(slugs, joined)
	}
	if len(words) > 1 && len(words[0]) >= 4 {
		slugs = append(slugs, words[0])
	}
	return slugs
}

func hasAny(s string, items []string, match func(string, string) bool) bool {
	for _, item := range items {
		if match(s, item) {
			return true
		}
	}
	return false
}
