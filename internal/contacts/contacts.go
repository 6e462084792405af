// Package contacts keeps the company websites and e-mail addresses found while
// enriching listings. Writes happen in the background and never block a search.
package contacts

import (
	"context"
	"strings"
	"time"

	"github.com/spigell/job-harvester/internal/listing"
)

var anonymousCompanies = map[string]struct{}{
	"":             {},
	"confidential": {},
	"confidentiel": {},
	"anonymous":    {},
	"anonyme":      {},
	"incognito":    {},
	"non specifie": {},
	"unknown":      {},
}

type Contact struct {
	Owner     string    `json:"owner,omitempty"`
	Company   string    `json:"company"`
	Website   string    `json:"website,omitempty"`
	Emails    []string  `json:"emails,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Source    string    `json:"source,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key identifies a contact within one owner: the lower-cased company name.
func (c Contact) Key() string {
	return strings.ToLower(strings.Join(strings.Fields(c.Company), " "))
}

// Anonymous reports whether the company name hides the employer.
func Anonymous(company string) bool {
	_, ok := anonymousCompanies[listing.Fold(company)]
	return ok
}

// Usable reports whether c is worth storing.
func (c Contact) Usable() bool {
	return !Anonymous(c.Company) && (c.Website != "" || len(c.Emails) > 0)
}

func (c Contact) normalized() Contact {
	c.Company = strings.Join(strings.Fields(c.Company), " ")
	c.Website = strings.TrimRight(strings.TrimSpace(c.Website), "/")
	c.Phone = strings.TrimSpace(c.Phone)
	c.Emails = mergeEmails(nil, c.Emails)
	return c
}

// mergeEmails appends the addresses of extra missing from base, keeping order.
func mergeEmails(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	merged := make([]string, 0, len(base)+len(extra))
	for _, email := range append(append([]string{}, base...), extra...) {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		merged = append(merged, email)
	}
	return merged
}

// Store persists contacts. Upsert merges e-mails as a set and keeps an existing
// website or phone. List returns the owner's contacts, most recently updated first.
type Store interface {
	Upsert(ctx context.Context, c Contact) error
	List(ctx context.Context, owner string) ([]Contact, error)
}
