package listing

import (
	"encoding/json"
	"fmt"
	"os"
)

type Listings struct {
	Items []*JobListing
}

func (v *Listings) Len() int {
	return len(v.Items)
}

func (v *Listings) FindByID(id string) *JobListing {
	for _, l := range v.Items {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// Companies returns the distinct company names in listing order.
func (v *Listings) Companies() []string {
	seen := make(map[string]struct{})
	companies := make([]string, 0)
	for _, l := range v.Items {
		key := Fold(l.Company)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		companies = append(companies, l.Company)
	}
	return companies
}

// ReportBySource groups a short summary of every listing by connector name.
func (v *Listings) ReportBySource() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, l := range v.Items {
		entry := map[string]string{
			"title":    l.Title,
			"company":  l.Company,
			"location": l.Location,
			"url":      l.URL,
			"score":    fmt.Sprintf("%d", l.MatchScore),
		}
		if l.JudgeReason != "" {
			entry["judge_reason"] = l.JudgeReason
		}
		if l.Salary != "" {
			entry["salary"] = l.Salary
		}
		report[l.Source] = append(report[l.Source], entry)
	}
	return report
}

func (v *Listings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "listings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ReportByCompany groups listing titles and urls by company.
func (v *Listings) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, l := range v.Items {
		key := l.Company
		if key == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"title":  l.Title,
			"url":    l.URL,
			"source": l.Source,
		})
	}
	return report
}

// Exclude removes listings whose identity key is in keys and returns the removed ids.
// Order of the remaining listings is preserved.
func (v *Listings) Exclude(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		drop[key] = struct{}{}
	}

	var excluded []string
	kept := v.Items[:0]
	for _, l := range v.Items {
		if _, ok := drop[l.IdentityKey()]; ok {
			excluded = append(excluded, l.ID)
			continue
		}
		kept = append(kept, l)
	}
	v.Items = kept
	return excluded
}

// DropIf removes the listings for which drop returns true and returns their ids.
// Order of the remaining listings is preserved.
func (v *Listings) DropIf(drop func(*JobListing) bool) []string {
	var dropped []string
	kept := v.Items[:0]
	for _, l := range v.Items {
		if l == nil || drop(l) {
			if l != nil {
				dropped = append(dropped, l.ID)
			}
			continue
		}
		kept = append(kept, l)
	}
	v.Items = kept
	return dropped
}

// ReadFile loads listings previously written by DumpToTmpFile. An empty file
// yields no listings.
func ReadFile(path string) (*Listings, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		return &Listings{}, nil
	}

	var items []*JobListing
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &Listings{Items: items}, nil
}

// IdentityKeys returns the identity key of every listing.
func (v *Listings) IdentityKeys() []string {
	keys := make([]string, 0, len(v.Items))
	for _, l := range v.Items {
		if l != nil {
			keys = append(keys, l.IdentityKey())
		}
	}
	return keys
}
