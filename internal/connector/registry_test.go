package connector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spigell/job-harvester/internal/listing"
)

type named string

func (n named) Name() string { return string(n) }

func (n named) Search(context.Context, listing.SearchCriteria) ([]*listing.JobListing, error) {
	return nil, nil
}

func TestDetectRegion(t *testing.T) {
	t.Parallel()

	tests := map[string]Region{
		"Paris, France":             RegionEurope,
		"Montréal, QC, Canada":      RegionAmericas,
		"San Francisco, California": RegionAmericas,
		"Москва":                    RegionCIS,
		"Tokyo":                     RegionGlobal,
		"":                          RegionGlobal,
		"Ukraine":                   RegionGlobal,
	}

	for location, expect := range tests {
		t.Run(location, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, expect, DetectRegion(location))
		})
	}
}

func TestRegistryForLocation(t *testing.T) {
	r := NewRegistry()
	r.Register(named("jooble"))
	r.Register(named("indeed"), RegionEurope, RegionAmericas)
	r.Register(named("jobbank"), RegionAmericas)
	r.Register(named("headhunter"), RegionCIS)
	r.Register(nil)

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"jooble", "indeed", "jobbank", "headhunter"}, r.Names())

	names := func(cs []Connector) []string {
		result := make([]string, 0, len(cs))
		for _, c := range cs {
			result = append(result, c.Name())
		}
		return result
	}

	assert.Equal(t, []string{"jooble", "indeed", "jobbank"}, names(r.ForLocation("Toronto")))
	assert.Equal(t, []string{"jooble", "indeed"}, names(r.ForLocation("Lyon")))
	assert.Equal(t, []string{"jooble", "headhunter"}, names(r.ForLocation("Moscow")))
	assert.Equal(t, []string{"jooble"}, names(r.ForLocation("Tokyo")))
}
