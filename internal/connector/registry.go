package connector

import (
	"github.com/spigell/job-harvester/internal/listing"
)

type Region string

const (
	RegionGlobal   Region = "global"
	RegionEurope   Region = "europe"
	RegionAmericas Region = "americas"
	RegionCIS      Region = "cis"
)

var regionMarkers = []struct {
	region  Region
	markers []string
}{
	{
		region: RegionEurope,
		markers: []string{
			"france", "paris", "lyon", "marseille", "bordeaux", "nantes", "lille", "toulouse", "rennes",
			"europe", "suisse", "switzerland", "belgique", "belgium", "uk", "united kingdom", "london",
			"allemagne", "germany", "berlin", "espagne", "spain", "madrid", "italie", "italy", "rome",
			"netherlands", "amsterdam", "portugal", "lisbon",
		},
	},
	{
		region: RegionAmericas,
		markers: []string{
			"usa", "united states", "california", "new york", "texas", "canada", "quebec", "montreal",
			"toronto", "vancouver", "ottawa", "chicago", "seattle", "boston", "silicon valley", "florida",
		},
	},
	{
		region: RegionCIS,
		markers: []string{
			"russia", "россия", "moscow", "москва", "saint petersburg", "санкт-петербург",
			"kazakhstan", "almaty", "belarus", "minsk",
		},
	},
}

// DetectRegion returns the region whose markers appear in the location, or RegionGlobal.
func DetectRegion(location string) Region {
	loc := listing.Fold(location)
	if loc == "" {
		return RegionGlobal
	}
	for _, entry := range regionMarkers {
		for _, marker := range entry.markers {
			if listing.ContainsWord(loc, marker) {
				return entry.region
			}
		}
	}
	return RegionGlobal
}

type registered struct {
	connector Connector
	regions   map[Region]struct{}
}

// Registry keeps connectors in registration order with their region tags.
type Registry struct {
	entries []registered
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds c for the given regions. Without regions the connector is global.
func (r *Registry) Register(c Connector, regions ...Region) {
	if c == nil {
		return
	}
	if len(regions) == 0 {
		regions = []Region{RegionGlobal}
	}
	set := make(map[Region]struct{}, len(regions))
	for _, region := range regions {
		set[region] = struct{}{}
	}
	r.entries = append(r.entries, registered{connector: c, regions: set})
}

func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) All() []Connector {
	result := make([]Connector, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.connector)
	}
	return result
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		names = append(names, entry.connector.Name())
	}
	return names
}

// ForLocation returns the global connectors plus those of the region detected from location.
func (r *Registry) ForLocation(location string) []Connector {
	region := DetectRegion(location)

	result := make([]Connector, 0, len(r.entries))
	for _, entry := range r.entries {
		_, global := entry.regions[RegionGlobal]
		_, regional := entry.regions[region]
		if global || regional {
			result = append(result, entry.connector)
		}
	}
	return result
}
