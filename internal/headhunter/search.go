package headhunter

import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-harvester/internal/connector"
	"github.com/spigell/job-harvester/internal/listing"
)

const (
	SearchPath = "/vacancies"

	experienceNone = "noExperience"
)

// Area ids of the hh.ru dictionary for the locations we recognise.
var areas = []struct {
	marker string
	id     int
}{
	{"moscow", 1}, {"москва", 1},
	{"saint petersburg", 2}, {"санкт-петербург", 2},
	{"almaty", 160}, {"алматы", 160},
	{"minsk", 1002}, {"минск", 1002},
	{"kazakhstan", 40}, {"казахстан", 40},
	{"belarus", 16}, {"беларусь", 16},
	{"russia", 113}, {"россия", 113},
}

type SearchParams struct {
	Text string `yaml:"text"`
	// hhparam is custom tag for reflect. Please see below.
	Areas       []int    `hhparam:"area"`
	OrderBy     string   `yaml:"order_by"`
	SearchField string   `yaml:"search_field"`
	Schedules   []string `hhparam:"schedule"`
	PerPage     string   `yaml:"per_page"`
	Experience  string   `yaml:"experience"`
	Period      uint     `yaml:"period"`
}

func (c *Client) search(ctx context.Context, params *SearchParams, max int) (*Vacancies, error) {
	var vacancies []*Vacancy

	// Set per_page max as possible. It should be faster.
	if params.PerPage == "" {
		params.PerPage = perPage
	}

	q := buildParams(params)
	apiURLSearch := fmt.Sprintf("%s%s", c.APIURL, SearchPath)

	items, err := c.GetItems(ctx, apiURLSearch, q, max)
	if err != nil {
		return nil, err
	}

	cfg := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           &vacancies,
		TagName:          "json",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(items); err != nil {
		return nil, fmt.Errorf("decode vacancies: %w: %w", connector.ErrParse, err)
	}

	return &Vacancies{
		Items: vacancies,
	}, nil
}

func areasFor(location string) []int {
	for _, area := range areas {
		if listing.ContainsWord(location, area.marker) {
			return []int{area.id}
		}
	}
	return nil
}

func buildParams(params *SearchParams) url.Values {
	q := url.Values{}
	fields := reflect.VisibleFields(reflect.TypeOf(*params))
	for _, field := range fields {
		// Our custom tag is using here.
		key := field.Tag.Get("hhparam")
		if key == "" {
			// Failover to default tag if our tag do not exist.
			key = field.Tag.Get("yaml")
		}
		kind := field.Type.Kind()
		switch kind {
		case reflect.Slice:

			s := reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface()
			switch v := s.(type) {
			case []int:
				for _, value := range v {
					q.Add(key, strconv.Itoa(value))
				}

			case []string:
				for _, value := range v {
					q.Add(key, value)
				}
			}

		default:
			value := fmt.Sprintf("%v", reflect.ValueOf(params).Elem().Field(field.Index[0]).Interface())
			if value != "" && value != "0" {
				q.Set(key, value)
			}
		}
	}

	return q
}
