// Package criteria turns a free-text request and an optional résumé into search
// criteria and a candidate profile. A language model is asked first; when it is
// missing, fails or answers with something unusable, the request is tokenized instead.
package criteria

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	_ "embed"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/jsonx"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
)

const (
	DefaultLimit = 10

	maxResumeLength     = 4000
	defaultMaxLogLength = 200
)

var (
	ErrMalformedExtraction = errors.New("malformed extraction")
	ErrEmptyQuery          = errors.New("search request is empty")
)

//go:embed prompt.md
var promptTemplate string

//go:embed schema.json
var schemaJSON string

var payloadSchema = func() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("criteria: embedded schema: %v", err))
	}
	return schema
}()

var queryTypos = strings.NewReplacer(
	"Iogiciel", "logiciel",
	"developper", "développeur",
	"développer", "développeur",
)

// Result is what Extract produces for one search.
type Result struct {
	Criteria listing.SearchCriteria
	Profile  listing.CandidateProfile
	// Fallback is set when the keywords were taken from the request text.
	Fallback bool
}

type extraction struct {
	keywords []string
	exclude  []string
	location string
	jobType  string
	profile  listing.CandidateProfile
}

type Extractor struct {
	generator       ai.Generator
	defaultLocation string
	logger          *zap.Logger
	maxLogLen       int
}

// New creates an Extractor. generator may be nil, the keyword fallback is used then.
func New(generator ai.Generator, defaultLocation string, log *zap.Logger) *Extractor {
	if strings.TrimSpace(defaultLocation) == "" {
		defaultLocation = DefaultLocation
	}

	return &Extractor{
		generator:       generator,
		defaultLocation: strings.TrimSpace(defaultLocation),
		logger:          logger.ForStage(log, "criteria"),
		maxLogLen:       defaultMaxLogLength,
	}
}

// Extract never fails because of the model. It returns an error only when neither
// the request nor the résumé carries anything to search for.
func (e *Extractor) Extract(ctx context.Context, query, resume string, limit int) (Result, error) {
	query = strings.Join(strings.Fields(queryTypos.Replace(query)), " ")
	resume = strings.TrimSpace(resume)
	if query == "" && resume == "" {
		return Result{}, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	ext, err := e.extract(ctx, query, resume)
	fallback := err != nil
	if fallback {
		e.logger.Warn("criteria extraction failed, using keyword fallback", zap.Error(err))
		ext = fallbackExtraction(query, resume)
	}

	jobType, hinted := DetectJobType(query)
	if !hinted {
		jobType = listing.ParseJobType(ext.jobType)
	}

	location := ext.location
	if location == "" {
		location, _ = DetectLocation(query)
	}
	location = NormalizeLocation(location, e.defaultLocation)

	keywords := ext.keywords
	if len(keywords) == 0 {
		fallback = true
		keywords = FallbackKeywords(query)
	}
	if len(keywords) == 0 && query != "" {
		keywords = []string{query}
	}
	if len(keywords) == 0 {
		keywords = resumeKeywords(ext.profile, resume)
	}
	if len(keywords) == 0 {
		return Result{}, ErrEmptyQuery
	}

	criteria, err := listing.NewCriteria(keywords, location, jobType, limit, ext.exclude...)
	if err != nil {
		return Result{}, err
	}

	profile := completeProfile(ext.profile, criteria, query, resume)

	e.logger.Info("criteria ready",
		zap.Strings("keywords", criteria.Keywords),
		zap.String("location", criteria.Location),
		zap.String("job_type", string(criteria.JobType)),
		zap.Int("limit", criteria.ResultLimit),
		zap.Bool("fallback", fallback),
	)

	return Result{Criteria: criteria, Profile: profile, Fallback: fallback}, nil
}

func (e *Extractor) extract(ctx context.Context, query, resume string) (extraction, error) {
	if e.generator == nil {
		return extraction{}, errors.New("no extraction service configured")
	}

	prompt := buildPrompt(query, resume)
	e.logger.Debug("extraction request", logger.Preview("prompt", prompt, e.maxLogLen)...)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return extraction{}, fmt.Errorf("extraction service: %w", err)
	}

	ext, err := parsePayload(raw)
	if err != nil {
		e.logger.Warn("unusable extraction response", logger.Preview("response", raw, e.maxLogLen)...)
		return extraction{}, err
	}

	return ext, nil
}

func buildPrompt(query, resume string) string {
	if resume == "" {
		resume = "none"
	}
	if runes := []rune(resume); len(runes) > maxResumeLength {
		resume = string(runes[:maxResumeLength])
	}

	prompt := strings.ReplaceAll(promptTemplate, "{{QUERY}}", query)
	return strings.ReplaceAll(prompt, "{{RESUME}}", resume)
}

// parsePayload locates the JSON object in raw, checks it against the schema and
// coerces the fields.
func parsePayload(raw string) (extraction, error) {
	data, err := jsonx.ExtractObject(raw)
	if err != nil {
		return extraction{}, fmt.Errorf("%w: %w", ErrMalformedExtraction, err)
	}

	result, err := payloadSchema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return extraction{}, fmt.Errorf("%w: %w", ErrMalformedExtraction, err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return extraction{}, fmt.Errorf("%w: %s", ErrMalformedExtraction, strings.Join(problems, "; "))
	}

	return extraction{
		keywords: jsonx.Strings(data["keywords"]),
		exclude:  jsonx.Strings(data["exclude"]),
		location: jsonx.String(data["location"]),
		jobType:  jsonx.String(data["job_type"]),
		profile: listing.CandidateProfile{
			Skills:              listing.NewSkillSet(jsonx.Strings(data["skills"])...),
			ExperienceYears:     years(data["experience_years"]),
			Education:           jsonx.String(data["education"]),
			Languages:           listing.NewSkillSet(jsonx.Strings(data["languages"])...),
			TargetRoles:         jsonx.Strings(data["target_roles"]),
			AcceptableLocations: jsonx.Strings(data["acceptable_locations"]),
		},
	}, nil
}

func fallbackExtraction(query, resume string) extraction {
	ext := extraction{keywords: FallbackKeywords(query)}
	ext.profile.Skills = listing.ExtractSkills(resume + "\n" + query)
	if years, ok := listing.ParseExperience(resume); ok {
		ext.profile.ExperienceYears = years
	}
	return ext
}

func years(v any) int {
	f := jsonx.Float(v)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return int(f)
}

func resumeKeywords(profile listing.CandidateProfile, resume string) []string {
	if len(profile.TargetRoles) > 0 {
		return profile.TargetRoles
	}
	skills := listing.ExtractSkills(resume).Sorted()
	return skills[:min(len(skills), maxFallbackKeywords)]
}

// completeProfile fills what the model left out from the criteria and the texts.
func completeProfile(p listing.CandidateProfile, c listing.SearchCriteria, query, resume string) listing.CandidateProfile {
	if p.Skills.Len() == 0 {
		p.Skills = listing.ExtractSkills(resume + "\n" + query)
	}
	if p.Languages == nil {
		p.Languages = listing.NewSkillSet()
	}
	if p.ExperienceYears == 0 {
		if years, ok := listing.ParseExperience(resume); ok {
			p.ExperienceYears = years
		}
	}
	if len(p.TargetRoles) == 0 {
		p.TargetRoles = append([]string(nil), c.Keywords...)
	}
	if len(p.AcceptableLocations) == 0 {
		p.AcceptableLocations = acceptableLocations(c.Location)
	}
	return p
}

// acceptableLocations keeps the full location and its city part.
func acceptableLocations(location string) []string {
	if location == "" {
		return nil
	}
	result := []string{location}
	if city, _, found := strings.Cut(location, ","); found && strings.TrimSpace(city) != "" {
		result = append(result, strings.TrimSpace(city))
	}
	return result
}
