package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/ai"
	"github.com/spigell/job-harvester/internal/jsonx"
	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/utils"
)

//go:embed judge_prompt.md
var judgePrompt string

const (
	defaultMaxLogLength     = 200
	judgeDescriptionLength  = 500
	emptyDescriptionMessage = "no description provided"
)

// Judge rates listings with a language model. The generator is usually a
// Generator but any ai.Generator works.
type Judge struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewJudge(generator ai.Generator, logger *zap.Logger, maxLogLength int) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Judge{
		generator: generator,
		logger:    describe(logger, generator),
		maxLogLen: maxLogLength,
	}
}

// Judge returns verdicts for the listings the model answered about. Entries with an
// unknown id or a non numeric score are skipped.
func (j *Judge) Judge(ctx context.Context, profile listing.CandidateProfile, batch []*listing.JobListing) ([]ai.Verdict, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	if j.generator == nil {
		return nil, fmt.Errorf("judge generator is not configured")
	}

	prompt, err := buildJudgePrompt(profile, batch)
	if err != nil {
		return nil, err
	}

	j.logger.Debug("judge request", append([]zap.Field{zap.Int("batch", len(batch))}, logger.Preview("prompt", prompt, j.maxLogLen)...)...)

	raw, err := j.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("judge batch: %w", err)
	}

	j.logger.Debug("judge response", logger.Preview("response", raw, j.maxLogLen)...)

	verdicts, err := parseVerdicts(raw, len(batch))
	if err != nil {
		return nil, err
	}

	return verdicts, nil
}

func buildJudgePrompt(profile listing.CandidateProfile, batch []*listing.JobListing) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	var b strings.Builder
	for i, l := range batch {
		description := utils.TruncateForLog(l.Description, judgeDescriptionLength)
		if description == "" {
			description = emptyDescriptionMessage
		}
		fmt.Fprintf(&b, "ID: %d\nTITLE: %s\nCOMPANY: %s\nLOCATION: %s\nDESCRIPTION: %s\n---\n",
			i, l.Title, l.Company, l.Location, description)
	}

	locations := "any"
	if len(profile.AcceptableLocations) > 0 {
		locations = strings.Join(profile.AcceptableLocations, ", ")
	}

	prompt := strings.ReplaceAll(judgePrompt, "{{PROFILE_JSON}}", string(profileJSON))
	prompt = strings.ReplaceAll(prompt, "{{LISTINGS}}", b.String())
	prompt = strings.ReplaceAll(prompt, "{{LOCATIONS}}", locations)
	return prompt, nil
}

// parseVerdicts reads a [{id, score, reason}] answer. When the array is broken the
// flat objects that survived are used.
func parseVerdicts(raw string, size int) ([]ai.Verdict, error) {
	var entries []map[string]any

	items, err := jsonx.ExtractArray(raw)
	if err == nil {
		for _, item := range items {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
	} else {
		entries = jsonx.ExtractFlatObjects(raw, "id", "score")
		if len(entries) == 0 {
			return nil, fmt.Errorf("parse judge response: %w", err)
		}
	}

	verdicts := make([]ai.Verdict, 0, len(entries))
	for _, entry := range entries {
		index, ok := jsonx.Int(entry["id"])
		if !ok || index < 0 || index >= size {
			continue
		}
		score := jsonx.Float(entry["score"])
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}

		verdicts = append(verdicts, ai.Verdict{
			Index:  index,
			Score:  math.Max(0, math.Min(100, score)),
			Reason: jsonx.String(entry["reason"]),
		})
	}

	return verdicts, nil
}

func describe(l *zap.Logger, generator ai.Generator) *zap.Logger {
	if d, ok := generator.(ai.Describer); ok {
		return logger.WithCommonFields(l, d.Provider(), d.Model())
	}
	return logger.WithFields(l)
}
