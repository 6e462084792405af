package ai

import (
	"context"

	"github.com/spigell/job-harvester/internal/listing"
)

// Generator sends a single prompt to a language model and returns its text answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Verdict is the judge opinion about one listing of a batch.
// Index points into the batch that was sent.
type Verdict struct {
	Index  int
	Score  float64
	Reason string
}

// Judge rates a batch of listings against the candidate profile.
// Implementations may return fewer verdicts than listings.
type Judge interface {
	Judge(ctx context.Context, profile listing.CandidateProfile, batch []*listing.JobListing) ([]Verdict, error)
}

// Describer is implemented by generators that can report what they run on.
type Describer interface {
	Provider() string
	Model() string
}
