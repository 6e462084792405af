package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-harvester/internal/listing"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  provider  ", Value: "  Gemini  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "provider" || fields[0].String != "Gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}

	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFieldsFallsBackToNop(t *testing.T) {
	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}

	enriched.Info("does not panic")
}

func TestWithCommonFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithCommonFields(zap.New(core), "gemini", "model-x").Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldProvider] != "gemini" || ctx[FieldModel] != "model-x" {
		t.Fatalf("unexpected fields: %v", ctx)
	}

	if empty := CommonFields("", ""); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestForStage(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	ForStage(zap.New(core), "dedup").Debug("done")

	if got := observed.All()[0].ContextMap()[FieldStage]; got != "dedup" {
		t.Fatalf("unexpected stage: %v", got)
	}
}

func TestListingFields(t *testing.T) {
	t.Parallel()

	if fields := ListingFields(nil); fields != nil {
		t.Fatalf("expected no fields for nil listing, got %v", fields)
	}

	fields := ListingFields(&listing.JobListing{ID: "jooble-1", Source: "jooble", MatchScore: 72})
	if len(fields) != 3 {
		t.Fatalf("expected id, source and score, got %d fields", len(fields))
	}
	if fields[2].Key != FieldScore || fields[2].Integer != 72 {
		t.Fatalf("unexpected score field: %+v", fields[2])
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	fields := Preview("response", "ééééé", 2)

	if fields[0].Key != "response_length" || fields[0].Integer != 5 {
		t.Fatalf("unexpected length field: %+v", fields[0])
	}
	if fields[1].String != "éé..." {
		t.Fatalf("unexpected preview: %q", fields[1].String)
	}
}
