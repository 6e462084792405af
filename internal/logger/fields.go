package logger

import (
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/utils"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldSource is the connector name a log entry is about.
	FieldSource = "source"
	// FieldStage is the pipeline stage emitting the entry.
	FieldStage = "stage"

	FieldListingID = "listing_id"
	FieldURL       = "url"
	FieldScore     = "score"

	defaultPreviewLength = 200
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, falling back to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
// Empty values are ignored to keep log entries compact when information is missing.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithCommonFields attaches the common AI fields to the provided logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

func SourceFields(source string) []zap.Field {
	return StringFields(StringField{Key: FieldSource, Value: source})
}

// ForStage returns a child logger tagged with the pipeline stage name.
func ForStage(logger *zap.Logger, stage string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldStage, Value: stage})...)
}

// ListingFields identifies a listing in log entries. A nil listing yields no fields.
func ListingFields(l *listing.JobListing) []zap.Field {
	if l == nil {
		return nil
	}

	fields := StringFields(
		StringField{Key: FieldListingID, Value: l.ID},
		StringField{Key: FieldSource, Value: l.Source},
		StringField{Key: FieldURL, Value: l.URL},
	)
	return append(fields, zap.Int(FieldScore, l.MatchScore))
}

// Preview logs a shortened copy of a long text together with its full length.
func Preview(key, text string, limit int) []zap.Field {
	if limit <= 0 {
		limit = defaultPreviewLength
	}
	return []zap.Field{
		zap.Int(key+"_length", len([]rune(text))),
		zap.String(key+"_preview", utils.TruncateForLog(text, limit)),
	}
}
