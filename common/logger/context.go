package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within
// a context. Fields flow through context enrichment so that analysis code does
// not have to repeat job/project identifiers on every log statement.
type LogFields struct {
	AnalysisID   *string // Analysis job ID
	ProjectID    *string // Project ID the job runs against
	RepositoryID *string // Repository ID, when the job was created from an import
	Stage        *string // Analysis stage currently executing
	Component    string  // Component name (e.g., "codelens.analysis.pipeline")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking
// precedence. Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.AnalysisID != nil {
		result.AnalysisID = next.AnalysisID
	}
	if next.ProjectID != nil {
		result.ProjectID = next.ProjectID
	}
	if next.RepositoryID != nil {
		result.RepositoryID = next.RepositoryID
	}
	if next.Stage != nil {
		result.Stage = next.Stage
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{AnalysisID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if
// truncated. Useful for logging prompts and LLM responses.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
