package llm

import "context"

type contextKey string

const (
	purposeKey    contextKey = "llm_purpose"
	assessmentKey contextKey = "llm_assessment"
)

// WithPurpose labels requests made with ctx for the event log.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom returns the purpose label, or "unknown".
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithAssessment ties requests made with ctx to an assessment id.
func WithAssessment(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, assessmentKey, id)
}

// AssessmentFrom returns the assessment id attached to ctx, if any.
func AssessmentFrom(ctx context.Context) string {
	v, _ := ctx.Value(assessmentKey).(string)
	return v
}
